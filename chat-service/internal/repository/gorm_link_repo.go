package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/pkg/log"
)

// GormLinkRepository implements LinkStore using GORM.
type GormLinkRepository struct {
	db *gorm.DB
}

func NewGormLinkRepository(db *gorm.DB) *GormLinkRepository {
	return &GormLinkRepository{db: db}
}

func (r *GormLinkRepository) GetLink(ctx context.Context, id uint) (*domain.Link, error) {
	var model domain.LinkModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Uint(log.FieldLinkID, id).Msg("failed to get link")
		return nil, err
	}
	return model.ToDomain(), nil
}

// SetAssignment overwrites the assignment columns in a single UPDATE.
func (r *GormLinkRepository) SetAssignment(ctx context.Context, linkID uint, staffID *uint, at *time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.LinkModel{}).
		Where("id = ?", linkID).
		Updates(map[string]any{"assigned_sales_rep_id": staffID, "assigned_at": at})
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Uint(log.FieldLinkID, linkID).Msg("failed to update link assignment")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *GormLinkRepository) ListAssignedTo(ctx context.Context, supplierID, staffID uint, skip, limit int) ([]domain.Link, error) {
	q := r.acceptedForSupplier(ctx, supplierID).
		Where("assigned_sales_rep_id = ?", staffID)
	return r.list(ctx, q, skip, limit)
}

func (r *GormLinkRepository) ListNotAssignedTo(ctx context.Context, supplierID, staffID uint, skip, limit int) ([]domain.Link, error) {
	q := r.acceptedForSupplier(ctx, supplierID).
		Where("(assigned_sales_rep_id IS NULL OR assigned_sales_rep_id <> ?)", staffID)
	return r.list(ctx, q, skip, limit)
}

func (r *GormLinkRepository) ListByConsumer(ctx context.Context, consumerID uint, skip, limit int) ([]domain.Link, error) {
	q := r.db.WithContext(ctx).Model(&domain.LinkModel{}).
		Where("consumer_id = ? AND status = ?", consumerID, string(domain.LinkStatusAccepted))
	return r.list(ctx, q, skip, limit)
}

func (r *GormLinkRepository) acceptedForSupplier(ctx context.Context, supplierID uint) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.LinkModel{}).
		Where("supplier_id = ? AND status = ?", supplierID, string(domain.LinkStatusAccepted))
}

func (r *GormLinkRepository) list(ctx context.Context, q *gorm.DB, skip, limit int) ([]domain.Link, error) {
	var models []domain.LinkModel
	if err := q.Order("id ASC").Offset(skip).Limit(limit).Find(&models).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list links")
		return nil, err
	}

	links := make([]domain.Link, len(models))
	for i := range models {
		links[i] = *models[i].ToDomain()
	}
	return links, nil
}
