package repository

import (
	"context"
	"errors"
	"slices"
	"time"

	"gorm.io/gorm"

	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/pkg/log"
)

var staffRoles = []string{
	string(domain.RoleOwner),
	string(domain.RoleManager),
	string(domain.RoleSalesRepresentative),
}

// GormMessageRepository implements MessageStore using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Persist(ctx context.Context, msg *domain.ChatMessage) error {
	l := log.Ctx(ctx)

	model := domain.MessageToModel(msg)
	model.ID = 0
	model.CreatedAt = time.Time{}
	model.ReadAt = nil
	model.IsRead = false

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Uint(log.FieldLinkID, msg.LinkID).Msg("failed to persist chat message")
		return err
	}

	msg.ID = model.ID
	msg.CreatedAt = model.CreatedAt
	msg.ReadAt = nil
	l.Debug().Uint(log.FieldLinkID, msg.LinkID).Uint(log.FieldMessageID, msg.ID).Msg("chat message persisted")
	return nil
}

func (r *GormMessageRepository) ListRecent(ctx context.Context, linkID uint, skip, limit int) ([]domain.ChatMessage, error) {
	var models []domain.MessageModel
	err := r.db.WithContext(ctx).
		Where("link_id = ?", linkID).
		Order("id DESC").
		Offset(skip).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Uint(log.FieldLinkID, linkID).Msg("failed to list chat messages")
		return nil, err
	}

	slices.Reverse(models)
	messages := make([]domain.ChatMessage, len(models))
	for i := range models {
		messages[i] = models[i].ToDomain()
	}
	return messages, nil
}

func (r *GormMessageRepository) MarkRead(ctx context.Context, linkID uint, reader domain.Role) (int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("link_id = ? AND read_at IS NULL", linkID)
	if reader.IsStaff() {
		q = q.Where("sender_role = ?", string(domain.RoleConsumer))
	} else {
		q = q.Where("sender_role IN ?", staffRoles)
	}

	now := r.db.NowFunc()
	result := q.Updates(map[string]any{"is_read": true, "read_at": now})
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Uint(log.FieldLinkID, linkID).Msg("failed to mark messages read")
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *GormMessageRepository) GetMessage(ctx context.Context, id uint) (*domain.ChatMessage, error) {
	var model domain.MessageModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	msg := model.ToDomain()
	return &msg, nil
}

func (r *GormMessageRepository) MarkOneRead(ctx context.Context, id uint) (*domain.ChatMessage, error) {
	now := r.db.NowFunc()
	err := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("id = ? AND read_at IS NULL", id).
		Updates(map[string]any{"is_read": true, "read_at": now}).Error
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Uint(log.FieldMessageID, id).Msg("failed to mark message read")
		return nil, err
	}
	return r.GetMessage(ctx, id)
}
