// Package repotest provides an in-memory database seeded with accounts and
// links for tests of packages built on the repositories.
package repotest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/pkg/database"
)

var dbSeq atomic.Int64

// NewDB opens a private in-memory sqlite database with every table migrated.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.New(context.Background(), &database.Config{
		Driver:       "sqlite",
		FilePath:     fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1)),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.AutoMigrate(db, &domain.UserModel{}, &domain.LinkModel{}, &domain.MessageModel{}); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// Ptr returns a pointer to v.
func Ptr(v uint) *uint {
	return &v
}

// CreateUser inserts a user row and returns its identity.
func CreateUser(t testing.TB, db *gorm.DB, u domain.UserModel) domain.Identity {
	t.Helper()
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return domain.IdentityOf(u.ToDomain())
}

// CreateLink inserts a link row.
func CreateLink(t testing.TB, db *gorm.DB, l domain.LinkModel) *domain.Link {
	t.Helper()
	if err := db.Create(&l).Error; err != nil {
		t.Fatalf("create link: %v", err)
	}
	return l.ToDomain()
}

// SetLinkStatus updates a link's status as the account service would.
func SetLinkStatus(t testing.TB, db *gorm.DB, linkID uint, status domain.LinkStatus) {
	t.Helper()
	err := db.Model(&domain.LinkModel{}).Where("id = ?", linkID).Update("status", string(status)).Error
	if err != nil {
		t.Fatalf("set link status: %v", err)
	}
}

// Fixture is a supplier with three staff members, one consumer and links
// in each status.
type Fixture struct {
	DB *gorm.DB

	Consumer      domain.Identity
	OtherConsumer domain.Identity
	Owner         domain.Identity
	Manager       domain.Identity
	RepA          domain.Identity
	RepB          domain.Identity
	ForeignRep    domain.Identity
	Inactive      domain.Identity

	Accepted *domain.Link
	Pending  *domain.Link
	Blocked  *domain.Link
	Removed  *domain.Link
}

const (
	SupplierID        = 10
	ForeignSupplierID = 20
	ConsumerID        = 100
	OtherConsumerID   = 200
)

// NewFixture seeds a fresh database.
func NewFixture(t testing.TB) *Fixture {
	t.Helper()
	db := NewDB(t)
	f := &Fixture{DB: db}

	f.Consumer = CreateUser(t, db, domain.UserModel{ID: 1, Role: string(domain.RoleConsumer), IsActive: true, ConsumerID: Ptr(ConsumerID), FullName: "Consumer"})
	f.RepA = CreateUser(t, db, domain.UserModel{ID: 2, Role: string(domain.RoleSalesRepresentative), IsActive: true, SupplierID: Ptr(SupplierID), FullName: "Rep A"})
	f.RepB = CreateUser(t, db, domain.UserModel{ID: 3, Role: string(domain.RoleSalesRepresentative), IsActive: true, SupplierID: Ptr(SupplierID), FullName: "Rep B"})
	f.Manager = CreateUser(t, db, domain.UserModel{ID: 4, Role: string(domain.RoleManager), IsActive: true, SupplierID: Ptr(SupplierID), FullName: "Manager"})
	f.Owner = CreateUser(t, db, domain.UserModel{ID: 5, Role: string(domain.RoleOwner), IsActive: true, SupplierID: Ptr(SupplierID), FullName: "Owner"})
	f.ForeignRep = CreateUser(t, db, domain.UserModel{ID: 6, Role: string(domain.RoleSalesRepresentative), IsActive: true, SupplierID: Ptr(ForeignSupplierID), FullName: "Foreign Rep"})
	f.OtherConsumer = CreateUser(t, db, domain.UserModel{ID: 7, Role: string(domain.RoleConsumer), IsActive: true, ConsumerID: Ptr(OtherConsumerID), FullName: "Other Consumer"})
	f.Inactive = CreateUser(t, db, domain.UserModel{ID: 8, Role: string(domain.RoleSalesRepresentative), IsActive: true, SupplierID: Ptr(SupplierID), FullName: "Gone"})
	if err := db.Model(&domain.UserModel{}).Where("id = ?", 8).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate user: %v", err)
	}

	f.Accepted = CreateLink(t, db, domain.LinkModel{ID: 1, SupplierID: SupplierID, ConsumerID: ConsumerID, Status: string(domain.LinkStatusAccepted)})
	f.Pending = CreateLink(t, db, domain.LinkModel{ID: 2, SupplierID: SupplierID, ConsumerID: ConsumerID, Status: string(domain.LinkStatusPending)})
	f.Blocked = CreateLink(t, db, domain.LinkModel{ID: 3, SupplierID: SupplierID, ConsumerID: ConsumerID, Status: string(domain.LinkStatusBlocked)})
	f.Removed = CreateLink(t, db, domain.LinkModel{ID: 4, SupplierID: SupplierID, ConsumerID: ConsumerID, Status: string(domain.LinkStatusRemoved)})

	return f
}
