package domain

import "time"

// LinkStatus is the lifecycle state of a supplier-consumer link.
type LinkStatus string

const (
	LinkStatusPending  LinkStatus = "pending"
	LinkStatusAccepted LinkStatus = "accepted"
	LinkStatusRemoved  LinkStatus = "removed"
	LinkStatusBlocked  LinkStatus = "blocked"
)

// Role of a platform user.
type Role string

const (
	RoleConsumer            Role = "consumer"
	RoleOwner               Role = "owner"
	RoleManager             Role = "manager"
	RoleSalesRepresentative Role = "sales_representative"

	// RoleSystem marks server generated messages.
	RoleSystem Role = "system"
)

// IsStaff reports whether the role belongs to the supplier side.
func (r Role) IsStaff() bool {
	switch r {
	case RoleOwner, RoleManager, RoleSalesRepresentative:
		return true
	}
	return false
}

// CanManageAssignments reports whether the role may clear someone else's
// assignment.
func (r Role) CanManageAssignments() bool {
	return r == RoleOwner || r == RoleManager
}

// Link is the approved business relationship a chat is scoped to. It is
// owned by the account service; chat only reads it and writes the
// assignment fields.
type Link struct {
	ID                 uint       `json:"id"`
	SupplierID         uint       `json:"supplier_id"`
	ConsumerID         uint       `json:"consumer_id"`
	Status             LinkStatus `json:"status"`
	AssignedSalesRepID *uint      `json:"assigned_sales_rep_id"`
	AssignedAt         *time.Time `json:"assigned_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

// User is the subset of the account record chat needs.
type User struct {
	ID         uint
	Role       Role
	IsActive   bool
	SupplierID *uint
	ConsumerID *uint
	FullName   string
}

// Identity is an authenticated caller.
type Identity struct {
	UserID     uint
	Role       Role
	SupplierID *uint
	ConsumerID *uint
}

// IdentityOf builds the identity of an active user.
func IdentityOf(u *User) Identity {
	return Identity{
		UserID:     u.ID,
		Role:       u.Role,
		SupplierID: u.SupplierID,
		ConsumerID: u.ConsumerID,
	}
}

func (i Identity) SubjectID() uint     { return i.UserID }
func (i Identity) SubjectRole() string { return string(i.Role) }

// SameSide reports whether role is on the same side of a link as i.
func (i Identity) SameSide(role Role) bool {
	if role == RoleSystem {
		return false
	}
	return i.Role.IsStaff() == role.IsStaff()
}
