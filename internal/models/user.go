package models

import (
	"fmt"
	"time"
)

// Role is the closed set of account roles within a household
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// ParseRole validates a role string
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleParent, RoleChild:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// CanManageCatalog reports whether the role may create, edit or delete catalog items
// and pair household hardware.
func CanManageCatalog(r Role) bool {
	return r == RoleParent
}

// CanWriteSharedQuantity reports whether a caller may change the shared
// total/remain of a dispenser slot. Parents always may. A child may only
// when the item is restricted to that child alone.
func CanWriteSharedQuantity(r Role, isSoleOwner bool) bool {
	if r == RoleParent {
		return true
	}
	return r == RoleChild && isSoleOwner
}

// User is a household member account
type User struct {
	ID           string    `json:"id"`
	Role         Role      `json:"role"`
	Connect      string    `json:"connect"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email,omitempty"`
	Age          *int      `json:"age,omitempty"`
	BirthDate    string    `json:"birth_date,omitempty"`
	DispenserID  string    `json:"dispenser_id,omitempty"`
	KitID        string    `json:"kit_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsParent reports whether the user anchors its household
func (u *User) IsParent() bool {
	return u.Role == RoleParent
}

// Actor is the already-authenticated identity performing an operation
type Actor struct {
	UserID string
	Role   Role
}
