package models

import (
	"fmt"
	"time"
)

// ItemKind distinguishes medicines from supplements
type ItemKind string

const (
	KindMedicine   ItemKind = "medicine"
	KindSupplement ItemKind = "supplement"
)

// ParseItemKind validates a kind string
func ParseItemKind(s string) (ItemKind, error) {
	switch ItemKind(s) {
	case KindMedicine, KindSupplement:
		return ItemKind(s), nil
	}
	return "", fmt.Errorf("unknown item kind %q", s)
}

// Permission is what a user may do with a catalog item's schedule
type Permission string

const (
	PermissionOwn    Permission = "own"
	PermissionOthers Permission = "others"
)

// CatalogItem is a medicine or supplement keyed by (ItemID, Connect).
// A nil TargetUsers means the item is shared by the whole household.
type CatalogItem struct {
	ItemID      string    `json:"item_id"`
	Connect     string    `json:"connect"`
	Name        string    `json:"name"`
	Kind        ItemKind  `json:"kind"`
	Warning     bool      `json:"warning"`
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	TargetUsers []string  `json:"target_users"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsShared reports whether the item is unrestricted
func (c *CatalogItem) IsShared() bool {
	return c.TargetUsers == nil
}

// IsTargeted reports whether userID is listed in the item's target users
func (c *CatalogItem) IsTargeted(userID string) bool {
	for _, id := range c.TargetUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// IsSoleOwner reports whether the item is restricted to userID alone
func (c *CatalogItem) IsSoleOwner(userID string) bool {
	return len(c.TargetUsers) == 1 && c.TargetUsers[0] == userID
}

// DropTarget removes userID from the target users and reports whether it was
// listed. An emptied list stays non-nil, leaving the item to parents only.
func (c *CatalogItem) DropTarget(userID string) bool {
	if !c.IsTargeted(userID) {
		return false
	}
	kept := make([]string, 0, len(c.TargetUsers)-1)
	for _, id := range c.TargetUsers {
		if id != userID {
			kept = append(kept, id)
		}
	}
	c.TargetUsers = kept
	return true
}

// PermissionFor computes what the given user may do with the item
func (c *CatalogItem) PermissionFor(u *User) Permission {
	if c.IsShared() || u.IsParent() || c.IsTargeted(u.ID) {
		return PermissionOwn
	}
	return PermissionOthers
}

// CatalogEntry is a catalog item as seen by one user
type CatalogEntry struct {
	CatalogItem
	Permission Permission      `json:"permission"`
	Slot       *SlotAssignment `json:"slot,omitempty"`
}
