package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"familydose/internal/apperr"
	"familydose/internal/database"
	"familydose/internal/lock"
	"familydose/internal/models"
	"familydose/internal/repository"
	"familydose/internal/validation"
)

// NewItem is the input for adding a catalog item
type NewItem struct {
	ItemID      string          `json:"item_id"`
	Name        string          `json:"name"`
	Kind        models.ItemKind `json:"kind"`
	Warning     bool            `json:"warning"`
	StartDate   string          `json:"start_date,omitempty"`
	EndDate     string          `json:"end_date,omitempty"`
	TargetUsers []string        `json:"target_users"`
}

// ItemPatch changes selected fields of a catalog item. Nil fields are kept.
// A non-nil TargetUsers pointing at an empty list makes the item shared.
type ItemPatch struct {
	Name        *string   `json:"name,omitempty"`
	Warning     *bool     `json:"warning,omitempty"`
	StartDate   *string   `json:"start_date,omitempty"`
	EndDate     *string   `json:"end_date,omitempty"`
	TargetUsers *[]string `json:"target_users,omitempty"`
}

// CatalogService manages a household's medicines and supplements
type CatalogService struct {
	db    *database.DB
	repos *repository.Repositories
	locks *lock.Keyed
	drugs DrugLookup
	log   *zap.Logger
}

// NewCatalogService creates a new catalog service. drugs may be nil.
func NewCatalogService(db *database.DB, repos *repository.Repositories, locks *lock.Keyed, drugs DrugLookup, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		db:    db,
		repos: repos,
		locks: locks,
		drugs: drugs,
		log:   logger,
	}
}

// normalizeTargets dedupes the target list and maps an empty list to shared
func (s *CatalogService) normalizeTargets(ctx context.Context, connect string, targets []string) ([]string, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	members, err := s.repos.Users.ListByConnect(ctx, connect)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(members))
	for _, m := range members {
		known[m.ID] = true
	}

	seen := make(map[string]bool, len(targets))
	out := make([]string, 0, len(targets))
	for _, id := range targets {
		if seen[id] {
			continue
		}
		if !known[id] {
			return nil, apperr.Invalidf("target user %s is not in this household", id)
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// AddItem creates a catalog item in the requester's household
func (s *CatalogService) AddItem(ctx context.Context, actor models.Actor, in NewItem) (*models.CatalogItem, error) {
	requester, err := loadActor(ctx, s.repos.Users, actor)
	if err != nil {
		return nil, err
	}
	if err := requireParent(requester, "add catalog items"); err != nil {
		return nil, err
	}

	if err := validation.ValidateItemID("item_id", in.ItemID); err != nil {
		return nil, invalid(err)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Invalidf("name is required")
	}
	kind, err := models.ParseItemKind(string(in.Kind))
	if err != nil {
		return nil, apperr.Invalidf("%v", err)
	}
	if err := validation.ValidateDateRange(in.StartDate, in.EndDate); err != nil {
		return nil, invalid(err)
	}
	targets, err := s.normalizeTargets(ctx, requester.Connect, in.TargetUsers)
	if err != nil {
		return nil, err
	}

	item := &models.CatalogItem{
		ItemID:      in.ItemID,
		Connect:     requester.Connect,
		Name:        strings.TrimSpace(in.Name),
		Kind:        kind,
		Warning:     in.Warning,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		TargetUsers: targets,
	}
	if err := s.repos.Catalog.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflictf("item %s already exists", in.ItemID)
		}
		return nil, err
	}

	s.log.Info("catalog item added", zap.String("connect", item.Connect), zap.String("item_id", item.ItemID))
	return s.repos.Catalog.Get(ctx, item.ItemID, item.Connect)
}

// ListForUser lists the user's household catalog with the user's permission on each item
func (s *CatalogService) ListForUser(ctx context.Context, userID string) ([]models.CatalogEntry, error) {
	user, err := loadUser(ctx, s.repos.Users, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.repos.Catalog.ListByConnect(ctx, user.Connect)
	if err != nil {
		return nil, err
	}
	slots, err := s.repos.Slots.ListByConnect(ctx, user.Connect)
	if err != nil {
		return nil, err
	}
	byItem := make(map[string]*models.SlotAssignment, len(slots))
	for i := range slots {
		byItem[slots[i].ItemID] = &slots[i]
	}

	entries := make([]models.CatalogEntry, 0, len(items))
	for i := range items {
		entries = append(entries, models.CatalogEntry{
			CatalogItem: items[i],
			Permission:  items[i].PermissionFor(user),
			Slot:        byItem[items[i].ItemID],
		})
	}
	return entries, nil
}

// GetItem retrieves one catalog item
func (s *CatalogService) GetItem(ctx context.Context, itemID, connect string) (*models.CatalogItem, error) {
	return loadItem(ctx, s.repos.Catalog, itemID, connect)
}

// SearchItems finds household items whose name contains fragment, ignoring case
func (s *CatalogService) SearchItems(ctx context.Context, connect, fragment string) ([]models.CatalogItem, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, apperr.Invalidf("search text is required")
	}
	return s.repos.Catalog.SearchByName(ctx, connect, fragment)
}

// UpdateItem applies a patch to a catalog item
func (s *CatalogService) UpdateItem(ctx context.Context, actor models.Actor, itemID string, patch ItemPatch) (*models.CatalogItem, error) {
	requester, err := loadActor(ctx, s.repos.Users, actor)
	if err != nil {
		return nil, err
	}
	if err := requireParent(requester, "edit catalog items"); err != nil {
		return nil, err
	}
	item, err := loadItem(ctx, s.repos.Catalog, itemID, requester.Connect)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Invalidf("name is required")
		}
		item.Name = name
	}
	if patch.Warning != nil {
		item.Warning = *patch.Warning
	}
	if patch.StartDate != nil {
		item.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		item.EndDate = *patch.EndDate
	}
	if err := validation.ValidateDateRange(item.StartDate, item.EndDate); err != nil {
		return nil, invalid(err)
	}
	if patch.TargetUsers != nil {
		targets, err := s.normalizeTargets(ctx, requester.Connect, *patch.TargetUsers)
		if err != nil {
			return nil, err
		}
		item.TargetUsers = targets
	}

	if err := s.repos.Catalog.Update(ctx, item); err != nil {
		return nil, err
	}
	return s.repos.Catalog.Get(ctx, item.ItemID, item.Connect)
}

// DeleteItem removes an item with its schedules and slot in one transaction
func (s *CatalogService) DeleteItem(ctx context.Context, actor models.Actor, itemID string) error {
	requester, err := loadActor(ctx, s.repos.Users, actor)
	if err != nil {
		return err
	}
	if err := requireParent(requester, "delete catalog items"); err != nil {
		return err
	}
	connect := requester.Connect

	var freed int
	err = householdTx(ctx, s.db, s.locks, connect, func(repos *repository.Repositories) error {
		if _, err := loadItem(ctx, repos.Catalog, itemID, connect); err != nil {
			return err
		}
		slot, err := repos.Slots.Get(ctx, connect, itemID)
		if err != nil {
			return err
		}
		if slot != nil {
			freed = slot.Slot
		}

		if err := repos.Schedules.DeleteForItem(ctx, connect, itemID); err != nil {
			return err
		}
		if _, err := repos.Slots.Delete(ctx, connect, itemID); err != nil {
			return err
		}
		n, err := repos.Catalog.Delete(ctx, itemID, connect)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFoundf("item %s not found", itemID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("catalog item deleted",
		zap.String("connect", connect),
		zap.String("item_id", itemID),
		zap.Int("slot", freed),
	)
	return nil
}

// LookupDrug searches the external drug registry by name
func (s *CatalogService) LookupDrug(ctx context.Context, name string) ([]models.DrugInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalidf("drug name is required")
	}
	if s.drugs == nil {
		return nil, apperr.NotFoundf("drug lookup is not configured")
	}
	drugs, err := s.drugs.Search(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up drug: %w", err)
	}
	return drugs, nil
}

// CheckAge runs the age gate for a user against an item's contraindication text.
// With no text given, the registry's warning text for the item name is used when available.
func (s *CatalogService) CheckAge(ctx context.Context, userID, itemID, text string) (*validation.AgeCheck, error) {
	user, err := loadUser(ctx, s.repos.Users, userID)
	if err != nil {
		return nil, err
	}
	if user.Age == nil {
		return nil, apperr.Invalidf("user %s has no age on file", userID)
	}
	item, err := loadItem(ctx, s.repos.Catalog, itemID, user.Connect)
	if err != nil {
		return nil, err
	}

	if text == "" && s.drugs != nil {
		drugs, err := s.drugs.Search(ctx, item.Name)
		if err != nil {
			s.log.Warn("drug lookup failed during age check", zap.String("item_id", itemID), zap.Error(err))
		} else if len(drugs) > 0 {
			text = drugs[0].Warnings
		}
	}

	check := validation.CheckAge(*user.Age, text)
	return &check, nil
}
