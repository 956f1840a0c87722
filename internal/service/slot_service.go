package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"familydose/internal/apperr"
	"familydose/internal/database"
	"familydose/internal/lock"
	"familydose/internal/models"
	"familydose/internal/repository"
)

// SlotService allocates dispenser slots and tracks their stock
type SlotService struct {
	db        *database.DB
	repos     *repository.Repositories
	locks     *lock.Keyed
	capacity  int
	threshold int
	notifier  Notifier
	log       *zap.Logger
}

// NewSlotService creates a slot allocator for dispensers with capacity slots.
// Refill alerts go out when a slot's remain drops to threshold or below.
func NewSlotService(db *database.DB, repos *repository.Repositories, locks *lock.Keyed, capacity, threshold int, notifier Notifier, logger *zap.Logger) *SlotService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &SlotService{
		db:        db,
		repos:     repos,
		locks:     locks,
		capacity:  capacity,
		threshold: threshold,
		notifier:  notifier,
		log:       logger,
	}
}

// Capacity returns the number of slots per dispenser
func (s *SlotService) Capacity() int {
	return s.capacity
}

// firstFit returns the lowest free slot in 1..capacity
func firstFit(used map[int]bool, capacity int) (int, bool) {
	for slot := 1; slot <= capacity; slot++ {
		if !used[slot] {
			return slot, true
		}
	}
	return 0, false
}

// pickSlot chooses a slot for a new assignment given the household's current ones
func pickSlot(assigned []models.SlotAssignment, requested *int, capacity int) (int, error) {
	used := make(map[int]bool, len(assigned))
	for _, a := range assigned {
		used[a.Slot] = true
	}

	if requested != nil {
		slot := *requested
		if slot < 1 || slot > capacity {
			return 0, apperr.Invalidf("slot %d is outside 1..%d", slot, capacity)
		}
		if used[slot] {
			return 0, apperr.Conflictf("slot %d is already occupied", slot)
		}
		return slot, nil
	}

	slot, ok := firstFit(used, capacity)
	if !ok {
		return 0, apperr.Exhaustedf("no available slot: all %d slots are in use", capacity)
	}
	return slot, nil
}

// assignTx places an item into a slot inside an open household transaction
func (s *SlotService) assignTx(ctx context.Context, repos *repository.Repositories, connect, itemID string, requested *int, total int) (*models.SlotAssignment, error) {
	assigned, err := repos.Slots.ListByConnect(ctx, connect)
	if err != nil {
		return nil, err
	}
	for _, a := range assigned {
		if a.ItemID == itemID {
			return nil, apperr.Conflictf("item %s already occupies slot %d", itemID, a.Slot)
		}
	}

	slot, err := pickSlot(assigned, requested, s.capacity)
	if err != nil {
		return nil, err
	}

	a := &models.SlotAssignment{Connect: connect, ItemID: itemID, Slot: slot, Total: total, Remain: total}
	if err := repos.Slots.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflictf("slot %d is already occupied", slot)
		}
		return nil, err
	}

	s.log.Info("slot assigned",
		zap.String("connect", connect),
		zap.String("item_id", itemID),
		zap.Int("slot", slot),
		zap.Int("total", total),
	)
	return a, nil
}

// writeQuantityTx resets an item's stock to total, allocating a slot first if it has none
func (s *SlotService) writeQuantityTx(ctx context.Context, repos *repository.Repositories, connect, itemID string, total int) (*models.SlotAssignment, error) {
	existing, err := repos.Slots.Get(ctx, connect, itemID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return s.assignTx(ctx, repos, connect, itemID, nil, total)
	}
	if err := repos.Slots.SetQuantity(ctx, connect, itemID, total, total); err != nil {
		return nil, err
	}
	existing.Total, existing.Remain = total, total
	return existing, nil
}

// loadWritable resolves the caller and item and reports whether the caller may write shared stock
func (s *SlotService) loadWritable(ctx context.Context, actor models.Actor, itemID string) (*models.User, *models.CatalogItem, bool, error) {
	requester, err := loadActor(ctx, s.repos.Users, actor)
	if err != nil {
		return nil, nil, false, err
	}
	item, err := loadItem(ctx, s.repos.Catalog, itemID, requester.Connect)
	if err != nil {
		return nil, nil, false, err
	}
	return requester, item, models.CanWriteSharedQuantity(requester.Role, item.IsSoleOwner(requester.ID)), nil
}

// Assign puts an item into the requested slot, or the first free one
func (s *SlotService) Assign(ctx context.Context, actor models.Actor, itemID string, requested *int, total int) (*models.SlotAssignment, error) {
	if total <= 0 {
		return nil, apperr.Invalidf("total must be a positive number")
	}
	requester, _, writable, err := s.loadWritable(ctx, actor, itemID)
	if err != nil {
		return nil, err
	}
	if !writable {
		return nil, apperr.Forbiddenf("only a parent or the item's sole owner may assign its slot")
	}

	var a *models.SlotAssignment
	err = householdTx(ctx, s.db, s.locks, requester.Connect, func(repos *repository.Repositories) error {
		var err error
		a, err = s.assignTx(ctx, repos, requester.Connect, itemID, requested, total)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Release frees an item's slot
func (s *SlotService) Release(ctx context.Context, actor models.Actor, itemID string) error {
	requester, err := loadActor(ctx, s.repos.Users, actor)
	if err != nil {
		return err
	}
	if err := requireParent(requester, "release a slot"); err != nil {
		return err
	}

	err = householdTx(ctx, s.db, s.locks, requester.Connect, func(repos *repository.Repositories) error {
		n, err := repos.Slots.Delete(ctx, requester.Connect, itemID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFoundf("item %s has no slot", itemID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("slot released", zap.String("connect", requester.Connect), zap.String("item_id", itemID))
	return nil
}

// AdjustQuantity resets an item's total and remain. A caller who may not write
// shared stock is ignored rather than refused; applied reports which happened.
func (s *SlotService) AdjustQuantity(ctx context.Context, actor models.Actor, itemID string, newTotal int) (applied bool, err error) {
	if newTotal <= 0 {
		return false, apperr.Invalidf("total must be a positive number")
	}
	requester, _, writable, err := s.loadWritable(ctx, actor, itemID)
	if err != nil {
		return false, err
	}
	if !writable {
		s.log.Info("shared quantity write ignored",
			zap.String("connect", requester.Connect),
			zap.String("item_id", itemID),
			zap.String("user_id", requester.ID),
		)
		return false, nil
	}

	err = householdTx(ctx, s.db, s.locks, requester.Connect, func(repos *repository.Repositories) error {
		_, err := s.writeQuantityTx(ctx, repos, requester.Connect, itemID, newTotal)
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// dispense decrements stock under the household lock and returns the new remain
func (s *SlotService) dispense(ctx context.Context, connect, itemID string, count int) (*models.SlotAssignment, error) {
	if count <= 0 {
		return nil, apperr.Invalidf("count must be a positive number")
	}

	var slot *models.SlotAssignment
	err := householdTx(ctx, s.db, s.locks, connect, func(repos *repository.Repositories) error {
		current, err := repos.Slots.Get(ctx, connect, itemID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperr.NotFoundf("item %s has no slot", itemID)
		}
		ok, err := repos.Slots.Decrement(ctx, connect, itemID, count)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflictf("not enough left in slot %d: %d remaining, %d requested", current.Slot, current.Remain, count)
		}
		current.Remain -= count
		slot = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if slot.Remain <= s.threshold {
		s.alertLowStock(ctx, connect, slot)
	}
	return slot, nil
}

// Dispense takes count units out of an item's slot and returns the new remain
func (s *SlotService) Dispense(ctx context.Context, actor models.Actor, itemID string, count int) (int, error) {
	requester, err := loadActor(ctx, s.repos.Users, actor)
	if err != nil {
		return 0, err
	}
	slot, err := s.dispense(ctx, requester.Connect, itemID, count)
	if err != nil {
		return 0, err
	}

	s.log.Info("dispensed",
		zap.String("connect", requester.Connect),
		zap.String("item_id", itemID),
		zap.Int("slot", slot.Slot),
		zap.Int("count", count),
		zap.Int("remain", slot.Remain),
		zap.String("user_id", requester.ID),
	)
	return slot.Remain, nil
}

// ManualDispense is a parent-initiated dispense outside the schedule
func (s *SlotService) ManualDispense(ctx context.Context, actor models.Actor, itemID string, count int, reason string) (int, error) {
	why, err := models.ParseDispenseReason(reason)
	if err != nil {
		return 0, apperr.Invalidf("%v", err)
	}
	requester, err := loadActor(ctx, s.repos.Users, actor)
	if err != nil {
		return 0, err
	}
	if err := requireParent(requester, "dispense manually"); err != nil {
		return 0, err
	}

	slot, err := s.dispense(ctx, requester.Connect, itemID, count)
	if err != nil {
		return 0, err
	}

	s.log.Info("manual dispense",
		zap.String("connect", requester.Connect),
		zap.String("item_id", itemID),
		zap.Int("slot", slot.Slot),
		zap.Int("count", count),
		zap.Int("remain", slot.Remain),
		zap.String("reason", string(why)),
	)
	return slot.Remain, nil
}

// ListSlots returns a household's slot map ordered by slot
func (s *SlotService) ListSlots(ctx context.Context, connect string) ([]models.SlotView, error) {
	return s.repos.Slots.ListViews(ctx, connect)
}

// alertLowStock notifies the parent about one low slot. Failures are only logged.
func (s *SlotService) alertLowStock(ctx context.Context, connect string, slot *models.SlotAssignment) {
	parent, err := s.repos.Users.GetParentByConnect(ctx, connect)
	if err != nil || parent == nil {
		s.log.Warn("low stock alert skipped: parent not found", zap.String("connect", connect), zap.Error(err))
		return
	}
	name := slot.ItemID
	if item, err := s.repos.Catalog.Get(ctx, slot.ItemID, connect); err == nil && item != nil {
		name = item.Name
	}

	low := []models.LowStock{{
		Connect:  connect,
		ItemID:   slot.ItemID,
		ItemName: name,
		Slot:     slot.Slot,
		Remain:   slot.Remain,
		Total:    slot.Total,
	}}
	if err := s.notifier.NotifyLowStock(ctx, parent, low); err != nil {
		s.log.Warn("low stock alert failed",
			zap.String("connect", connect),
			zap.String("item_id", slot.ItemID),
			zap.Error(err),
		)
	}
}

// SendRefillDigest notifies every household with low slots once and returns how many were notified
func (s *SlotService) SendRefillDigest(ctx context.Context) (int, error) {
	low, err := s.repos.Slots.ListLow(ctx, "", s.threshold)
	if err != nil {
		return 0, err
	}

	byConnect := make(map[string][]models.LowStock)
	for _, l := range low {
		byConnect[l.Connect] = append(byConnect[l.Connect], l)
	}
	connects := make([]string, 0, len(byConnect))
	for c := range byConnect {
		connects = append(connects, c)
	}
	sort.Strings(connects)

	sent := 0
	for _, connect := range connects {
		parent, err := s.repos.Users.GetParentByConnect(ctx, connect)
		if err != nil || parent == nil {
			s.log.Warn("refill digest skipped: parent not found", zap.String("connect", connect), zap.Error(err))
			continue
		}
		if err := s.notifier.NotifyLowStock(ctx, parent, byConnect[connect]); err != nil {
			s.log.Warn("refill digest failed", zap.String("connect", connect), zap.Error(err))
			continue
		}
		sent++
	}

	s.log.Info("refill digest finished", zap.Int("households", len(connects)), zap.Int("notified", sent))
	return sent, nil
}
