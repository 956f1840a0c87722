package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"familydose/internal/apperr"
	"familydose/internal/database"
	"familydose/internal/lock"
	"familydose/internal/models"
	"familydose/internal/repository"
)

// DefaultDose is used when no dose can be found anywhere
const DefaultDose = 1

// DoseSources are the candidate doses for one grid cell, in precedence order
type DoseSources struct {
	Entry           *int
	Uniform         *int
	HouseholdLatest *int
	OwnLatest       *int
}

// ResolveDose returns the first positive source, or DefaultDose
func ResolveDose(src DoseSources) int {
	for _, d := range []*int{src.Entry, src.Uniform, src.HouseholdLatest, src.OwnLatest} {
		if d != nil && *d > 0 {
			return *d
		}
	}
	return DefaultDose
}

// SaveScheduleRequest replaces one user's weekly schedule for one item
type SaveScheduleRequest struct {
	ItemID      string                 `json:"item_id"`
	UserID      string                 `json:"user_id"`
	Entries     []models.ScheduleInput `json:"entries"`
	Total       *int                   `json:"total,omitempty"`
	UniformDose *int                   `json:"dose,omitempty"`
}

// SaveScheduleResult is the stored grid and whether the requested total was written
type SaveScheduleResult struct {
	Grid            *models.ScheduleGrid `json:"grid"`
	QuantityApplied bool                 `json:"quantity_applied"`
}

// ScheduleService owns the weekly dosing grid
type ScheduleService struct {
	db    *database.DB
	repos *repository.Repositories
	locks *lock.Keyed
	slots *SlotService
	clock WallClock
	log   *zap.Logger
}

// NewScheduleService creates a new schedule service
func NewScheduleService(db *database.DB, repos *repository.Repositories, locks *lock.Keyed, slots *SlotService, clock WallClock, logger *zap.Logger) *ScheduleService {
	return &ScheduleService{
		db:    db,
		repos: repos,
		locks: locks,
		slots: slots,
		clock: clock,
		log:   logger,
	}
}

func validateScheduleRequest(req SaveScheduleRequest) error {
	if req.UniformDose != nil && *req.UniformDose <= 0 {
		return apperr.Invalidf("dose must be a positive number")
	}
	if req.Total != nil && *req.Total <= 0 {
		return apperr.Invalidf("total must be a positive number")
	}

	seen := make(map[[2]int]bool, len(req.Entries))
	for _, e := range req.Entries {
		d, t := e.Day.Index(), e.Time.Index()
		if d < 0 {
			return apperr.Invalidf("unknown day of week %q", e.Day)
		}
		if t < 0 {
			return apperr.Invalidf("unknown time of day %q", e.Time)
		}
		if e.Dose != nil && *e.Dose <= 0 {
			return apperr.Invalidf("dose for %s %s must be a positive number", e.Day, e.Time)
		}
		cell := [2]int{d, t}
		if seen[cell] {
			return apperr.Invalidf("%s %s is listed twice", e.Day, e.Time)
		}
		seen[cell] = true
	}
	return nil
}

func latest(dose int, ok bool) *int {
	if !ok {
		return nil
	}
	return &dose
}

// SaveSchedule replaces the user's entries for the item in one transaction.
// Omitted doses are inherited, and a requested total is written only by a
// caller allowed to change shared stock.
func (s *ScheduleService) SaveSchedule(ctx context.Context, actor models.Actor, req SaveScheduleRequest) (*SaveScheduleResult, error) {
	if err := validateScheduleRequest(req); err != nil {
		return nil, err
	}

	requester, err := loadActor(ctx, s.repos.Users, actor)
	if err != nil {
		return nil, err
	}
	user, err := loadUser(ctx, s.repos.Users, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := requireSelfOrParent(requester, user); err != nil {
		return nil, err
	}
	item, err := loadItem(ctx, s.repos.Catalog, req.ItemID, user.Connect)
	if err != nil {
		return nil, err
	}
	if item.PermissionFor(user) == models.PermissionOthers {
		return nil, apperr.Forbiddenf("item %s is reserved for other members", item.ItemID)
	}
	writable := models.CanWriteSharedQuantity(requester.Role, item.IsSoleOwner(requester.ID))

	var (
		stored  []models.ScheduleEntry
		applied bool
	)
	err = householdTx(ctx, s.db, s.locks, user.Connect, func(repos *repository.Repositories) error {
		// Inherited doses are read before the old entries go away.
		others, ok, err := repos.Schedules.LatestDoseByOthers(ctx, user.Connect, item.ItemID, user.ID)
		if err != nil {
			return err
		}
		householdLatest := latest(others, ok)
		own, ok, err := repos.Schedules.LatestDoseForUser(ctx, user.ID, item.ItemID)
		if err != nil {
			return err
		}
		ownLatest := latest(own, ok)

		if err := repos.Schedules.DeleteForUserItem(ctx, user.ID, item.ItemID); err != nil {
			return err
		}

		stored = make([]models.ScheduleEntry, 0, len(req.Entries))
		for _, in := range req.Entries {
			e := models.ScheduleEntry{
				UserID:  user.ID,
				ItemID:  item.ItemID,
				Connect: user.Connect,
				Day:     in.Day,
				Time:    in.Time,
				Dose: ResolveDose(DoseSources{
					Entry:           in.Dose,
					Uniform:         req.UniformDose,
					HouseholdLatest: householdLatest,
					OwnLatest:       ownLatest,
				}),
			}
			if err := repos.Schedules.Insert(ctx, &e); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return apperr.Invalidf("%s %s is listed twice", in.Day, in.Time)
				}
				return err
			}
			stored = append(stored, e)
		}

		if req.Total == nil {
			return nil
		}
		if !writable {
			s.log.Info("shared quantity write ignored",
				zap.String("connect", user.Connect),
				zap.String("item_id", item.ItemID),
				zap.String("user_id", requester.ID),
				zap.Int("total", *req.Total),
			)
			return nil
		}
		if _, err := s.slots.writeQuantityTx(ctx, repos, user.Connect, item.ItemID, *req.Total); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	grid := models.NewScheduleGrid(item.ItemID, user.ID, stored)
	if grid.Slot, err = s.repos.Slots.Get(ctx, user.Connect, item.ItemID); err != nil {
		return nil, err
	}

	s.log.Info("schedule saved",
		zap.String("connect", user.Connect),
		zap.String("item_id", item.ItemID),
		zap.String("user_id", user.ID),
		zap.Int("entries", len(stored)),
	)
	return &SaveScheduleResult{Grid: grid, QuantityApplied: applied}, nil
}

// GetSchedule returns the user's weekly grid for an item. No entries yields an
// empty grid, so an item id that is not in the catalog reads as unscheduled
// rather than NotFound.
func (s *ScheduleService) GetSchedule(ctx context.Context, itemID, userID string) (*models.ScheduleGrid, error) {
	user, err := loadUser(ctx, s.repos.Users, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repos.Schedules.ListForUserItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	grid := models.NewScheduleGrid(itemID, userID, entries)
	if grid.Slot, err = s.repos.Slots.Get(ctx, user.Connect, itemID); err != nil {
		return nil, err
	}
	return grid, nil
}

// GetExpectedDoseNow returns the dose due in the current time-of-day bucket.
// When nothing is due now, the next positive dose later today is reported instead.
func (s *ScheduleService) GetExpectedDoseNow(ctx context.Context, itemID, userID string) (*models.ExpectedDose, error) {
	if _, err := loadUser(ctx, s.repos.Users, userID); err != nil {
		return nil, err
	}
	entries, err := s.repos.Schedules.ListForUserItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	today := models.WeekdayOf(now)
	doses := make(map[models.TimeOfDay]int, len(models.TimesOfDay))
	for _, e := range entries {
		if e.Day == today {
			doses[e.Time] = e.Dose
		}
	}

	expected := &models.ExpectedDose{ItemID: itemID, UserID: userID}
	from := 0
	if current, ok := models.TimeOfDayAt(now.Hour()); ok {
		expected.TimeSlot = current
		if d := doses[current]; d > 0 {
			expected.Dose = d
			return expected, nil
		}
		from = current.Index() + 1
	}

	for _, tod := range models.TimesOfDay[from:] {
		if d := doses[tod]; d > 0 {
			expected.Next = &models.NextDose{TimeSlot: tod, Dose: d}
			break
		}
	}
	return expected, nil
}

func groupByTime(doses []models.TodayDose) map[models.TimeOfDay][]models.TodayDose {
	byTime := make(map[models.TimeOfDay][]models.TodayDose, len(models.TimesOfDay))
	for _, tod := range models.TimesOfDay {
		byTime[tod] = []models.TodayDose{}
	}
	for _, d := range doses {
		if d.Dose > 0 {
			byTime[d.Time] = append(byTime[d.Time], d)
		}
	}
	return byTime
}

// TodayForKit returns today's schedule for the owner of a daily kit
func (s *ScheduleService) TodayForKit(ctx context.Context, kitID string) (*models.KitSchedule, error) {
	user, err := s.repos.Users.GetByKitID(ctx, kitID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFoundf("kit %s is not paired", kitID)
	}

	now := s.clock.Now()
	day := models.WeekdayOf(now)
	doses, err := s.repos.Schedules.ListDay(ctx, user.Connect, user.ID, day)
	if err != nil {
		return nil, err
	}

	return &models.KitSchedule{
		KitID:  kitID,
		UserID: user.ID,
		Date:   now.Format(models.DateLayout),
		Day:    day,
		ByTime: groupByTime(doses),
	}, nil
}

// TodayForHousehold returns every member's entries for today's weekday
func (s *ScheduleService) TodayForHousehold(ctx context.Context, connect string) ([]models.TodayDose, error) {
	parent, err := s.repos.Users.GetParentByConnect(ctx, connect)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, apperr.NotFoundf("household %s not found", connect)
	}
	return s.repos.Schedules.ListDay(ctx, connect, "", models.WeekdayOf(s.clock.Now()))
}

// DispenserSchedule returns the entries of every user sharing a dispenser on
// the weekday of date, or of today when date is empty.
func (s *ScheduleService) DispenserSchedule(ctx context.Context, dispenserID, date string) ([]models.TodayDose, error) {
	parent, err := s.repos.Users.GetParentByDispenserID(ctx, dispenserID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, apperr.NotFoundf("dispenser %s is not paired", dispenserID)
	}

	day := s.clock.Now()
	if date != "" {
		if day, err = s.clock.ParseDate(date); err != nil {
			return nil, apperr.Invalidf("date must be YYYY-MM-DD")
		}
	}
	return s.repos.Schedules.ListDay(ctx, parent.Connect, "", models.WeekdayOf(day))
}
