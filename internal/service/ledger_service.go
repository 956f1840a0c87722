package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"familydose/internal/apperr"
	"familydose/internal/database"
	"familydose/internal/lock"
	"familydose/internal/models"
	"familydose/internal/repository"
)

// CompleteDoseRequest records what a user actually took in one bucket today
type CompleteDoseRequest struct {
	UserID     string           `json:"user_id"`
	ItemID     string           `json:"item_id"`
	Time       models.TimeOfDay `json:"time_of_day"`
	ActualDose int              `json:"actual_dose"`
	Notes      string           `json:"notes,omitempty"`
}

// LedgerService records intake events and derives adherence statistics
type LedgerService struct {
	db    *database.DB
	repos *repository.Repositories
	locks *lock.Keyed
	clock WallClock
	log   *zap.Logger
}

// NewLedgerService creates a new dose ledger service
func NewLedgerService(db *database.DB, repos *repository.Repositories, locks *lock.Keyed, clock WallClock, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		db:    db,
		repos: repos,
		locks: locks,
		clock: clock,
		log:   logger,
	}
}

// CompleteDose creates or overwrites today's ledger row for (user, item, time of day).
// The planned dose is taken from today's schedule entry when the row is first written.
func (s *LedgerService) CompleteDose(ctx context.Context, actor models.Actor, req CompleteDoseRequest) (*models.DoseHistoryEntry, error) {
	tod, err := models.ParseTimeOfDay(string(req.Time))
	if err != nil {
		return nil, apperr.Invalidf("%v", err)
	}
	if req.ActualDose < 0 {
		return nil, apperr.Invalidf("actual dose cannot be negative")
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
	if _, err := loadItem(ctx, s.repos.Catalog, req.ItemID, user.Connect); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	date := now.Format(models.DateLayout)
	notes := strings.TrimSpace(req.Notes)

	unlock, err := s.locks.Lock(ctx, lock.DoseKey(user.ID, req.ItemID, date, string(tod)))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var entry *models.DoseHistoryEntry
	err = s.db.InTx(ctx, func(tx *database.Tx) error {
		repos := repository.New(tx)

		existing, err := repos.Doses.Get(ctx, user.ID, req.ItemID, date, tod)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.ActualDose = req.ActualDose
			existing.Status = models.StatusFor(existing.ScheduledDose, req.ActualDose)
			existing.CompletedAt = now
			if notes != "" {
				existing.Notes = notes
			}
			entry = existing
			return repos.Doses.UpdateCompletion(ctx, existing)
		}

		scheduled := req.ActualDose
		planned, err := repos.Schedules.GetEntry(ctx, user.ID, req.ItemID, models.WeekdayOf(now), tod)
		if err != nil {
			return err
		}
		if planned != nil {
			scheduled = planned.Dose
		}

		entry = &models.DoseHistoryEntry{
			ID:            uuid.NewString(),
			Connect:       user.Connect,
			UserID:        user.ID,
			ItemID:        req.ItemID,
			DoseDate:      date,
			Time:          tod,
			ScheduledDose: scheduled,
			ActualDose:    req.ActualDose,
			Status:        models.StatusFor(scheduled, req.ActualDose),
			CompletedAt:   now,
			Notes:         notes,
		}
		err = repos.Doses.Create(ctx, entry)
		if errors.Is(err, repository.ErrDuplicate) {
			return apperr.Busyf("dose for %s %s was recorded concurrently, try again", req.ItemID, tod)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("dose recorded",
		zap.String("user_id", user.ID),
		zap.String("item_id", req.ItemID),
		zap.String("time_of_day", string(tod)),
		zap.Int("actual", entry.ActualDose),
		zap.String("status", string(entry.Status)),
	)
	return entry, nil
}

// TodayProgress counts today's ledger rows for a user
func (s *LedgerService) TodayProgress(ctx context.Context, userID string) (*models.Progress, error) {
	if _, err := loadUser(ctx, s.repos.Users, userID); err != nil {
		return nil, err
	}
	today := s.clock.Today()
	entries, err := s.repos.Doses.ListForUser(ctx, userID, today, today)
	if err != nil {
		return nil, err
	}

	var p models.Progress
	for _, e := range entries {
		p.Add(e.Status)
	}
	p.CompletionRate = models.CompletionRate(p.Completed, p.Scheduled)
	return &p, nil
}

// WeeklyStats covers seven days from start, or from this week's Monday when start is empty
func (s *LedgerService) WeeklyStats(ctx context.Context, userID, start string) (*models.WeeklyStats, error) {
	if _, err := loadUser(ctx, s.repos.Users, userID); err != nil {
		return nil, err
	}

	first := WeekStart(s.clock.Now())
	if start != "" {
		var err error
		if first, err = s.clock.ParseDate(start); err != nil {
			return nil, apperr.Invalidf("start must be YYYY-MM-DD")
		}
	}
	last := first.AddDate(0, 0, 6)

	stats := &models.WeeklyStats{
		StartDate: first.Format(models.DateLayout),
		EndDate:   last.Format(models.DateLayout),
		Daily:     make([]models.DailyStats, 7),
	}
	index := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		date := first.AddDate(0, 0, i).Format(models.DateLayout)
		stats.Daily[i].Date = date
		index[date] = i
	}

	entries, err := s.repos.Doses.ListForUser(ctx, userID, stats.StartDate, stats.EndDate)
	if err != nil {
		return nil, err
	}

	var total models.Tally
	for _, e := range entries {
		total.Add(e.Status)
		if i, ok := index[e.DoseDate]; ok {
			stats.Daily[i].Add(e.Status)
		}
	}
	for i := range stats.Daily {
		d := &stats.Daily[i]
		d.CompletionRate = models.CompletionRate(d.Completed, d.Scheduled)
	}

	stats.TotalScheduled = total.Scheduled
	stats.TotalCompleted = total.Completed
	stats.PartialDoses = total.Partial
	stats.MissedDoses = total.Missed
	stats.CompletionRate = models.CompletionRate(total.Completed, total.Scheduled)
	return stats, nil
}

func (s *LedgerService) members(ctx context.Context, connect string) ([]models.User, error) {
	members, err := s.repos.Users.ListByConnect(ctx, connect)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, apperr.NotFoundf("household %s not found", connect)
	}
	return members, nil
}

// FamilyStats counts today's ledger rows across the household
func (s *LedgerService) FamilyStats(ctx context.Context, connect string) (*models.FamilyStats, error) {
	members, err := s.members(ctx, connect)
	if err != nil {
		return nil, err
	}
	today := s.clock.Today()
	entries, err := s.repos.Doses.ListForConnectDate(ctx, connect, today)
	if err != nil {
		return nil, err
	}

	stats := &models.FamilyStats{Connect: connect, Date: today, MemberCount: len(members)}
	for _, e := range entries {
		stats.Add(e.Status)
	}
	stats.CompletionRate = models.CompletionRate(stats.Completed, stats.Scheduled)
	return stats, nil
}

type doseKey struct {
	userID string
	itemID string
	time   models.TimeOfDay
}

// DetailedFamilyStats compares today's schedule with today's ledger per bucket and member.
// A scheduled dose with no ledger row counts as missed once its bucket has elapsed.
func (s *LedgerService) DetailedFamilyStats(ctx context.Context, connect string) (*models.DetailedFamilyStats, error) {
	members, err := s.members(ctx, connect)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	today := now.Format(models.DateLayout)
	planned, err := s.repos.Schedules.ListDay(ctx, connect, "", models.WeekdayOf(now))
	if err != nil {
		return nil, err
	}
	recorded, err := s.repos.Doses.ListForConnectDate(ctx, connect, today)
	if err != nil {
		return nil, err
	}

	// Every planned or recorded dose counts once.
	outcome := make(map[doseKey]models.DoseStatus)
	for _, p := range planned {
		outcome[doseKey{p.UserID, p.ItemID, p.Time}] = ""
	}
	for _, r := range recorded {
		outcome[doseKey{r.UserID, r.ItemID, r.Time}] = r.Status
	}

	stats := &models.DetailedFamilyStats{
		Connect:     connect,
		Date:        today,
		MemberCount: len(members),
		ByTime:      make(map[models.TimeOfDay]models.BucketStats, len(models.TimesOfDay)),
		Members:     make([]models.MemberStats, 0, len(members)),
	}
	byMember := make(map[string]*models.BucketStats, len(members))
	for _, m := range members {
		stats.Members = append(stats.Members, models.MemberStats{UserID: m.ID, Name: m.Name, Role: m.Role})
	}
	for i := range stats.Members {
		byMember[stats.Members[i].UserID] = &stats.Members[i].BucketStats
	}
	byTime := make(map[models.TimeOfDay]*models.BucketStats, len(models.TimesOfDay))
	for _, tod := range models.TimesOfDay {
		byTime[tod] = &models.BucketStats{Past: tod.IsPast(now.Hour())}
	}

	for key, status := range outcome {
		if status == "" && key.time.IsPast(now.Hour()) {
			status = models.StatusMissed
		}
		buckets := []*models.BucketStats{&stats.Overall, byTime[key.time]}
		if m, ok := byMember[key.userID]; ok {
			buckets = append(buckets, m)
		}
		for _, b := range buckets {
			if status == "" {
				b.Scheduled++
			} else {
				b.Add(status)
			}
		}
	}

	stats.Overall.Finish()
	for _, tod := range models.TimesOfDay {
		byTime[tod].Finish()
		stats.ByTime[tod] = *byTime[tod]
	}
	for i := range stats.Members {
		stats.Members[i].Finish()
	}
	return stats, nil
}

// History returns a user's ledger newest first
func (s *LedgerService) History(ctx context.Context, userID string, filter models.HistoryFilter) ([]models.DoseHistoryEntry, error) {
	if _, err := loadUser(ctx, s.repos.Users, userID); err != nil {
		return nil, err
	}
	for _, d := range []string{filter.From, filter.To} {
		if d == "" {
			continue
		}
		if _, err := s.clock.ParseDate(d); err != nil {
			return nil, apperr.Invalidf("dates must be YYYY-MM-DD")
		}
	}
	return s.repos.Doses.History(ctx, userID, filter)
}

// CompletionStatus reports, per item, which buckets of date are completed.
// Items scheduled that weekday are listed even with nothing recorded.
func (s *LedgerService) CompletionStatus(ctx context.Context, userID, itemID, date string) ([]models.CompletionStatus, error) {
	user, err := loadUser(ctx, s.repos.Users, userID)
	if err != nil {
		return nil, err
	}

	day := s.clock.Now()
	if date != "" {
		if day, err = s.clock.ParseDate(date); err != nil {
			return nil, apperr.Invalidf("date must be YYYY-MM-DD")
		}
	}
	date = day.Format(models.DateLayout)

	byItem := make(map[string]*models.CompletionStatus)
	track := func(id string) *models.CompletionStatus {
		st, ok := byItem[id]
		if !ok {
			st = &models.CompletionStatus{ItemID: id, Date: date}
			byItem[id] = st
		}
		return st
	}

	if itemID != "" {
		track(itemID)
	} else {
		planned, err := s.repos.Schedules.ListDay(ctx, user.Connect, user.ID, models.WeekdayOf(day))
		if err != nil {
			return nil, err
		}
		for _, p := range planned {
			track(p.ItemID)
		}
	}

	entries, err := s.repos.Doses.History(ctx, user.ID, models.HistoryFilter{ItemID: itemID, From: date, To: date})
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		st := track(e.ItemID)
		if e.Status == models.StatusCompleted {
			st.Set(e.Time)
		}
	}

	out := make([]models.CompletionStatus, 0, len(byItem))
	for _, st := range byItem {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}
