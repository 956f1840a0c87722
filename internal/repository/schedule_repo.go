package repository

import (
	"context"
	"database/sql"
	"fmt"

	"familydose/internal/database"
	"familydose/internal/models"
)

// ScheduleRepository handles database operations for weekly schedule entries
type ScheduleRepository struct {
	db database.DBTX
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db database.DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// WithTx returns a repository bound to the transaction
func (r *ScheduleRepository) WithTx(tx *database.Tx) *ScheduleRepository {
	return &ScheduleRepository{db: tx}
}

const scheduleColumns = "id, user_id, item_id, connect, day_of_week, time_of_day, dose, created_at"

func scanScheduleEntry(row rowScanner) (*models.ScheduleEntry, error) {
	e := &models.ScheduleEntry{}
	err := row.Scan(&e.ID, &e.UserID, &e.ItemID, &e.Connect, &e.Day, &e.Time, &e.Dose, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *ScheduleRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.ScheduleEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	defer rows.Close()

	var entries []models.ScheduleEntry
	for rows.Next() {
		e, err := scanScheduleEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// ListForUserItem retrieves every entry of one user's schedule for one item
func (r *ScheduleRepository) ListForUserItem(ctx context.Context, userID, itemID string) ([]models.ScheduleEntry, error) {
	query := "SELECT " + scheduleColumns + " FROM schedule_entries WHERE user_id = ? AND item_id = ? ORDER BY id"
	return r.list(ctx, query, userID, itemID)
}

// ListByConnect retrieves every entry in a household
func (r *ScheduleRepository) ListByConnect(ctx context.Context, connect string) ([]models.ScheduleEntry, error) {
	query := "SELECT " + scheduleColumns + " FROM schedule_entries WHERE connect = ? ORDER BY user_id, item_id, id"
	return r.list(ctx, query, connect)
}

// GetEntry retrieves a single grid cell
func (r *ScheduleRepository) GetEntry(ctx context.Context, userID, itemID string, day models.Weekday, tod models.TimeOfDay) (*models.ScheduleEntry, error) {
	query := "SELECT " + scheduleColumns + ` FROM schedule_entries
		WHERE user_id = ? AND item_id = ? AND day_of_week = ? AND time_of_day = ?`
	e, err := scanScheduleEntry(r.db.QueryRowContext(ctx, query, userID, itemID, day, tod))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule entry: %w", err)
	}
	return e, nil
}

// LatestDoseByOthers returns the most recently saved dose for the item among
// other household members, if any
func (r *ScheduleRepository) LatestDoseByOthers(ctx context.Context, connect, itemID, userID string) (int, bool, error) {
	query := `
		SELECT dose FROM schedule_entries
		WHERE connect = ? AND item_id = ? AND user_id <> ?
		ORDER BY id DESC LIMIT 1
	`
	return r.latestDose(ctx, query, connect, itemID, userID)
}

// LatestDoseForUser returns the most recently saved dose in the user's own schedule for the item
func (r *ScheduleRepository) LatestDoseForUser(ctx context.Context, userID, itemID string) (int, bool, error) {
	query := `
		SELECT dose FROM schedule_entries
		WHERE user_id = ? AND item_id = ?
		ORDER BY id DESC LIMIT 1
	`
	return r.latestDose(ctx, query, userID, itemID)
}

func (r *ScheduleRepository) latestDose(ctx context.Context, query string, args ...interface{}) (int, bool, error) {
	var dose int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&dose)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up latest dose: %w", err)
	}
	return dose, true, nil
}

// Insert adds one entry and sets its ID
func (r *ScheduleRepository) Insert(ctx context.Context, e *models.ScheduleEntry) error {
	query := `
		INSERT INTO schedule_entries (user_id, item_id, connect, day_of_week, time_of_day, dose)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, e.UserID, e.ItemID, e.Connect, e.Day, e.Time, e.Dose)
	if err != nil {
		return wrapWriteErr(r.db, "insert schedule entry", err)
	}
	e.ID = id
	return nil
}

// DeleteForUserItem removes one user's schedule for one item
func (r *ScheduleRepository) DeleteForUserItem(ctx context.Context, userID, itemID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM schedule_entries WHERE user_id = ? AND item_id = ?", userID, itemID); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}

// DeleteForItem removes every household member's schedule for an item
func (r *ScheduleRepository) DeleteForItem(ctx context.Context, connect, itemID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM schedule_entries WHERE connect = ? AND item_id = ?", connect, itemID); err != nil {
		return fmt.Errorf("failed to delete item schedules: %w", err)
	}
	return nil
}

// DeleteForUser removes every schedule entry of a user
func (r *ScheduleRepository) DeleteForUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM schedule_entries WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete user schedules: %w", err)
	}
	return nil
}

// ListDay retrieves a household's entries for one weekday, optionally narrowed
// to one user, joined with user, item and slot details
func (r *ScheduleRepository) ListDay(ctx context.Context, connect, userID string, day models.Weekday) ([]models.TodayDose, error) {
	query := `
		SELECT e.user_id, u.name, e.item_id, c.name, e.time_of_day, e.dose, COALESCE(s.slot, 0)
		FROM schedule_entries e
		INNER JOIN users u ON u.id = e.user_id
		INNER JOIN catalog_items c ON c.item_id = e.item_id AND c.connect = e.connect
		LEFT JOIN slot_assignments s ON s.item_id = e.item_id AND s.connect = e.connect
		WHERE e.connect = ? AND e.day_of_week = ?
	`
	args := []interface{}{connect, day}
	if userID != "" {
		query += " AND e.user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY CASE e.time_of_day WHEN 'morning' THEN 0 WHEN 'afternoon' THEN 1 ELSE 2 END, u.created_at, e.user_id, c.name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query day schedule: %w", err)
	}
	defer rows.Close()

	var doses []models.TodayDose
	for rows.Next() {
		var d models.TodayDose
		if err := rows.Scan(&d.UserID, &d.UserName, &d.ItemID, &d.ItemName, &d.Time, &d.Dose, &d.Slot); err != nil {
			return nil, fmt.Errorf("failed to scan day schedule: %w", err)
		}
		doses = append(doses, d)
	}
	return doses, rows.Err()
}
