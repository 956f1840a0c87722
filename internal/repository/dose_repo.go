package repository

import (
	"context"
	"database/sql"
	"fmt"

	"familydose/internal/database"
	"familydose/internal/models"
)

// DoseRepository handles database operations for the dose ledger
type DoseRepository struct {
	db database.DBTX
}

// NewDoseRepository creates a new dose repository
func NewDoseRepository(db database.DBTX) *DoseRepository {
	return &DoseRepository{db: db}
}

// WithTx returns a repository bound to the transaction
func (r *DoseRepository) WithTx(tx *database.Tx) *DoseRepository {
	return &DoseRepository{db: tx}
}

const doseColumns = `id, connect, user_id, item_id, dose_date, time_of_day, scheduled_dose, actual_dose,
	status, completed_at, COALESCE(notes, ''), created_at, updated_at`

// bucketOrder sorts time_of_day values in daily order
const bucketOrder = "CASE time_of_day WHEN 'morning' THEN 0 WHEN 'afternoon' THEN 1 ELSE 2 END"

func scanDose(row rowScanner) (*models.DoseHistoryEntry, error) {
	e := &models.DoseHistoryEntry{}
	err := row.Scan(
		&e.ID,
		&e.Connect,
		&e.UserID,
		&e.ItemID,
		&e.DoseDate,
		&e.Time,
		&e.ScheduledDose,
		&e.ActualDose,
		&e.Status,
		&e.CompletedAt,
		&e.Notes,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *DoseRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.DoseHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dose history: %w", err)
	}
	defer rows.Close()

	var entries []models.DoseHistoryEntry
	for rows.Next() {
		e, err := scanDose(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dose history: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Get retrieves the ledger row for one (user, item, date, time of day)
func (r *DoseRepository) Get(ctx context.Context, userID, itemID, date string, tod models.TimeOfDay) (*models.DoseHistoryEntry, error) {
	query := "SELECT " + doseColumns + ` FROM dose_history
		WHERE user_id = ? AND item_id = ? AND dose_date = ? AND time_of_day = ?`
	e, err := scanDose(r.db.QueryRowContext(ctx, query, userID, itemID, date, tod))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dose history: %w", err)
	}
	return e, nil
}

// Create inserts a ledger row
func (r *DoseRepository) Create(ctx context.Context, e *models.DoseHistoryEntry) error {
	query := `
		INSERT INTO dose_history (id, connect, user_id, item_id, dose_date, time_of_day,
			scheduled_dose, actual_dose, status, completed_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.Connect, e.UserID, e.ItemID, e.DoseDate, e.Time,
		e.ScheduledDose, e.ActualDose, e.Status, e.CompletedAt, nullIfEmpty(e.Notes),
	)
	if err != nil {
		return wrapWriteErr(r.db, "create dose history", err)
	}
	return nil
}

// UpdateCompletion overwrites the observed dose of an existing row
func (r *DoseRepository) UpdateCompletion(ctx context.Context, e *models.DoseHistoryEntry) error {
	query := `
		UPDATE dose_history
		SET actual_dose = ?, status = ?, completed_at = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, e.ActualDose, e.Status, e.CompletedAt, nullIfEmpty(e.Notes), e.ID)
	if err != nil {
		return fmt.Errorf("failed to update dose history: %w", err)
	}
	return nil
}

// ListForUser retrieves a user's ledger between two dates inclusive
func (r *DoseRepository) ListForUser(ctx context.Context, userID, from, to string) ([]models.DoseHistoryEntry, error) {
	query := "SELECT " + doseColumns + ` FROM dose_history
		WHERE user_id = ? AND dose_date >= ? AND dose_date <= ?
		ORDER BY dose_date, ` + bucketOrder + ", item_id"
	return r.list(ctx, query, userID, from, to)
}

// ListForConnectDate retrieves every member's ledger rows for one date
func (r *DoseRepository) ListForConnectDate(ctx context.Context, connect, date string) ([]models.DoseHistoryEntry, error) {
	query := "SELECT " + doseColumns + ` FROM dose_history
		WHERE connect = ? AND dose_date = ?
		ORDER BY user_id, ` + bucketOrder + ", item_id"
	return r.list(ctx, query, connect, date)
}

// ListByConnect retrieves a household's whole ledger
func (r *DoseRepository) ListByConnect(ctx context.Context, connect string) ([]models.DoseHistoryEntry, error) {
	query := "SELECT " + doseColumns + " FROM dose_history WHERE connect = ? ORDER BY dose_date, user_id, " + bucketOrder
	return r.list(ctx, query, connect)
}

// History retrieves a user's ledger newest date first, then in daily bucket order
func (r *DoseRepository) History(ctx context.Context, userID string, filter models.HistoryFilter) ([]models.DoseHistoryEntry, error) {
	query := "SELECT " + doseColumns + " FROM dose_history WHERE user_id = ?"
	args := []interface{}{userID}
	if filter.ItemID != "" {
		query += " AND item_id = ?"
		args = append(args, filter.ItemID)
	}
	if filter.From != "" {
		query += " AND dose_date >= ?"
		args = append(args, filter.From)
	}
	if filter.To != "" {
		query += " AND dose_date <= ?"
		args = append(args, filter.To)
	}
	query += " ORDER BY dose_date DESC, " + bucketOrder + ", item_id"
	return r.list(ctx, query, args...)
}

// DeleteForUser removes a user's whole ledger
func (r *DoseRepository) DeleteForUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM dose_history WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete dose history: %w", err)
	}
	return nil
}
