package repository

import (
	"context"
	"database/sql"
	"fmt"

	"familydose/internal/database"
	"familydose/internal/models"
)

// SlotRepository handles database operations for dispenser slot assignments
type SlotRepository struct {
	db database.DBTX
}

// NewSlotRepository creates a new slot repository
func NewSlotRepository(db database.DBTX) *SlotRepository {
	return &SlotRepository{db: db}
}

// WithTx returns a repository bound to the transaction
func (r *SlotRepository) WithTx(tx *database.Tx) *SlotRepository {
	return &SlotRepository{db: tx}
}

func scanSlot(row rowScanner) (*models.SlotAssignment, error) {
	a := &models.SlotAssignment{}
	if err := row.Scan(&a.Connect, &a.ItemID, &a.Slot, &a.Total, &a.Remain, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// Get retrieves the assignment for an item, or nil if it has no slot
func (r *SlotRepository) Get(ctx context.Context, connect, itemID string) (*models.SlotAssignment, error) {
	query := `
		SELECT connect, item_id, slot, total, remain, updated_at
		FROM slot_assignments WHERE connect = ? AND item_id = ?
	`
	a, err := scanSlot(r.db.QueryRowContext(ctx, query, connect, itemID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot assignment: %w", err)
	}
	return a, nil
}

// ListByConnect retrieves a household's active assignments ordered by slot
func (r *SlotRepository) ListByConnect(ctx context.Context, connect string) ([]models.SlotAssignment, error) {
	query := `
		SELECT connect, item_id, slot, total, remain, updated_at
		FROM slot_assignments WHERE connect = ? ORDER BY slot
	`
	rows, err := r.db.QueryContext(ctx, query, connect)
	if err != nil {
		return nil, fmt.Errorf("failed to query slot assignments: %w", err)
	}
	defer rows.Close()

	var slots []models.SlotAssignment
	for rows.Next() {
		a, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot assignment: %w", err)
		}
		slots = append(slots, *a)
	}
	return slots, rows.Err()
}

// ListViews retrieves the slot map joined with item names
func (r *SlotRepository) ListViews(ctx context.Context, connect string) ([]models.SlotView, error) {
	query := `
		SELECT s.connect, s.item_id, s.slot, s.total, s.remain, s.updated_at, c.name
		FROM slot_assignments s
		INNER JOIN catalog_items c ON c.item_id = s.item_id AND c.connect = s.connect
		WHERE s.connect = ?
		ORDER BY s.slot
	`
	rows, err := r.db.QueryContext(ctx, query, connect)
	if err != nil {
		return nil, fmt.Errorf("failed to query slot map: %w", err)
	}
	defer rows.Close()

	var views []models.SlotView
	for rows.Next() {
		var v models.SlotView
		if err := rows.Scan(&v.Connect, &v.ItemID, &v.Slot, &v.Total, &v.Remain, &v.UpdatedAt, &v.ItemName); err != nil {
			return nil, fmt.Errorf("failed to scan slot map: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// ListLow retrieves slots at or below threshold, optionally for one household
func (r *SlotRepository) ListLow(ctx context.Context, connect string, threshold int) ([]models.LowStock, error) {
	query := `
		SELECT s.connect, s.item_id, c.name, s.slot, s.remain, s.total
		FROM slot_assignments s
		INNER JOIN catalog_items c ON c.item_id = s.item_id AND c.connect = s.connect
		WHERE s.remain <= ?
	`
	args := []interface{}{threshold}
	if connect != "" {
		query += " AND s.connect = ?"
		args = append(args, connect)
	}
	query += " ORDER BY s.connect, s.slot"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query low stock: %w", err)
	}
	defer rows.Close()

	var low []models.LowStock
	for rows.Next() {
		var l models.LowStock
		if err := rows.Scan(&l.Connect, &l.ItemID, &l.ItemName, &l.Slot, &l.Remain, &l.Total); err != nil {
			return nil, fmt.Errorf("failed to scan low stock: %w", err)
		}
		low = append(low, l)
	}
	return low, rows.Err()
}

// Create persists a new assignment with remain equal to total
func (r *SlotRepository) Create(ctx context.Context, a *models.SlotAssignment) error {
	query := "INSERT INTO slot_assignments (connect, item_id, slot, total, remain) VALUES (?, ?, ?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, a.Connect, a.ItemID, a.Slot, a.Total, a.Remain); err != nil {
		return wrapWriteErr(r.db, "create slot assignment", err)
	}
	return nil
}

// SetQuantity overwrites total and remain
func (r *SlotRepository) SetQuantity(ctx context.Context, connect, itemID string, total, remain int) error {
	query := `
		UPDATE slot_assignments SET total = ?, remain = ?, updated_at = CURRENT_TIMESTAMP
		WHERE connect = ? AND item_id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, total, remain, connect, itemID); err != nil {
		return fmt.Errorf("failed to update slot quantity: %w", err)
	}
	return nil
}

// Decrement lowers remain by count only if enough stock is left. It reports
// false without changing anything when remain < count.
func (r *SlotRepository) Decrement(ctx context.Context, connect, itemID string, count int) (bool, error) {
	query := `
		UPDATE slot_assignments SET remain = remain - ?, updated_at = CURRENT_TIMESTAMP
		WHERE connect = ? AND item_id = ? AND remain >= ?
	`
	result, err := r.db.ExecContext(ctx, query, count, connect, itemID, count)
	if err != nil {
		return false, fmt.Errorf("failed to dispense: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to dispense: %w", err)
	}
	return n == 1, nil
}

// Delete frees an item's slot
func (r *SlotRepository) Delete(ctx context.Context, connect, itemID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM slot_assignments WHERE connect = ? AND item_id = ?", connect, itemID)
	if err != nil {
		return 0, fmt.Errorf("failed to release slot: %w", err)
	}
	return result.RowsAffected()
}
