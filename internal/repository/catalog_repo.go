package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"familydose/internal/database"
	"familydose/internal/models"
)

// CatalogRepository handles database operations for household medicines and supplements
type CatalogRepository struct {
	db database.DBTX
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db database.DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// WithTx returns a repository bound to the transaction
func (r *CatalogRepository) WithTx(tx *database.Tx) *CatalogRepository {
	return &CatalogRepository{db: tx}
}

const catalogColumns = `item_id, connect, name, kind, warning, COALESCE(start_date, ''), COALESCE(end_date, ''),
	target_users, created_at, updated_at`

func scanCatalogItem(row rowScanner) (*models.CatalogItem, error) {
	item := &models.CatalogItem{}
	var targets sql.NullString
	err := row.Scan(
		&item.ItemID,
		&item.Connect,
		&item.Name,
		&item.Kind,
		&item.Warning,
		&item.StartDate,
		&item.EndDate,
		&targets,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if targets.Valid && targets.String != "" {
		if err := json.Unmarshal([]byte(targets.String), &item.TargetUsers); err != nil {
			return nil, fmt.Errorf("invalid target_users for %s: %w", item.ItemID, err)
		}
	}
	return item, nil
}

// encodeTargets stores nil as NULL so "shared" survives a round trip
func encodeTargets(targets []string) (interface{}, error) {
	if targets == nil {
		return nil, nil
	}
	data, err := json.Marshal(targets)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Create inserts a catalog item
func (r *CatalogRepository) Create(ctx context.Context, item *models.CatalogItem) error {
	targets, err := encodeTargets(item.TargetUsers)
	if err != nil {
		return fmt.Errorf("failed to encode target users: %w", err)
	}

	query := `
		INSERT INTO catalog_items (item_id, connect, name, kind, warning, start_date, end_date, target_users)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		item.ItemID, item.Connect, item.Name, item.Kind, item.Warning,
		nullIfEmpty(item.StartDate), nullIfEmpty(item.EndDate), targets,
	)
	if err != nil {
		return wrapWriteErr(r.db, "create catalog item", err)
	}
	return nil
}

// Get retrieves an item by its household-scoped key
func (r *CatalogRepository) Get(ctx context.Context, itemID, connect string) (*models.CatalogItem, error) {
	query := "SELECT " + catalogColumns + " FROM catalog_items WHERE item_id = ? AND connect = ?"
	item, err := scanCatalogItem(r.db.QueryRowContext(ctx, query, itemID, connect))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog item: %w", err)
	}
	return item, nil
}

// ListByConnect retrieves a household's catalog ordered by name
func (r *CatalogRepository) ListByConnect(ctx context.Context, connect string) ([]models.CatalogItem, error) {
	query := "SELECT " + catalogColumns + " FROM catalog_items WHERE connect = ? ORDER BY name, item_id"
	return r.list(ctx, query, connect)
}

// SearchByName finds items whose name contains fragment, ignoring case
func (r *CatalogRepository) SearchByName(ctx context.Context, connect, fragment string) ([]models.CatalogItem, error) {
	query := "SELECT " + catalogColumns + ` FROM catalog_items
		WHERE connect = ? AND LOWER(name) LIKE ? ORDER BY name, item_id`
	return r.list(ctx, query, connect, "%"+strings.ToLower(fragment)+"%")
}

func (r *CatalogRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.CatalogItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var items []models.CatalogItem
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Update rewrites an item's mutable attributes
func (r *CatalogRepository) Update(ctx context.Context, item *models.CatalogItem) error {
	targets, err := encodeTargets(item.TargetUsers)
	if err != nil {
		return fmt.Errorf("failed to encode target users: %w", err)
	}

	query := `
		UPDATE catalog_items
		SET name = ?, kind = ?, warning = ?, start_date = ?, end_date = ?, target_users = ?, updated_at = CURRENT_TIMESTAMP
		WHERE item_id = ? AND connect = ?
	`
	_, err = r.db.ExecContext(ctx, query,
		item.Name, item.Kind, item.Warning, nullIfEmpty(item.StartDate), nullIfEmpty(item.EndDate), targets,
		item.ItemID, item.Connect,
	)
	if err != nil {
		return fmt.Errorf("failed to update catalog item: %w", err)
	}
	return nil
}

// Delete removes the catalog row only; callers delete dependents in the same transaction
func (r *CatalogRepository) Delete(ctx context.Context, itemID, connect string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM catalog_items WHERE item_id = ? AND connect = ?", itemID, connect)
	if err != nil {
		return 0, fmt.Errorf("failed to delete catalog item: %w", err)
	}
	return result.RowsAffected()
}
