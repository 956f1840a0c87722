package repository

import (
	"context"
	"database/sql"
	"fmt"

	"familydose/internal/database"
	"familydose/internal/models"
)

// UserRepository handles database operations for household members
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to the transaction
func (r *UserRepository) WithTx(tx *database.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

const userColumns = `id, role, connect, name, password_hash, COALESCE(email, ''), age,
	COALESCE(birth_date, ''), COALESCE(dispenser_id, ''), COALESCE(kit_id, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var age sql.NullInt64
	err := row.Scan(
		&user.ID,
		&user.Role,
		&user.Connect,
		&user.Name,
		&user.PasswordHash,
		&user.Email,
		&age,
		&user.BirthDate,
		&user.DispenserID,
		&user.KitID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Age = intPtr(age)
	return user, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, role, connect, name, password_hash, email, age, birth_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Role, user.Connect, user.Name, user.PasswordHash,
		nullIfEmpty(user.Email), nullInt(user.Age), nullIfEmpty(user.BirthDate),
	)
	if err != nil {
		return wrapWriteErr(r.db, "create user", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetParentByConnect retrieves the parent anchoring a household
func (r *UserRepository) GetParentByConnect(ctx context.Context, connect string) (*models.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE connect = ? AND role = 'parent'", connect)
}

// LockParent selects the household's parent row for update so concurrent
// writers to the same household serialize inside their transactions.
func (r *UserRepository) LockParent(ctx context.Context, connect string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE connect = ? AND role = 'parent'" + r.db.GetDialect().ForUpdate()
	return r.getOne(ctx, query, connect)
}

// GetByKitID retrieves the user bound to a daily kit
func (r *UserRepository) GetByKitID(ctx context.Context, kitID string) (*models.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE kit_id = ?", kitID)
}

// GetParentByDispenserID retrieves the parent of the household paired with a dispenser
func (r *UserRepository) GetParentByDispenserID(ctx context.Context, dispenserID string) (*models.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE dispenser_id = ? AND role = 'parent'", dispenserID)
}

// ConnectExists checks whether a household code is taken
func (r *UserRepository) ConnectExists(ctx context.Context, connect string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE connect = ?", connect).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check connect code: %w", err)
	}
	return count > 0, nil
}

// ListByConnect retrieves a household, parent first, then children in creation order
func (r *UserRepository) ListByConnect(ctx context.Context, connect string) ([]models.User, error) {
	query := "SELECT " + userColumns + ` FROM users WHERE connect = ?
		ORDER BY CASE WHEN role = 'parent' THEN 0 ELSE 1 END, created_at, id`
	return r.list(ctx, query, connect)
}

// ListConnects returns every household code, ordered
func (r *UserRepository) ListConnects(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT connect FROM users WHERE role = 'parent' ORDER BY connect")
	if err != nil {
		return nil, fmt.Errorf("failed to query households: %w", err)
	}
	defer rows.Close()

	var connects []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan household: %w", err)
		}
		connects = append(connects, c)
	}
	return connects, rows.Err()
}

// CountDispenserOwners counts households other than connect paired with dispenserID
func (r *UserRepository) CountDispenserOwners(ctx context.Context, dispenserID, excludeConnect string) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM users WHERE dispenser_id = ? AND connect <> ?"
	if err := r.db.QueryRowContext(ctx, query, dispenserID, excludeConnect).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to check dispenser owner: %w", err)
	}
	return count, nil
}

// SetDispenserForConnect writes the dispenser to every member of a household in one statement
func (r *UserRepository) SetDispenserForConnect(ctx context.Context, connect, dispenserID string) (int64, error) {
	query := "UPDATE users SET dispenser_id = ?, updated_at = CURRENT_TIMESTAMP WHERE connect = ?"
	result, err := r.db.ExecContext(ctx, query, dispenserID, connect)
	if err != nil {
		return 0, fmt.Errorf("failed to pair dispenser: %w", err)
	}
	return result.RowsAffected()
}

// SetKitID binds a daily kit to a user
func (r *UserRepository) SetKitID(ctx context.Context, userID, kitID string) error {
	query := "UPDATE users SET kit_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, kitID, userID); err != nil {
		return wrapWriteErr(r.db, "pair daily kit", err)
	}
	return nil
}

// UpdateProfile updates a member's display name and age
func (r *UserRepository) UpdateProfile(ctx context.Context, userID, name string, age *int) error {
	query := "UPDATE users SET name = ?, age = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, name, nullInt(age), userID); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// Delete removes a user row. Dependent rows must be removed first.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
