package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"familydose/internal/database"
)

// ErrDuplicate is returned (wrapped) when an insert or update hits a unique key
var ErrDuplicate = errors.New("duplicate key")

// wrapWriteErr turns unique violations into ErrDuplicate so services can report a conflict
func wrapWriteErr(db database.DBTX, action string, err error) error {
	if db.GetDialect().IsUniqueViolation(err) {
		return fmt.Errorf("failed to %s: %w", action, ErrDuplicate)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// nullIfEmpty stores empty strings as NULL
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// Repositories bundles every repository over one connection or transaction
type Repositories struct {
	Users     *UserRepository
	Catalog   *CatalogRepository
	Slots     *SlotRepository
	Schedules *ScheduleRepository
	Doses     *DoseRepository
}

// New creates the repository set over db
func New(db database.DBTX) *Repositories {
	return &Repositories{
		Users:     NewUserRepository(db),
		Catalog:   NewCatalogRepository(db),
		Slots:     NewSlotRepository(db),
		Schedules: NewScheduleRepository(db),
		Doses:     NewDoseRepository(db),
	}
}

// WithTx returns the repository set bound to the transaction
func (r *Repositories) WithTx(tx *database.Tx) *Repositories {
	return New(tx)
}
