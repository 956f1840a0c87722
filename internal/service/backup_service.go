package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"familydose/internal/models"
	"familydose/internal/repository"
)

// BackupVersion is bumped whenever the snapshot layout changes
const BackupVersion = "1.0"

// BackupData is a JSON snapshot of one or more households
type BackupData struct {
	Version      string            `json:"version"`
	ExportedAt   time.Time         `json:"exported_at"`
	DatabaseType string            `json:"database_type"`
	Households   []HouseholdBackup `json:"households"`
}

// HouseholdBackup is everything stored under one connect code.
// Password hashes are never exported.
type HouseholdBackup struct {
	Connect   string                    `json:"connect"`
	Users     []models.User             `json:"users"`
	Catalog   []models.CatalogItem      `json:"catalog"`
	Slots     []models.SlotAssignment   `json:"slots"`
	Schedules []models.ScheduleEntry    `json:"schedules"`
	History   []models.DoseHistoryEntry `json:"history"`
}

// BackupService exports household data
type BackupService struct {
	repos  *repository.Repositories
	clock  clockwork.Clock
	dbType string
	log    *zap.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(repos *repository.Repositories, clock clockwork.Clock, dbType string, logger *zap.Logger) *BackupService {
	return &BackupService{
		repos:  repos,
		clock:  clock,
		dbType: dbType,
		log:    logger,
	}
}

// Snapshot collects one household, or every household when connect is empty
func (s *BackupService) Snapshot(ctx context.Context, connect string) (*BackupData, error) {
	connects := []string{connect}
	if connect == "" {
		var err error
		if connects, err = s.repos.Users.ListConnects(ctx); err != nil {
			return nil, err
		}
	}

	backup := &BackupData{
		Version:      BackupVersion,
		ExportedAt:   s.clock.Now().UTC(),
		DatabaseType: s.dbType,
		Households:   make([]HouseholdBackup, 0, len(connects)),
	}
	for _, c := range connects {
		h, err := s.household(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("failed to export household %s: %w", c, err)
		}
		backup.Households = append(backup.Households, *h)
	}
	return backup, nil
}

func (s *BackupService) household(ctx context.Context, connect string) (*HouseholdBackup, error) {
	h := &HouseholdBackup{Connect: connect}
	var err error
	if h.Users, err = s.repos.Users.ListByConnect(ctx, connect); err != nil {
		return nil, err
	}
	if len(h.Users) == 0 {
		return nil, fmt.Errorf("no users under connect code %s", connect)
	}
	if h.Catalog, err = s.repos.Catalog.ListByConnect(ctx, connect); err != nil {
		return nil, err
	}
	if h.Slots, err = s.repos.Slots.ListByConnect(ctx, connect); err != nil {
		return nil, err
	}
	if h.Schedules, err = s.repos.Schedules.ListByConnect(ctx, connect); err != nil {
		return nil, err
	}
	if h.History, err = s.repos.Doses.ListByConnect(ctx, connect); err != nil {
		return nil, err
	}
	return h, nil
}

// Export writes an indented JSON snapshot to w
func (s *BackupService) Export(ctx context.Context, w io.Writer, connect string) (*BackupData, error) {
	backup, err := s.Snapshot(ctx, connect)
	if err != nil {
		return nil, err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return backup, nil
}

// ExportFile writes the snapshot to outputPath
func (s *BackupService) ExportFile(ctx context.Context, outputPath, connect string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	backup, err := s.Export(ctx, file, connect)
	if err != nil {
		return err
	}

	s.log.Info("export finished",
		zap.String("path", outputPath),
		zap.Int("households", len(backup.Households)),
	)
	return nil
}
