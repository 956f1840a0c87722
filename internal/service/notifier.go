package service

import (
	"context"

	"familydose/internal/models"
)

// Notifier delivers low-stock alerts to a household's parent
type Notifier interface {
	NotifyLowStock(ctx context.Context, parent *models.User, items []models.LowStock) error
}

// DrugLookup queries external drug metadata
type DrugLookup interface {
	Search(ctx context.Context, name string) ([]models.DrugInfo, error)
}

type nopNotifier struct{}

func (nopNotifier) NotifyLowStock(context.Context, *models.User, []models.LowStock) error {
	return nil
}
