package models

import (
	"fmt"
	"time"
)

// SlotAssignment binds a catalog item to one physical dispenser compartment
type SlotAssignment struct {
	Connect   string    `json:"connect"`
	ItemID    string    `json:"item_id"`
	Slot      int       `json:"slot"`
	Total     int       `json:"total"`
	Remain    int       `json:"remain"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SlotView is a slot assignment joined with its catalog item name
type SlotView struct {
	SlotAssignment
	ItemName string `json:"item_name"`
}

// DispenseReason explains a manual dispense
type DispenseReason string

const (
	ReasonGuidance  DispenseReason = "guidance"
	ReasonMissed    DispenseReason = "missed"
	ReasonEmergency DispenseReason = "emergency"
	ReasonExtra     DispenseReason = "extra"
)

// ParseDispenseReason validates a manual dispense reason
func ParseDispenseReason(s string) (DispenseReason, error) {
	switch DispenseReason(s) {
	case ReasonGuidance, ReasonMissed, ReasonEmergency, ReasonExtra:
		return DispenseReason(s), nil
	}
	return "", fmt.Errorf("unknown dispense reason %q", s)
}

// LowStock is a slot at or below the refill threshold
type LowStock struct {
	Connect  string `json:"connect"`
	ItemID   string `json:"item_id"`
	ItemName string `json:"item_name"`
	Slot     int    `json:"slot"`
	Remain   int    `json:"remain"`
	Total    int    `json:"total"`
}
