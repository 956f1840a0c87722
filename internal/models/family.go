package models

// Household is the set of users sharing one connect code and one dispenser
type Household struct {
	Connect     string `json:"connect"`
	DispenserID string `json:"dispenser_id,omitempty"`
	Parent      *User  `json:"parent"`
	Children    []User `json:"children"`
}

// Members returns the parent followed by the children
func (h *Household) Members() []User {
	members := make([]User, 0, len(h.Children)+1)
	if h.Parent != nil {
		members = append(members, *h.Parent)
	}
	return append(members, h.Children...)
}

// UIDKind says what a scanned hardware UID resolved to
type UIDKind string

const (
	UIDKit       UIDKind = "kit"
	UIDDispenser UIDKind = "dispenser"
	UIDUnknown   UIDKind = "unknown"
)

// UIDResolution is the result of resolving a scanned hardware UID
type UIDResolution struct {
	Kind        UIDKind `json:"kind"`
	UID         string  `json:"uid"`
	User        *User   `json:"user,omitempty"`
	DispenserID string  `json:"dispenser_id,omitempty"`
	Connect     string  `json:"connect,omitempty"`
	// PairingPayload is a JSON link descriptor shown as a QR code for unknown hardware
	PairingPayload string `json:"pairing_payload,omitempty"`
}
