package model

// Unit is a piece of monitored equipment, usually a conveyor belt.
type Unit struct {
	UnitID string  `json:"unit_id"`
	Label  *string `json:"label,omitempty"`
}

// DisplayName returns the label when set, the unit id otherwise.
func (u Unit) DisplayName() string {
	if u.Label != nil && *u.Label != "" {
		return *u.Label
	}
	return u.UnitID
}
