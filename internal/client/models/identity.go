package models

import "time"

// IdentityState tracks who is using a possibly shared device.
type IdentityState struct {
	CurrentChildID *int64
	IsSharedDevice bool
	LastActivityAt time.Time
}

// Selected reports whether any identity is currently selected.
func (s IdentityState) Selected() bool {
	return s.CurrentChildID != nil
}
