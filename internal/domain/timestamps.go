package domain

import "time"

// Timestamps carries creation and modification times for mutable entities.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InitTimestamps sets both timestamps to now, truncated to microseconds so
// values survive a round trip through either store backend unchanged.
func (t *Timestamps) InitTimestamps() {
	now := Now()
	t.CreatedAt = now
	t.UpdatedAt = now
}

// Touch moves UpdatedAt to now.
func (t *Timestamps) Touch() {
	t.UpdatedAt = Now()
}

// Now returns the current UTC time at microsecond precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
