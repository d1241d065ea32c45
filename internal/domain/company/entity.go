package company

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
)

type Company struct {
	ID        string
	Name      string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location returns the company timezone, UTC when unset or unknown.
func (c Company) Location() *time.Location {
	return clock.LoadLocation(c.Timezone)
}
