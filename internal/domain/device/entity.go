package device

import "time"

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

type Kind string

const (
	// KindTerminal pushes punches to the ingest endpoint.
	KindTerminal Kind = "terminal"
	// KindHikCloud is polled through the vendor cloud API.
	KindHikCloud Kind = "hik_cloud"
)

type Device struct {
	ID           string
	CompanyID    string
	Name         string
	Kind         Kind
	Status       Status
	SecretHash   string
	ExternalName *string
	LastSeenAt   *time.Time
	CreatedAt    time.Time
}

func (d Device) IsActive() bool {
	return d.Status == StatusActive
}
