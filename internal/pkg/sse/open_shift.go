package sse

import (
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
)

const EventOpenShift = "open_shift"

// OpenShiftTopic is the topic carrying open-shift transitions of one employee.
func OpenShiftTopic(companyID, employeeID string) string {
	return "open-shift:" + companyID + ":" + employeeID
}

// OpenShiftBroadcaster publishes open-shift transitions to the hub.
type OpenShiftBroadcaster struct {
	hub *Hub
}

func NewOpenShiftBroadcaster(hub *Hub) *OpenShiftBroadcaster {
	return &OpenShiftBroadcaster{hub: hub}
}

func (b *OpenShiftBroadcaster) BroadcastOpenShift(companyID, employeeID string, open bool, record *attendance.Record) {
	b.hub.Publish(OpenShiftTopic(companyID, employeeID), Event{
		Name: EventOpenShift,
		Data: attendance.NewOpenShiftResponse(employeeID, open, record),
	})
}
