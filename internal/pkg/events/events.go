// Package events carries in-process notifications between the ingest path
// and background workers.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
)

// TopicDayDirty announces an employee-day whose inputs changed.
const TopicDayDirty = "attendance.day.dirty"

type DayDirty struct {
	CompanyID  string `json:"company_id"`
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
}

// Bus is an in-memory pub/sub. Messages are lost on restart; consumers
// must treat them as hints only.
type Bus struct {
	pubsub *gochannel.GoChannel
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, watermill.NewSlogLogger(logger)),
	}
}

// NotifyDirty publishes a DayDirty event. Failures are logged, not returned.
func (b *Bus) NotifyDirty(ctx context.Context, companyID, employeeID string, date time.Time) {
	payload, err := json.Marshal(DayDirty{
		CompanyID:  companyID,
		EmployeeID: employeeID,
		Date:       date.Format(clock.DateLayout),
	})
	if err != nil {
		slog.Error("Failed to encode day dirty event", "error", err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(context.WithoutCancel(ctx))
	if err := b.pubsub.Publish(TopicDayDirty, msg); err != nil {
		slog.Error("Failed to publish day dirty event", "employee_id", employeeID, "error", err)
	}
}

func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// DayDirtyHandler processes one decoded DayDirty event.
type DayDirtyHandler func(ctx context.Context, e DayDirty) error

// DayDirtyConsumer drains TopicDayDirty. It runs as a supervised service.
type DayDirtyConsumer struct {
	bus     *Bus
	handler DayDirtyHandler
}

func NewDayDirtyConsumer(bus *Bus, handler DayDirtyHandler) *DayDirtyConsumer {
	return &DayDirtyConsumer{bus: bus, handler: handler}
}

func (c *DayDirtyConsumer) Serve(ctx context.Context) error {
	messages, err := c.bus.Subscribe(ctx, TopicDayDirty)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TopicDayDirty, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

// handle always acks: the next read recomputes a day anyway.
func (c *DayDirtyConsumer) handle(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var e DayDirty
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		slog.Error("Failed to decode day dirty event", "message_id", msg.UUID, "error", err)
		return
	}
	if err := c.handler(ctx, e); err != nil {
		slog.Warn("Failed to recompute dirty day",
			"company_id", e.CompanyID,
			"employee_id", e.EmployeeID,
			"date", e.Date,
			"error", err)
	}
}

func (c *DayDirtyConsumer) String() string {
	return "day-dirty-consumer"
}
