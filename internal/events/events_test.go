package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus(nil)

	var received *Event
	var callCount int

	bus.Subscribe("test_event", func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	require.NoError(t, bus.PublishJSON("test_event", map[string]string{"foo": "bar"}))
	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, "test_event", received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(received.Payload, &decoded))
	assert.Equal(t, "bar", decoded["foo"])
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: "event"})

	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	assert.NotPanics(t, func() { bus.Publish(&Event{Type: "unknown"}) })
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON("unknown", nil))
}

func TestEventBusLogsHandlerErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	bus := NewEventBus(&logger)

	called := false
	bus.Subscribe("event", func(_ *Event) error { return errors.New("boom") })
	bus.Subscribe("event", func(_ *Event) error { called = true; return nil })

	bus.Publish(&Event{Type: "event"})
	assert.True(t, called, "later handlers still run")
	assert.Contains(t, buf.String(), "boom")
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent("type", BookingEventPayload{BookingID: "b-123", Status: "PENDING"})
	require.NoError(t, err)
	assert.Equal(t, "type", event.Type)
	assert.False(t, event.CreatedAt.IsZero())

	decoded, err := DecodeBooking(&event)
	require.NoError(t, err)
	assert.Equal(t, "b-123", decoded.BookingID)
	assert.Equal(t, "PENDING", decoded.Status)
}

func TestSubscribeAudit(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	bus := NewEventBus(&logger)
	SubscribeAudit(bus, &logger)

	require.NoError(t, bus.PublishJSON(EventBookingCancelled, BookingEventPayload{
		BookingID: "b1", PatientID: "p1", Status: "CANCELLED", Reason: "sick",
	}))

	out := buf.String()
	assert.Contains(t, out, `"event":"booking_cancelled"`)
	assert.Contains(t, out, `"booking_id":"b1"`)
	assert.Contains(t, out, `"reason":"sick"`)
}

func TestSubscribeAudit_SessionExpired(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	bus := NewEventBus(&logger)
	SubscribeAudit(bus, &logger)

	require.NoError(t, bus.PublishJSON(EventSessionExpired, BookingEventPayload{TelegramID: 42, Status: "expired"}))

	out := buf.String()
	assert.Contains(t, out, `"event":"session_expired"`)
	assert.Contains(t, out, `"telegram_id":42`)
	assert.Contains(t, out, `"message":"session event"`)
	assert.NotContains(t, out, `"booking_id"`)
}

func TestAuditLogBadPayload(t *testing.T) {
	logger := zerolog.Nop()
	err := AuditLog(&logger)(&Event{Type: EventBookingCreated, Payload: []byte("{")})
	assert.Error(t, err)
}
