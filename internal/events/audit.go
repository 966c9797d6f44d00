package events

import (
	"github.com/rs/zerolog"
)

// AuditLog writes one structured line per booking or session event.
func AuditLog(logger *zerolog.Logger) EventHandler {
	return func(event *Event) error {
		p, err := DecodeBooking(event)
		if err != nil {
			return err
		}
		if event.Type == EventSessionExpired {
			logger.Info().
				Str("event", event.Type).
				Int64("telegram_id", p.TelegramID).
				Time("at", event.CreatedAt).
				Msg("session event")
			return nil
		}
		logger.Info().
			Str("event", event.Type).
			Str("booking_id", p.BookingID).
			Str("patient_id", p.PatientID).
			Str("doctor_id", p.DoctorID).
			Str("date", p.Date).
			Str("start_time", p.StartTime).
			Str("status", p.Status).
			Str("reason", p.Reason).
			Time("at", event.CreatedAt).
			Msg("booking event")
		return nil
	}
}

// SubscribeAudit attaches AuditLog to every event type the bot publishes.
func SubscribeAudit(bus *EventBus, logger *zerolog.Logger) {
	h := AuditLog(logger)
	bus.Subscribe(EventBookingCreated, h)
	bus.Subscribe(EventBookingCancelled, h)
	bus.Subscribe(EventSessionExpired, h)
}
