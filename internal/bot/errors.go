package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"unicode"
	"unicode/utf8"

	"clinicbook/internal/booking"
	"clinicbook/internal/clinic"
	"clinicbook/internal/events"
	"clinicbook/internal/models"
	"clinicbook/internal/service"

	"github.com/rs/zerolog"
)

func (b *Bot) getErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, booking.ErrNotAuthenticated) || errors.Is(err, clinic.ErrUnauthorized) {
		return "🔒 Your session has expired. Please /login again."
	}

	var conflict *booking.ConflictError
	if errors.As(err, &conflict) {
		return "⚠️ The clinic could not accept this booking: " + html.EscapeString(conflict.Message)
	}

	switch {
	case errors.Is(err, booking.ErrPastDate):
		return "⚠️ You cannot book a date in the past."
	case errors.Is(err, booking.ErrDateTooFar):
		return fmt.Sprintf("⚠️ Appointments can be booked at most %d days ahead.", b.config.Booking.MaxAdvanceDays)
	case errors.Is(err, booking.ErrSlotUnavailable):
		return "⚠️ This time is already taken. Please choose another one."
	case errors.Is(err, booking.ErrUnknownOption):
		return "⚠️ This option is no longer offered. Please choose again."
	case errors.Is(err, booking.ErrMissingDependency), errors.Is(err, booking.ErrIncompleteDraft):
		return "⚠️ Please complete the previous steps first."
	case errors.Is(err, booking.ErrNotesTooLong):
		return fmt.Sprintf("⚠️ Notes can be at most %d characters.", b.config.Booking.NotesMaxLength)
	case errors.Is(err, booking.ErrSubmissionInFlight):
		return "⏳ Your booking is already being submitted."
	case errors.Is(err, service.ErrNotCancellable):
		return "⚠️ This appointment can no longer be cancelled."
	case errors.Is(err, service.ErrBookingNotFound):
		return "⚠️ Appointment not found."
	case errors.Is(err, service.ErrNotPatient):
		return "⚠️ Only patient accounts can book appointments here."
	case errors.Is(err, service.ErrInvalidCredentials):
		return "⚠️ Please enter both email and password."
	case errors.Is(err, service.ErrPasswordTooShort):
		return fmt.Sprintf("⚠️ The password must be at least %d characters.", models.MinPasswordLength)
	case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrNameRequired),
		errors.Is(err, service.ErrSamePassword), errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, service.ErrInvalidPhone), errors.Is(err, service.ErrNothingToUpdate):
		return "⚠️ " + capitalize(err.Error()) + "."
	}

	var fetch *booking.FetchError
	if errors.As(err, &fetch) {
		return "📡 The clinic service is not reachable right now. Please try again in a moment."
	}

	var apiErr *clinic.APIError
	if errors.As(err, &apiErr) && !apiErr.Temporary() {
		return "⚠️ " + html.EscapeString(apiErr.Message)
	}

	return "❌ Something went wrong while processing your request. Please try again later."
}

// reportError tells the patient what went wrong. An expired token also logs the session out.
func (b *Bot) reportError(ctx context.Context, session *models.Session, chatID int64, err error) {
	if err == nil || errors.Is(err, booking.ErrStaleResult) {
		return
	}

	logger := zerolog.Ctx(ctx)
	if errors.Is(err, booking.ErrNotAuthenticated) || errors.Is(err, clinic.ErrUnauthorized) {
		b.expireSession(ctx, session)
	} else {
		var validation *booking.ValidationError
		if !errors.As(err, &validation) {
			b.incErrors()
			logger.Warn().Err(err).Int64("user_id", session.UserID).Msg("request failed")
		}
	}
	b.sendHTML(chatID, b.getErrorMessage(err))
}

func (b *Bot) expireSession(ctx context.Context, session *models.Session) {
	if session.AccessToken == "" && session.User == nil {
		return
	}
	session.Logout()
	b.saveSession(ctx, session)

	b.refreshFlowUser(session, 0)

	if b.eventBus != nil {
		payload := events.BookingEventPayload{TelegramID: session.UserID, Status: "expired"}
		if err := b.eventBus.PublishJSON(events.EventSessionExpired, payload); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("publish session_expired failed")
		}
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
