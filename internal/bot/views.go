package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"clinicbook/internal/booking"
	"clinicbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const totalSteps = 5

var stepTitles = map[models.BookingStep]string{
	models.StepService: "Choose a service",
	models.StepDoctor:  "Choose a doctor",
	models.StepDate:    "Choose a date",
	models.StepTime:    "Choose a time",
	models.StepConfirm: "Confirm your appointment",
}

// renderStep draws the wizard's current step, loading its options first.
// messageID 0 sends a new message instead of editing.
func (b *Bot) renderStep(ctx context.Context, session *models.Session, uf *userFlow, chatID int64, messageID int) {
	d := uf.Store.Draft()

	var text strings.Builder
	text.WriteString(stepHeader(d.Step))
	text.WriteString(draftSummary(d, false))

	switch d.Step {
	case models.StepService:
		services, err := uf.Services.Load(ctx)
		if err != nil {
			b.renderLoadError(ctx, session, chatID, messageID, &text, err, false)
			return
		}
		if len(services) == 0 {
			text.WriteString("\nNo services are available right now.")
		}
		b.show(chatID, messageID, text.String(), servicesKeyboard(services, d.Service))

	case models.StepDoctor:
		doctors, err := uf.Doctors.Load(ctx)
		if err != nil {
			b.renderLoadError(ctx, session, chatID, messageID, &text, err, true)
			return
		}
		if len(doctors) == 0 {
			text.WriteString("\nNo doctors offer this service at the moment. Go back and pick another service.")
		}
		b.show(chatID, messageID, text.String(), doctorsKeyboard(doctors, d.Doctor))

	case models.StepDate:
		if _, err := uf.Suggestions.Load(ctx); err != nil && !errors.Is(err, booking.ErrStaleResult) {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("suggestions unavailable")
		}
		suggestions := uf.Suggestions.Visible()
		if len(suggestions) > 0 {
			text.WriteString("\n⭐ Suggested times are on top. Tap one to jump straight to confirmation.")
		}
		b.show(chatID, messageID, text.String(), b.calendarFor(uf, suggestions))

	case models.StepTime:
		grid, err := uf.Times.Load(ctx)
		if err != nil {
			b.renderLoadError(ctx, session, chatID, messageID, &text, err, true)
			return
		}
		if grid.Placeholder {
			text.WriteString("\n⚠️ <i>Live availability could not be loaded. These sample times are for demonstration only.</i>")
		}
		if len(grid.Slots) == 0 {
			text.WriteString("\nNo time slots on this day. Go back and pick another date.")
		}
		b.show(chatID, messageID, text.String(), slotsKeyboard(grid, d.TimeSlot))

	case models.StepConfirm:
		text.Reset()
		text.WriteString(stepHeader(d.Step))
		text.WriteString(draftSummary(d, true))
		b.show(chatID, messageID, text.String(), confirmKeyboard(d.Notes != ""))
	}
}

func (b *Bot) renderLoadError(ctx context.Context, session *models.Session, chatID int64, messageID int, text *strings.Builder, err error, back bool) {
	if errors.Is(err, booking.ErrStaleResult) {
		return
	}
	var validation *booking.ValidationError
	if errors.Is(err, booking.ErrNotAuthenticated) || errors.As(err, &validation) {
		b.reportError(ctx, session, chatID, err)
		return
	}
	zerolog.Ctx(ctx).Warn().Err(err).Int64("user_id", session.UserID).Msg("step options unavailable")
	b.incErrors()
	text.WriteString("\n")
	text.WriteString(b.getErrorMessage(err))
	b.show(chatID, messageID, text.String(), retryKeyboard(back))
}

func (b *Bot) calendarFor(uf *userFlow, suggestions []models.SmartSuggestion) tgbotapi.InlineKeyboardMarkup {
	month := uf.Calendar.Month()
	today := uf.Calendar.Today()
	floor := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	return calendarKeyboard(month, uf.Calendar.Grid(), month.After(floor), suggestions, b.loc)
}

func stepHeader(step models.BookingStep) string {
	return fmt.Sprintf("<b>Step %d of %d · %s</b>\n", int(step), totalSteps, stepTitles[step])
}

// draftSummary lists what is selected so far. full adds price, duration and notes.
func draftSummary(d models.BookingDraft, full bool) string {
	var sb strings.Builder
	if d.Service != nil {
		sb.WriteString(fmt.Sprintf("\n🩺 Service: <b>%s</b>", html.EscapeString(d.Service.Name)))
		if full {
			if d.Service.DurationMinutes > 0 {
				sb.WriteString(fmt.Sprintf("\n⏱ Duration: %d min", d.Service.DurationMinutes))
			}
			if d.Service.Price > 0 {
				sb.WriteString(fmt.Sprintf("\n💳 Price: %s", formatPrice(d.Service.Price)))
			}
		}
	}
	if d.Doctor != nil {
		sb.WriteString(fmt.Sprintf("\n👨‍⚕️ Doctor: <b>%s</b>", html.EscapeString(d.Doctor.FullName)))
		if full {
			if specialty := d.Doctor.PrimarySpecialty(); specialty != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", html.EscapeString(specialty)))
			}
		}
	}
	if d.Date != nil {
		sb.WriteString(fmt.Sprintf("\n📅 Date: <b>%s</b>", d.Date.Format("Mon, 02 Jan 2006")))
	}
	if d.TimeSlot != "" {
		sb.WriteString(fmt.Sprintf("\n🕐 Time: <b>%s</b>", d.TimeSlot))
	}
	if full && d.Notes != "" {
		sb.WriteString(fmt.Sprintf("\n📝 Notes: %s", html.EscapeString(d.Notes)))
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	return sb.String()
}

func suggestionLabel(s models.SmartSuggestion, loc *time.Location) string {
	date, err := s.ParsedDate(loc)
	if err != nil {
		return s.Date + " " + s.Time
	}
	return fmt.Sprintf("%s %s", date.Format("Mon 02 Jan"), s.Time)
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

func bookingLine(bk models.Booking) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>%s %s</b> · %s", statusEmoji(bk.Status), bk.BookingDate, bk.StartTime, bk.Status.Label()))
	if bk.Service != nil {
		sb.WriteString(fmt.Sprintf("\n   🩺 %s", html.EscapeString(bk.Service.Name)))
	}
	if bk.Doctor != nil {
		sb.WriteString(fmt.Sprintf("\n   👨‍⚕️ %s", html.EscapeString(bk.Doctor.FullName)))
	}
	if bk.QueueRecord != nil && bk.QueueRecord.QueuePosition > 0 {
		sb.WriteString(fmt.Sprintf("\n   🔢 Queue position %d, about %d min", bk.QueueRecord.QueuePosition, bk.QueueRecord.EstimatedWaitMinutes))
	}
	sb.WriteString(fmt.Sprintf("\n   🔗 <code>%s</code>", html.EscapeString(bk.ID)))
	return sb.String()
}

func statusEmoji(status models.BookingStatus) string {
	switch status {
	case models.StatusConfirmed, models.StatusCheckedIn:
		return "✅"
	case models.StatusCancelled, models.StatusNoShow:
		return "❌"
	case models.StatusCompleted:
		return "🏁"
	case models.StatusInProgress:
		return "🩺"
	case models.StatusQueued:
		return "🔢"
	default:
		return "⏳"
	}
}
