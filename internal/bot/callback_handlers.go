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
)

func (b *Bot) handleCallbackQuery(ctx context.Context, session *models.Session, callback *tgbotapi.CallbackQuery) {
	data := callback.Data
	if callback.Message == nil || callback.Message.Chat == nil {
		b.answerCallback(callback.ID, "")
		return
	}
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	if data == cbNoop {
		b.answerCallback(callback.ID, "")
		return
	}

	switch {
	case strings.HasPrefix(data, cbBookingsPage):
		b.answerCallback(callback.ID, "")
		page, _ := strconv.Atoi(strings.TrimPrefix(data, cbBookingsPage))
		b.handleMyBookings(ctx, session, chatID, messageID, page)
		return
	case strings.HasPrefix(data, cbBookingCancel):
		b.answerCallback(callback.ID, "")
		b.handleCancelBooking(ctx, session, chatID, strings.TrimPrefix(data, cbBookingCancel))
		return
	}

	if !session.Authenticated() {
		b.answerCallback(callback.ID, "Please log in first")
		b.sendHTML(chatID, "🔒 Please /login with your clinic account first.")
		return
	}

	uf := b.flowFor(session, chatID)
	err := b.applyCallback(ctx, session, uf, chatID, messageID, data)
	if err != nil {
		if errors.Is(err, booking.ErrStaleResult) {
			b.answerCallback(callback.ID, "")
			return
		}
		var validation *booking.ValidationError
		if errors.As(err, &validation) {
			// shown as a toast so the wizard message stays in place
			b.answerCallback(callback.ID, plainError(b.getErrorMessage(err)))
			b.persistDraft(ctx, session, uf)
			b.renderStep(ctx, session, uf, chatID, messageID)
			return
		}
		b.answerCallback(callback.ID, "")
		b.reportError(ctx, session, chatID, err)
		return
	}
	b.answerCallback(callback.ID, "")
}

// applyCallback performs one wizard action and redraws the wizard.
func (b *Bot) applyCallback(ctx context.Context, session *models.Session, uf *userFlow, chatID int64, messageID int, data string) error {
	switch {
	case data == cbCancel:
		b.handleCancelFlow(ctx, session, chatID, messageID)
		return nil

	case data == cbConfirm:
		return b.handleConfirm(ctx, session, uf, chatID, messageID)

	case data == cbNotes:
		session.InputStep = models.InputNotes
		b.saveSession(ctx, session)
		b.sendHTML(chatID, fmt.Sprintf("📝 Send your notes for the doctor (up to %d characters), or /skip.", b.config.Booking.NotesMaxLength))
		return nil

	case data == cbBack:
		uf.Store.PreviousStep()

	case data == cbRetry:

	case data == cbCalPrev:
		uf.Calendar.PrevMonth()

	case data == cbCalNext:
		uf.Calendar.NextMonth()

	case strings.HasPrefix(data, cbService):
		if err := b.pickService(ctx, uf, strings.TrimPrefix(data, cbService)); err != nil {
			return err
		}
		uf.Store.NextStep()

	case strings.HasPrefix(data, cbDoctor):
		if err := b.pickDoctor(ctx, uf, strings.TrimPrefix(data, cbDoctor)); err != nil {
			return err
		}
		uf.Store.NextStep()

	case strings.HasPrefix(data, cbDate):
		date, err := time.ParseInLocation(models.DateLayout, strings.TrimPrefix(data, cbDate), b.loc)
		if err != nil {
			return &booking.ValidationError{Field: "date", Err: booking.ErrUnknownOption}
		}
		if err := uf.Calendar.Pick(date); err != nil {
			return err
		}
		uf.Store.NextStep()

	case strings.HasPrefix(data, cbSlot):
		if err := b.pickSlot(ctx, uf, strings.TrimPrefix(data, cbSlot)); err != nil {
			return err
		}
		uf.Store.NextStep()

	case strings.HasPrefix(data, cbSuggestion):
		i, err := strconv.Atoi(strings.TrimPrefix(data, cbSuggestion))
		if err != nil {
			return &booking.ValidationError{Field: "suggestion", Err: booking.ErrUnknownOption}
		}
		if err := b.adoptSuggestion(ctx, uf, i); err != nil {
			return err
		}

	default:
		return nil
	}

	b.persistDraft(ctx, session, uf)
	b.renderStep(ctx, session, uf, chatID, messageID)
	return nil
}

// The pick helpers reload the option list when it is empty, which happens
// after a restart or an invalidation, before selecting from it.

func (b *Bot) pickService(ctx context.Context, uf *userFlow, id string) error {
	if len(uf.Services.Options()) == 0 {
		if _, err := uf.Services.Load(ctx); err != nil {
			return err
		}
	}
	return uf.Services.Pick(id)
}

func (b *Bot) pickDoctor(ctx context.Context, uf *userFlow, id string) error {
	if len(uf.Doctors.Options()) == 0 {
		if _, err := uf.Doctors.Load(ctx); err != nil {
			return err
		}
	}
	return uf.Doctors.Pick(id)
}

func (b *Bot) pickSlot(ctx context.Context, uf *userFlow, slot string) error {
	if len(uf.Times.Grid().Slots) == 0 {
		if _, err := uf.Times.Load(ctx); err != nil {
			return err
		}
	}
	return uf.Times.Pick(slot)
}

func (b *Bot) adoptSuggestion(ctx context.Context, uf *userFlow, i int) error {
	if len(uf.Suggestions.Visible()) == 0 {
		if _, err := uf.Suggestions.Load(ctx); err != nil {
			return err
		}
	}
	return uf.Suggestions.Adopt(i)
}

func (b *Bot) handleConfirm(ctx context.Context, session *models.Session, uf *userFlow, chatID int64, messageID int) error {
	if session.InputStep == models.InputNotes {
		session.InputStep = models.InputNone
	}
	d := uf.Store.Draft()

	created, err := uf.Submitter.Submit(ctx)
	if err != nil {
		var conflict *booking.ConflictError
		if errors.As(err, &conflict) {
			// the draft is untouched so the patient can pick another time
			b.reportError(ctx, session, chatID, err)
			return nil
		}
		if errors.Is(err, booking.ErrPastDate) {
			// the day passed while the confirmation was open; back to the calendar
			uf.Store.ClearDate()
		}
		return err
	}

	var text strings.Builder
	text.WriteString("🎉 <b>Your appointment is booked!</b>\n")
	text.WriteString(draftSummary(d, true))
	text.WriteString(fmt.Sprintf("\nStatus: %s", created.Status.Label()))
	if created.QueueRecord != nil && created.QueueRecord.QueuePosition > 0 {
		text.WriteString(fmt.Sprintf("\nQueue position: %d", created.QueueRecord.QueuePosition))
	}
	text.WriteString(fmt.Sprintf("\nReference: <code>%s</code>", html.EscapeString(created.ID)))

	if _, err := b.tgService.EditMessage(chatID, messageID, text.String(), nil); err != nil {
		b.sendHTML(chatID, text.String())
	}
	b.persistDraft(ctx, session, uf)
	return nil
}

// plainError strips markup from an error message for use in a callback toast.
func plainError(msg string) string {
	msg = html.UnescapeString(msg)
	if len([]rune(msg)) > 190 {
		msg = string([]rune(msg)[:190])
	}
	return msg
}
