package bot

import (
	"context"
	"fmt"

	"clinicbook/internal/models"
)

func (b *Bot) handleMyBookings(ctx context.Context, session *models.Session, chatID int64, messageID, page int) {
	if !b.requireLogin(session, chatID) {
		return
	}

	bookings, err := b.appointments.List(ctx)
	if err != nil {
		b.reportError(ctx, session, chatID, err)
		return
	}
	if len(bookings) == 0 {
		b.sendHTML(chatID, "You have no appointments yet. Use /book to make one.")
		return
	}

	b.renderPaginatedBookings(PaginationParams{
		ChatID:     chatID,
		MessageID:  messageID,
		Page:       page,
		Title:      "<b>📋 Your appointments</b>",
		PagePrefix: cbBookingsPage,
	}, bookings)
}

func (b *Bot) handleCancelBooking(ctx context.Context, session *models.Session, chatID int64, bookingID string) {
	if !b.requireLogin(session, chatID) {
		return
	}
	if bookingID == "" {
		b.sendHTML(chatID, "Usage: /cancel_booking &lt;id&gt;\nThe id is shown in /my_bookings.")
		return
	}

	cancelled, err := b.appointments.Cancel(ctx, session.UserID, session.User, bookingID, "Cancelled by patient via Telegram")
	if err != nil {
		b.reportError(ctx, session, chatID, err)
		return
	}
	b.sendHTML(chatID, fmt.Sprintf("✅ Appointment on <b>%s %s</b> is cancelled.", cancelled.BookingDate, cancelled.StartTime))
}
