package bot

import (
	"fmt"
	"strconv"
	"time"

	"clinicbook/internal/booking"
	"clinicbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data prefixes.
const (
	cbNoop          = "noop"
	cbService       = "svc:"
	cbDoctor        = "doc:"
	cbDate          = "date:"
	cbCalPrev       = "cal:prev"
	cbCalNext       = "cal:next"
	cbSlot          = "slot:"
	cbSuggestion    = "sug:"
	cbBack          = "nav:back"
	cbRetry         = "nav:retry"
	cbCancel        = "nav:cancel"
	cbNotes         = "notes"
	cbConfirm       = "confirm"
	cbBookingsPage  = "bk_page:"
	cbBookingCancel = "bk_cancel:"
)

const slotsPerRow = 4

var weekdayHeader = [7]string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

func navRow(back bool) []tgbotapi.InlineKeyboardButton {
	row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
	if back {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbBack))
	}
	return append(row, tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", cbCancel))
}

func retryKeyboard(back bool) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Try again", cbRetry)),
		navRow(back),
	)
}

func servicesKeyboard(services []models.Service, selected *models.Service) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(services)+1)
	for _, svc := range services {
		label := svc.Name
		if svc.DurationMinutes > 0 {
			label = fmt.Sprintf("%s · %d min", svc.Name, svc.DurationMinutes)
		}
		if selected != nil && selected.ID == svc.ID {
			label = "✅ " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbService+svc.ID),
		))
	}
	rows = append(rows, navRow(false))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func doctorsKeyboard(doctors []models.Doctor, selected *models.Doctor) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(doctors)+1)
	for _, doc := range doctors {
		label := doc.FullName
		if doc.Rating > 0 {
			label = fmt.Sprintf("%s · ★%.1f", doc.FullName, doc.Rating)
		}
		if selected != nil && selected.ID == doc.ID {
			label = "✅ " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbDoctor+doc.ID),
		))
	}
	rows = append(rows, navRow(true))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// calendarKeyboard renders suggestions on top, then the month header, weekday
// header and the Monday-first weeks. Disabled and padding cells are inert.
func calendarKeyboard(month time.Time, weeks [][]booking.Day, canPrev bool, suggestions []models.SmartSuggestion, loc *time.Location) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(weeks)+len(suggestions)+3)

	for i, sug := range suggestions {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⭐ "+suggestionLabel(sug, loc), cbSuggestion+strconv.Itoa(i)),
		))
	}

	prev := tgbotapi.NewInlineKeyboardButtonData(" ", cbNoop)
	if canPrev {
		prev = tgbotapi.NewInlineKeyboardButtonData("◀️", cbCalPrev)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		prev,
		tgbotapi.NewInlineKeyboardButtonData(month.Format("January 2006"), cbNoop),
		tgbotapi.NewInlineKeyboardButtonData("▶️", cbCalNext),
	))

	header := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, name := range weekdayHeader {
		header = append(header, tgbotapi.NewInlineKeyboardButtonData(name, cbNoop))
	}
	rows = append(rows, header)

	for _, week := range weeks {
		row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
		for _, day := range week {
			row = append(row, dayButton(day))
		}
		rows = append(rows, row)
	}

	rows = append(rows, navRow(true))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func dayButton(day booking.Day) tgbotapi.InlineKeyboardButton {
	if day.Date.IsZero() {
		return tgbotapi.NewInlineKeyboardButtonData(" ", cbNoop)
	}
	label := strconv.Itoa(day.Date.Day())
	switch {
	case day.Disabled:
		return tgbotapi.NewInlineKeyboardButtonData("·", cbNoop)
	case day.Selected:
		label = "[" + label + "]"
	case day.Today:
		label = "•" + label
	}
	return tgbotapi.NewInlineKeyboardButtonData(label, cbDate+day.Date.Format(models.DateLayout))
}

// slotsKeyboard renders the grid in a morning and an afternoon section.
func slotsKeyboard(grid booking.SlotGrid, selected string) tgbotapi.InlineKeyboardMarkup {
	morning, afternoon := grid.Partition()
	rows := make([][]tgbotapi.InlineKeyboardButton, 0)
	rows = appendSlotSection(rows, "🌅 Morning", morning, selected)
	rows = appendSlotSection(rows, "🌇 Afternoon", afternoon, selected)
	rows = append(rows, navRow(true))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func appendSlotSection(rows [][]tgbotapi.InlineKeyboardButton, title string, slots []models.TimeSlot, selected string) [][]tgbotapi.InlineKeyboardButton {
	if len(slots) == 0 {
		return rows
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(title, cbNoop)))

	row := make([]tgbotapi.InlineKeyboardButton, 0, slotsPerRow)
	for _, slot := range slots {
		label := slot.Time
		switch {
		case slot.Time == selected:
			label = "✅ " + slot.Time
		case !slot.Available:
			label = "✖ " + slot.Time
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cbSlot+slot.Time))
		if len(row) == slotsPerRow {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, slotsPerRow)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func confirmKeyboard(hasNotes bool) tgbotapi.InlineKeyboardMarkup {
	notesLabel := "📝 Add notes"
	if hasNotes {
		notesLabel = "📝 Edit notes"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Confirm booking", cbConfirm)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(notesLabel, cbNotes)),
		navRow(true),
	)
}
