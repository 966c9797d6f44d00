package bot

import (
	"testing"
	"time"

	"clinicbook/internal/booking"
	"clinicbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarKeyboard(t *testing.T) {
	june := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	day := func(n int, disabled bool) booking.Day {
		return booking.Day{Date: time.Date(2024, 6, n, 0, 0, 0, 0, time.UTC), Disabled: disabled}
	}
	// June 2024 starts on a Saturday
	weeks := [][]booking.Day{
		{{}, {}, {}, {}, {}, day(1, true), day(2, true)},
		{day(3, false), day(4, false), day(5, false), day(6, false), day(7, false), day(8, false), day(9, false)},
	}
	weeks[1][1].Selected = true
	weeks[1][0].Today = true

	suggestions := []models.SmartSuggestion{{Date: "2024-06-05", Time: "10:30"}}
	kb := calendarKeyboard(june, weeks, false, suggestions, time.UTC)
	rows := kb.InlineKeyboard
	require.Len(t, rows, 1+1+1+len(weeks)+1)

	assert.Equal(t, "⭐ Wed 05 Jun 10:30", rows[0][0].Text)
	assert.Equal(t, "sug:0", *rows[0][0].CallbackData)

	header := rows[1]
	assert.Equal(t, cbNoop, *header[0].CallbackData, "no way back before the current month")
	assert.Equal(t, "June 2024", header[1].Text)
	assert.Equal(t, cbCalNext, *header[2].CallbackData)

	assert.Equal(t, "Mo", rows[2][0].Text)
	assert.Equal(t, "Su", rows[2][6].Text)

	first := rows[3]
	assert.Equal(t, " ", first[0].Text)
	assert.Equal(t, "·", first[5].Text)
	assert.Equal(t, cbNoop, *first[5].CallbackData)

	second := rows[4]
	assert.Equal(t, "•3", second[0].Text)
	assert.Equal(t, "[4]", second[1].Text)
	assert.Equal(t, "date:2024-06-04", *second[1].CallbackData)
	assert.Equal(t, "5", second[2].Text)

	nav := rows[len(rows)-1]
	assert.Equal(t, cbBack, *nav[0].CallbackData)
	assert.Equal(t, cbCancel, *nav[1].CallbackData)

	withPrev := calendarKeyboard(june.AddDate(0, 1, 0), nil, true, nil, time.UTC)
	assert.Equal(t, cbCalPrev, *withPrev.InlineKeyboard[0][0].CallbackData)
}

func TestSlotsKeyboard(t *testing.T) {
	grid := booking.SlotGrid{Slots: []models.TimeSlot{
		{Time: "08:00", Available: true},
		{Time: "08:30", Available: false},
		{Time: "09:00", Available: true},
		{Time: "09:30", Available: true},
		{Time: "10:00", Available: true},
		{Time: "13:00", Available: true},
	}}

	kb := slotsKeyboard(grid, "09:00")
	rows := kb.InlineKeyboard
	require.Len(t, rows, 6)

	assert.Equal(t, "🌅 Morning", rows[0][0].Text)
	require.Len(t, rows[1], slotsPerRow)
	assert.Equal(t, "08:00", rows[1][0].Text)
	assert.Equal(t, "✖ 08:30", rows[1][1].Text)
	assert.Equal(t, "slot:08:30", *rows[1][1].CallbackData)
	assert.Equal(t, "✅ 09:00", rows[1][2].Text)
	assert.Equal(t, "10:00", rows[2][0].Text)

	assert.Equal(t, "🌇 Afternoon", rows[3][0].Text)
	assert.Equal(t, "slot:13:00", *rows[4][0].CallbackData)
	assert.Equal(t, cbBack, *rows[5][0].CallbackData)
}

func TestSlotsKeyboard_EmptySectionsAreOmitted(t *testing.T) {
	kb := slotsKeyboard(booking.SlotGrid{Slots: []models.TimeSlot{{Time: "15:00", Available: true}}}, "")
	rows := kb.InlineKeyboard
	require.Len(t, rows, 3)
	assert.Equal(t, "🌇 Afternoon", rows[0][0].Text)
}

func TestServicesAndDoctorsKeyboards(t *testing.T) {
	services := []models.Service{{ID: "s1", Name: "Cardiology", DurationMinutes: 30}, {ID: "s2", Name: "X-ray"}}
	kb := servicesKeyboard(services, &services[0])
	assert.Equal(t, "✅ Cardiology · 30 min", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "X-ray", kb.InlineKeyboard[1][0].Text)
	assert.Len(t, kb.InlineKeyboard[2], 1, "no back button on the first step")

	doctors := []models.Doctor{{ID: "d1", FullName: "Dr. An", Rating: 4.8}}
	kb = doctorsKeyboard(doctors, nil)
	assert.Equal(t, "Dr. An · ★4.8", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "doc:d1", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Len(t, kb.InlineKeyboard[1], 2)
}

func TestConfirmKeyboard(t *testing.T) {
	assert.Equal(t, "📝 Add notes", confirmKeyboard(false).InlineKeyboard[1][0].Text)
	assert.Equal(t, "📝 Edit notes", confirmKeyboard(true).InlineKeyboard[1][0].Text)
	assert.Equal(t, cbConfirm, *confirmKeyboard(false).InlineKeyboard[0][0].CallbackData)
}
