package booking

import (
	"sync"
	"time"
)

// Day is one cell of the month grid. Padding cells have a zero Date.
type Day struct {
	Date     time.Time
	Disabled bool
	Selected bool
	Today    bool
}

// Calendar is the date step: a Monday-first month grid whose displayed month
// moves independently of the committed date.
type Calendar struct {
	store      *Store
	now        func() time.Time
	loc        *time.Location
	maxAdvance int // days; 0 means unbounded

	mu     sync.Mutex
	cursor time.Time // first day of the displayed month
}

// NewCalendar builds a calendar showing the selected date's month, or today's.
func NewCalendar(store *Store, now func() time.Time, loc *time.Location, maxAdvanceDays int) *Calendar {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	c := &Calendar{store: store, now: now, loc: loc, maxAdvance: maxAdvanceDays}
	c.ResetCursor()
	return c
}

// Today is the current day at midnight in the calendar's location.
func (c *Calendar) Today() time.Time {
	return truncateDay(c.now().In(c.loc))
}

// ResetCursor moves the displayed month back to the selected date, or to today.
func (c *Calendar) ResetCursor() {
	anchor := c.Today()
	if d := c.store.Draft().Date; d != nil {
		anchor = d.In(c.loc)
	}
	c.mu.Lock()
	c.cursor = firstOfMonth(anchor)
	c.mu.Unlock()
}

func (c *Calendar) Month() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

func (c *Calendar) NextMonth() {
	c.mu.Lock()
	c.cursor = c.cursor.AddDate(0, 1, 0)
	c.mu.Unlock()
}

// PrevMonth moves back one month but never before the current month.
func (c *Calendar) PrevMonth() bool {
	floor := firstOfMonth(c.Today())
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.cursor.AddDate(0, -1, 0)
	if prev.Before(floor) {
		return false
	}
	c.cursor = prev
	return true
}

// Check reports why date cannot be picked, or nil.
func (c *Calendar) Check(date time.Time) error {
	day := truncateDay(date.In(c.loc))
	today := c.Today()
	if day.Before(today) {
		return invalid("date", ErrPastDate)
	}
	if c.maxAdvance > 0 && day.After(today.AddDate(0, 0, c.maxAdvance)) {
		return invalid("date", ErrDateTooFar)
	}
	return nil
}

// Pick commits date to the store. The displayed month is left alone.
func (c *Calendar) Pick(date time.Time) error {
	if err := c.Check(date); err != nil {
		return err
	}
	c.store.SetDate(truncateDay(date.In(c.loc)))
	return nil
}

// Grid returns the displayed month as Monday-first weeks of seven cells.
func (c *Calendar) Grid() [][]Day {
	first := c.Month()
	today := c.Today()
	selected := c.store.Draft().Date

	offset := (int(first.Weekday()) + 6) % 7
	last := first.AddDate(0, 1, -1).Day()

	var weeks [][]Day
	week := make([]Day, offset, 7)
	for n := 1; n <= last; n++ {
		date := time.Date(first.Year(), first.Month(), n, 0, 0, 0, 0, c.loc)
		week = append(week, Day{
			Date:     date,
			Disabled: c.Check(date) != nil,
			Selected: selected != nil && selected.Equal(date),
			Today:    date.Equal(today),
		})
		if len(week) == 7 {
			weeks = append(weeks, week)
			week = make([]Day, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, Day{})
		}
		weeks = append(weeks, week)
	}
	return weeks
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
