package booking

import (
	"math/rand"
	"time"

	"clinicbook/internal/domain"
	"clinicbook/internal/models"

	"github.com/rs/zerolog"
)

// Options tune a Flow. Zero values fall back to the package defaults.
type Options struct {
	SuggestionLimit int
	SuggestionDays  int
	SuccessDelay    time.Duration
	MaxAdvanceDays  int
	NotesMaxLength  int
	DemoFallback    bool
	Location        *time.Location
	Now             func() time.Time
	Rand            *rand.Rand
}

// Flow is one patient's booking wizard: the store plus everything that reads or writes it.
type Flow struct {
	Store       *Store
	Services    *ServiceResolver
	Doctors     *DoctorResolver
	Calendar    *Calendar
	Times       *TimeResolver
	Suggestions *Suggestions
	Submitter   *Submitter
}

// NewFlow builds a flow and subscribes the resolvers to the store so that an
// upstream change drops their options and any fetch in flight.
func NewFlow(api domain.ClinicAPI, identity domain.IdentityProvider, publisher domain.EventPublisher, logger *zerolog.Logger, opts Options) *Flow {
	logger = orNop(logger)
	store := NewStore()
	store.SetNotesLimit(opts.NotesMaxLength)

	f := &Flow{
		Store:       store,
		Services:    NewServiceResolver(api, store, logger),
		Doctors:     NewDoctorResolver(api, store, logger),
		Calendar:    NewCalendar(store, opts.Now, opts.Location, opts.MaxAdvanceDays),
		Times:       NewTimeResolver(api, identity, store, logger),
		Suggestions: NewSuggestions(api, store, logger, opts.Now, opts.Location, opts.SuggestionLimit, opts.SuggestionDays),
		Submitter:   NewSubmitter(api, identity, store, publisher, logger, opts.SuccessDelay),
	}
	if opts.NotesMaxLength > 0 {
		f.Submitter.notesMax = opts.NotesMaxLength
	}
	f.Submitter.SetClock(opts.Now, opts.Location)
	if opts.DemoFallback {
		f.Times.EnableDemoFallback(opts.Rand)
	}

	store.OnChange(func(prev, next Draft) {
		serviceChanged := !sameService(prev.Service, next.Service)
		doctorChanged := !sameDoctor(prev.Doctor, next.Doctor)
		if serviceChanged {
			f.Doctors.Invalidate()
		}
		if serviceChanged || doctorChanged {
			f.Suggestions.Invalidate()
		}
		if serviceChanged || doctorChanged || !sameDate(prev.Date, next.Date) {
			f.Times.Invalidate()
		}
	})
	return f
}

// Start discards any previous draft and begins a new booking.
func (f *Flow) Start() {
	f.Cancel()
}

// Cancel abandons the booking: in-flight results are dropped and the draft is reset.
func (f *Flow) Cancel() {
	f.Services.Invalidate()
	f.Doctors.Invalidate()
	f.Times.Invalidate()
	f.Suggestions.Invalidate()
	f.Store.Reset()
	f.Calendar.ResetCursor()
}

// Restore rehydrates a persisted draft. A date that has since passed, or is now
// out of range, is dropped and the wizard falls back to the calendar.
func (f *Flow) Restore(d models.BookingDraft) {
	f.Store.Restore(d)
	if date := f.Store.Draft().Date; date != nil && f.Calendar.Check(*date) != nil {
		f.Store.ClearDate()
	}
	f.Calendar.ResetCursor()
}
