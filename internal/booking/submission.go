package booking

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"clinicbook/internal/domain"
	"clinicbook/internal/events"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"

	"github.com/rs/zerolog"
)

type SubmitState int

const (
	StateIdle SubmitState = iota
	StateSubmitting
	StateSuccess
)

func (s SubmitState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Submitter validates the draft and creates the booking, one request at a time.
type Submitter struct {
	ledger    domain.BookingLedger
	identity  domain.IdentityProvider
	store     *Store
	publisher domain.EventPublisher
	logger    *zerolog.Logger
	delay     time.Duration
	notesMax  int
	now       func() time.Time
	loc       *time.Location

	// after schedules the post-success reset; replaced in tests.
	after func(d time.Duration, f func())

	mu     sync.Mutex
	state  SubmitState
	onDone func(*models.Booking)
}

func NewSubmitter(ledger domain.BookingLedger, identity domain.IdentityProvider, store *Store, publisher domain.EventPublisher, logger *zerolog.Logger, delay time.Duration) *Submitter {
	if delay <= 0 {
		delay = models.DefaultSuccessDelay * time.Second
	}
	return &Submitter{
		ledger:    ledger,
		identity:  identity,
		store:     store,
		publisher: publisher,
		logger:    orNop(logger),
		delay:     delay,
		notesMax:  models.MaxPatientNotesLength,
		now:       time.Now,
		loc:       time.Local,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// SetClock sets the clock and location that decide whether the draft's date has passed.
func (s *Submitter) SetClock(now func() time.Time, loc *time.Location) {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	s.mu.Lock()
	s.now, s.loc = now, loc
	s.mu.Unlock()
}

// OnDone sets the callback run after the success pause, once the draft has been reset.
// It is skipped when the patient changed the draft during the pause.
func (s *Submitter) OnDone(fn func(*models.Booking)) {
	s.mu.Lock()
	s.onDone = fn
	s.mu.Unlock()
}

func (s *Submitter) State() SubmitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit creates a booking from the current draft. Any submit while another is in
// flight, or during the success pause, fails with ErrSubmissionInFlight. On failure
// the draft and step are left untouched.
func (s *Submitter) Submit(ctx context.Context) (*models.Booking, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	s.state = StateSubmitting
	s.mu.Unlock()

	booking, rev, err := s.submit(ctx)
	if err != nil {
		s.setState(StateIdle)
		return nil, err
	}

	s.setState(StateSuccess)
	s.after(s.delay, func() { s.finish(booking, rev) })
	return booking, nil
}

// submit returns the created booking and the store revision it was made from.
func (s *Submitter) submit(ctx context.Context) (*models.Booking, uint64, error) {
	d, rev := s.store.snapshot()
	if !d.Complete() {
		return nil, 0, invalid("draft", ErrIncompleteDraft)
	}
	if utf8.RuneCountInString(d.Notes) > s.notesMax {
		return nil, 0, invalid("notes", ErrNotesTooLong)
	}
	if s.datePassed(*d.Date) {
		return nil, 0, invalid("date", ErrPastDate)
	}

	user, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return nil, 0, classify("current user", err)
	}
	if user == nil {
		return nil, 0, ErrNotAuthenticated
	}

	req := models.CreateBookingRequest{
		PatientID:    user.ID,
		DoctorID:     d.Doctor.ID,
		ServiceID:    d.Service.ID,
		BookingDate:  d.DateString(),
		StartTime:    d.TimeSlot,
		PatientNotes: d.Notes,
	}
	metrics.IncFunnel(metrics.StageSubmitted)

	booking, err := s.ledger.CreateBooking(ctx, req)
	if err != nil {
		err = classify("create booking", err)
		if _, ok := err.(*ConflictError); ok {
			metrics.IncFunnel(metrics.StageRejected)
		} else {
			metrics.IncFunnel(metrics.StageFailed)
		}
		s.logger.Warn().Err(err).
			Str("doctor_id", req.DoctorID).
			Str("date", req.BookingDate).
			Str("time", req.StartTime).
			Msg("create booking failed")
		return nil, 0, err
	}

	metrics.IncFunnel(metrics.StageCreated)
	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("doctor_id", req.DoctorID).
		Str("date", req.BookingDate).
		Str("time", req.StartTime).
		Msg("booking created")
	s.publish(user, d, booking)
	return booking, rev, nil
}

func (s *Submitter) datePassed(date time.Time) bool {
	s.mu.Lock()
	now, loc := s.now, s.loc
	s.mu.Unlock()
	return truncateDay(date.In(loc)).Before(truncateDay(now().In(loc)))
}

func (s *Submitter) publish(user *models.User, d Draft, b *models.Booking) {
	if s.publisher == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:   b.ID,
		PatientID:   user.ID,
		PatientName: user.FullName,
		DoctorID:    d.Doctor.ID,
		DoctorName:  d.Doctor.FullName,
		ServiceID:   d.Service.ID,
		ServiceName: d.Service.Name,
		Date:        d.DateString(),
		StartTime:   d.TimeSlot,
		Status:      string(b.Status),
	}
	if err := s.publisher.PublishJSON(events.EventBookingCreated, payload); err != nil {
		s.logger.Error().Err(err).Str("booking_id", b.ID).Msg("publish booking_created failed")
	}
}

// finish ends the success pause. A draft edited during the pause is the
// patient's next booking and is left alone.
func (s *Submitter) finish(b *models.Booking, rev uint64) {
	reset := s.store.resetIf(rev)

	s.mu.Lock()
	s.state = StateIdle
	done := s.onDone
	s.mu.Unlock()

	if !reset {
		s.logger.Debug().Str("booking_id", b.ID).Msg("draft changed during the success pause, reset skipped")
		return
	}
	if done != nil {
		done(b)
	}
}

func (s *Submitter) setState(st SubmitState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
