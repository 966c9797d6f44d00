package booking

import (
	"sync"
	"time"
	"unicode/utf8"

	"clinicbook/internal/models"
)

// Draft is the store's snapshot type.
type Draft = models.BookingDraft

// Listener observes every effective store mutation.
type Listener func(prev, next Draft)

// Store owns one patient's booking draft and wizard step. Writes that change an
// upstream selection clear the selections depending on it in the same update.
type Store struct {
	mu        sync.Mutex
	draft     Draft
	rev       uint64 // bumped on every effective mutation
	notesMax  int
	listeners []Listener
}

func NewStore() *Store {
	return &Store{draft: models.NewBookingDraft(), notesMax: models.MaxPatientNotesLength}
}

// SetNotesLimit overrides the notes length limit, in characters.
func (s *Store) SetNotesLimit(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.notesMax = n
	s.mu.Unlock()
}

// OnChange registers l. Listeners run after the lock is released, in registration order.
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

func (s *Store) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDraft(s.draft)
}

// snapshot returns the draft together with its revision.
func (s *Store) snapshot() (Draft, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDraft(s.draft), s.rev
}

// resetIf empties the draft only if nothing changed it since revision rev, and
// reports whether the draft was still at rev.
func (s *Store) resetIf(rev uint64) bool {
	matched := false
	s.update(func(d *Draft) bool {
		if s.rev != rev {
			return false
		}
		matched = true
		if isEmpty(*d) {
			return false
		}
		*d = models.NewBookingDraft()
		return true
	})
	return matched
}

func (s *Store) Step() models.BookingStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Step
}

// update applies fn to the draft under the lock. fn reports whether it changed anything.
func (s *Store) update(fn func(d *Draft) bool) bool {
	s.mu.Lock()
	prev := cloneDraft(s.draft)
	if !fn(&s.draft) {
		s.mu.Unlock()
		return false
	}
	clampStep(&s.draft)
	s.rev++
	next := cloneDraft(s.draft)
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(prev, next)
	}
	return true
}

// SetService selects svc. A different service clears the doctor and time slot; nil clears all three.
func (s *Store) SetService(svc *models.Service) {
	s.update(func(d *Draft) bool {
		if sameService(d.Service, svc) {
			return false
		}
		d.Service = cloneService(svc)
		d.Doctor = nil
		d.TimeSlot = ""
		return true
	})
}

// SetDoctor selects doc. A different doctor clears the time slot.
func (s *Store) SetDoctor(doc *models.Doctor) error {
	var err error
	s.update(func(d *Draft) bool {
		if doc != nil && d.Service == nil {
			err = invalid("doctor", ErrMissingDependency)
			return false
		}
		if sameDoctor(d.Doctor, doc) {
			return false
		}
		d.Doctor = cloneDoctor(doc)
		d.TimeSlot = ""
		return true
	})
	return err
}

// SetDate selects the calendar day of date. A different day clears the time slot.
func (s *Store) SetDate(date time.Time) {
	day := truncateDay(date)
	s.update(func(d *Draft) bool {
		if d.Date != nil && d.Date.Equal(day) {
			return false
		}
		d.Date = &day
		d.TimeSlot = ""
		return true
	})
}

// ClearDate unsets the date and the time slot.
func (s *Store) ClearDate() {
	s.update(func(d *Draft) bool {
		if d.Date == nil {
			return false
		}
		d.Date = nil
		d.TimeSlot = ""
		return true
	})
}

// SetTimeSlot selects slot (HH:MM). Service, doctor and date must already be set;
// an empty slot clears the selection.
func (s *Store) SetTimeSlot(slot string) error {
	if slot != "" && !validSlot(slot) {
		return invalid("time_slot", ErrUnknownOption)
	}
	var err error
	s.update(func(d *Draft) bool {
		if slot != "" && (d.Service == nil || d.Doctor == nil || d.Date == nil) {
			err = invalid("time_slot", ErrMissingDependency)
			return false
		}
		if d.TimeSlot == slot {
			return false
		}
		d.TimeSlot = slot
		return true
	})
	return err
}

func (s *Store) SetNotes(notes string) error {
	var err error
	s.update(func(d *Draft) bool {
		if utf8.RuneCountInString(notes) > s.notesMax {
			err = invalid("notes", ErrNotesTooLong)
			return false
		}
		if d.Notes == notes {
			return false
		}
		d.Notes = notes
		return true
	})
	return err
}

// AdoptSuggestion sets date, time slot and the confirmation step in one update,
// whatever step the wizard was on.
func (s *Store) AdoptSuggestion(date time.Time, slot string) error {
	if !validSlot(slot) {
		return invalid("suggestion", ErrUnknownOption)
	}
	day := truncateDay(date)
	var err error
	s.update(func(d *Draft) bool {
		if d.Service == nil || d.Doctor == nil {
			err = invalid("suggestion", ErrMissingDependency)
			return false
		}
		if d.Date != nil && d.Date.Equal(day) && d.TimeSlot == slot && d.Step == models.StepConfirm {
			return false
		}
		d.Date = &day
		d.TimeSlot = slot
		d.Step = models.StepConfirm
		return true
	})
	return err
}

// CanProceed reports whether the current step's selection is present. Always true at the last step.
func (s *Store) CanProceed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return canProceedAt(s.draft.Step, s.draft)
}

// NextStep advances one step when allowed. It reports whether the step changed.
func (s *Store) NextStep() bool {
	return s.update(func(d *Draft) bool {
		if d.Step >= models.StepConfirm || !canProceedAt(d.Step, *d) {
			return false
		}
		d.Step++
		return true
	})
}

// PreviousStep goes back one step, never below the first.
func (s *Store) PreviousStep() bool {
	return s.update(func(d *Draft) bool {
		if d.Step <= models.StepService {
			return false
		}
		d.Step--
		return true
	})
}

// Reset restores the empty draft at the first step.
func (s *Store) Reset() {
	s.update(func(d *Draft) bool {
		empty := models.NewBookingDraft()
		if isEmpty(*d) {
			return false
		}
		*d = empty
		return true
	})
}

// Restore loads a persisted draft, dropping selections whose dependencies are
// missing and pulling the step back to the furthest reachable one.
func (s *Store) Restore(saved Draft) {
	saved = cloneDraft(saved)
	if saved.Service == nil {
		saved.Doctor = nil
	}
	if saved.Service == nil || saved.Doctor == nil || saved.Date == nil || !validSlot(saved.TimeSlot) {
		saved.TimeSlot = ""
	}
	if saved.Date != nil {
		day := truncateDay(*saved.Date)
		saved.Date = &day
	}
	s.update(func(d *Draft) bool {
		if utf8.RuneCountInString(saved.Notes) > s.notesMax {
			saved.Notes = string([]rune(saved.Notes)[:s.notesMax])
		}
		*d = saved
		return true
	})
}

func canProceedAt(step models.BookingStep, d Draft) bool {
	switch step {
	case models.StepService:
		return d.Service != nil
	case models.StepDoctor:
		return d.Doctor != nil
	case models.StepDate:
		return d.Date != nil
	case models.StepTime:
		return d.TimeSlot != ""
	case models.StepConfirm:
		return true
	default:
		return false
	}
}

// clampStep keeps the step within [1,5] and no further than the selections allow.
func clampStep(d *Draft) {
	if !d.Step.Valid() {
		d.Step = models.StepService
	}
	reachable := models.StepService
	for reachable < models.StepConfirm && canProceedAt(reachable, *d) {
		reachable++
	}
	if d.Step > reachable {
		d.Step = reachable
	}
}

func isEmpty(d Draft) bool {
	return d.Step == models.StepService && d.Service == nil && d.Doctor == nil &&
		d.Date == nil && d.TimeSlot == "" && d.Notes == ""
}

func validSlot(slot string) bool {
	_, err := time.Parse(models.TimeLayout, slot)
	return err == nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameService(a, b *models.Service) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func sameDoctor(a, b *models.Doctor) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func cloneService(s *models.Service) *models.Service {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneDoctor(d *models.Doctor) *models.Doctor {
	if d == nil {
		return nil
	}
	c := *d
	c.Specialties = append([]string(nil), d.Specialties...)
	c.Qualifications = append([]string(nil), d.Qualifications...)
	return &c
}

func cloneDraft(d Draft) Draft {
	d.Service = cloneService(d.Service)
	d.Doctor = cloneDoctor(d.Doctor)
	if d.Date != nil {
		day := *d.Date
		d.Date = &day
	}
	return d
}
