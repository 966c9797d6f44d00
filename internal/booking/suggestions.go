package booking

import (
	"context"
	"sync"
	"time"

	"clinicbook/internal/domain"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"

	"github.com/rs/zerolog"
)

// Suggestions consumes ranked date/time candidates for the selected doctor and service.
type Suggestions struct {
	engine domain.SuggestionEngine
	store  *Store
	logger *zerolog.Logger
	now    func() time.Time
	loc    *time.Location
	limit  int
	days   int
	gen    generation

	mu      sync.RWMutex
	items   []models.SmartSuggestion
	loading bool
}

func NewSuggestions(engine domain.SuggestionEngine, store *Store, logger *zerolog.Logger, now func() time.Time, loc *time.Location, limit, days int) *Suggestions {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	if limit <= 0 {
		limit = models.DefaultSuggestionLimit
	}
	if days <= 0 {
		days = models.DefaultSuggestionDays
	}
	return &Suggestions{
		engine: engine,
		store:  store,
		logger: orNop(logger),
		now:    now,
		loc:    loc,
		limit:  limit,
		days:   days,
	}
}

// Load requests suggestions for [today, today+days]. Nothing is requested until
// both doctor and service are selected. Failures are logged and leave the list empty.
func (s *Suggestions) Load(ctx context.Context) ([]models.SmartSuggestion, error) {
	tok := s.gen.next()
	d := s.store.Draft()
	if d.Service == nil || d.Doctor == nil {
		s.Invalidate()
		return nil, nil
	}

	today := truncateDay(s.now().In(s.loc))
	s.mu.Lock()
	if s.gen.current(tok) {
		s.loading = true
	}
	s.mu.Unlock()

	items, err := s.engine.GetSuggestions(ctx, domain.SuggestionQuery{
		DoctorID:  d.Doctor.ID,
		ServiceID: d.Service.ID,
		StartDate: today.Format(models.DateLayout),
		EndDate:   today.AddDate(0, 0, s.days).Format(models.DateLayout),
		Limit:     s.limit,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gen.current(tok) {
		metrics.IncStale("suggestions")
		return nil, ErrStaleResult
	}
	s.loading = false
	if err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", d.Doctor.ID).Msg("get suggestions failed")
		s.items = nil
		return nil, classify("get suggestions", err)
	}
	if len(items) > s.limit {
		items = items[:s.limit]
	}
	s.items = items
	return append([]models.SmartSuggestion(nil), items...), nil
}

// Visible is what the patient should see: nothing while a fetch is in flight,
// when doctor or service is unset, or when the server had no candidates.
func (s *Suggestions) Visible() []models.SmartSuggestion {
	d := s.store.Draft()
	if d.Service == nil || d.Doctor == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loading || len(s.items) == 0 {
		return nil
	}
	return append([]models.SmartSuggestion(nil), s.items...)
}

// Adopt applies suggestion i and jumps the wizard to confirmation.
func (s *Suggestions) Adopt(i int) error {
	s.mu.RLock()
	if i < 0 || i >= len(s.items) || s.loading {
		s.mu.RUnlock()
		return invalid("suggestion", ErrUnknownOption)
	}
	sug := s.items[i]
	s.mu.RUnlock()

	date, err := sug.ParsedDate(s.loc)
	if err != nil {
		return invalid("suggestion", ErrUnknownOption)
	}
	if err := s.store.AdoptSuggestion(date, sug.Time); err != nil {
		return err
	}
	metrics.IncFunnel(metrics.StageSuggestionAdopt)
	return nil
}

func (s *Suggestions) Invalidate() {
	s.gen.bump()
	s.mu.Lock()
	s.items = nil
	s.loading = false
	s.mu.Unlock()
}
