package booking

import (
	"context"
	"sync"
	"time"

	"clinicbook/internal/domain"
	"clinicbook/internal/models"
)

// fakeClinic is an in-memory domain.ClinicAPI. The before* hooks run ahead of each
// answer so tests can hold a call open.
type fakeClinic struct {
	mu sync.Mutex

	services    []models.Service
	servicesErr error

	doctors       []models.Doctor
	doctorsErr    error
	doctorFilters []domain.DoctorFilter
	beforeDoctors func(call int)

	slots       []models.TimeSlot
	slotsErr    error
	slotQueries []domain.SlotQuery
	beforeSlots func(call int)

	suggestions       []models.SmartSuggestion
	suggestionsErr    error
	suggestionQueries []domain.SuggestionQuery
	beforeSuggestions func(call int)

	createFn    func(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error)
	createCalls []models.CreateBookingRequest
}

var _ domain.ClinicAPI = (*fakeClinic)(nil)

func (f *fakeClinic) ListServices(_ context.Context, _ domain.ServiceFilter) ([]models.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.services, f.servicesErr
}

func (f *fakeClinic) ListDoctors(_ context.Context, filter domain.DoctorFilter) ([]models.Doctor, error) {
	f.mu.Lock()
	f.doctorFilters = append(f.doctorFilters, filter)
	call, hook := len(f.doctorFilters), f.beforeDoctors
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doctors, f.doctorsErr
}

func (f *fakeClinic) GetAvailableSlots(_ context.Context, q domain.SlotQuery) ([]models.TimeSlot, error) {
	f.mu.Lock()
	f.slotQueries = append(f.slotQueries, q)
	call, hook := len(f.slotQueries), f.beforeSlots
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots, f.slotsErr
}

func (f *fakeClinic) GetSuggestions(_ context.Context, q domain.SuggestionQuery) ([]models.SmartSuggestion, error) {
	f.mu.Lock()
	f.suggestionQueries = append(f.suggestionQueries, q)
	call, hook := len(f.suggestionQueries), f.beforeSuggestions
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suggestions, f.suggestionsErr
}

func (f *fakeClinic) CreateBooking(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error) {
	f.mu.Lock()
	f.createCalls = append(f.createCalls, req)
	fn := f.createFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return &models.Booking{ID: "b1", Status: models.StatusPending, BookingDate: req.BookingDate, StartTime: req.StartTime}, nil
}

func (f *fakeClinic) ListMyBookings(context.Context) ([]models.Booking, error) { return nil, nil }

func (f *fakeClinic) CancelBooking(context.Context, string, string) (*models.Booking, error) {
	return nil, nil
}

func (f *fakeClinic) Login(context.Context, models.LoginRequest) (*models.LoginResult, error) {
	return nil, nil
}

func (f *fakeClinic) Logout(context.Context, string) error { return nil }

func (f *fakeClinic) GetMe(context.Context) (*models.User, error) { return patient, nil }

func (f *fakeClinic) UpdateMe(context.Context, models.UpdateProfileRequest) (*models.User, error) {
	return patient, nil
}

func (f *fakeClinic) ChangePassword(context.Context, models.ChangePasswordRequest) error { return nil }

func (f *fakeClinic) GetDashboard(context.Context) (*models.Dashboard, error) {
	return &models.Dashboard{}, nil
}

func (f *fakeClinic) Register(context.Context, models.RegisterRequest) (*models.RegisterResult, error) {
	return nil, nil
}

func (f *fakeClinic) VerifyEmail(context.Context, models.VerifyEmailRequest) error { return nil }

func (f *fakeClinic) ResendVerification(context.Context, string) error { return nil }

func (f *fakeClinic) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.createCalls)
}

type recordingPublisher struct {
	mu     sync.Mutex
	types  []string
	events []interface{}
}

func (p *recordingPublisher) PublishJSON(eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	p.events = append(p.events, payload)
	return nil
}

var (
	svcCardio = models.Service{ID: "s1", Name: "Cardiology", DurationMinutes: 30, Price: 300000, IsActive: true}
	svcDerma  = models.Service{ID: "s2", Name: "Dermatology", DurationMinutes: 20, Price: 200000, IsActive: true}
	docAn     = models.Doctor{ID: "d1", FullName: "Dr. An", Specialties: []string{"Cardiology"}, IsActive: true}
	docBinh   = models.Doctor{ID: "d2", FullName: "Dr. Binh", Specialties: []string{"Cardiology"}, IsActive: true}
	patient   = &models.User{ID: "p1", FullName: "Patient One", Role: models.RolePatient}
)

func loggedIn() domain.IdentityProvider {
	return IdentityFunc(func(context.Context) (*models.User, error) { return patient, nil })
}

func anonymous() domain.IdentityProvider {
	return IdentityFunc(func(context.Context) (*models.User, error) { return nil, nil })
}

func fixedClock(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 15, 4, 5, 0, time.UTC) }
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// completeStore returns a store holding service s1, doctor d1, 2024-06-15 and 09:00.
func completeStore() *Store {
	s := NewStore()
	svc, doc := svcCardio, docAn
	s.SetService(&svc)
	_ = s.SetDoctor(&doc)
	s.SetDate(day(2024, time.June, 15))
	_ = s.SetTimeSlot("09:00")
	return s
}
