package booking

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"clinicbook/internal/domain"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"

	"github.com/rs/zerolog"
)

// generation implements latest-wins: only the fetch holding the current token may write.
type generation struct {
	n atomic.Uint64
}

func (g *generation) next() uint64          { return g.n.Add(1) }
func (g *generation) bump()                 { g.n.Add(1) }
func (g *generation) current(t uint64) bool { return g.n.Load() == t }

func orNop(l *zerolog.Logger) *zerolog.Logger {
	if l == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return l
}

// IdentityFunc adapts a function to domain.IdentityProvider.
type IdentityFunc func(ctx context.Context) (*models.User, error)

func (f IdentityFunc) CurrentUser(ctx context.Context) (*models.User, error) { return f(ctx) }

// ServiceResolver lists active services and records the pick.
type ServiceResolver struct {
	catalog domain.ServiceCatalog
	store   *Store
	logger  *zerolog.Logger
	gen     generation

	mu      sync.RWMutex
	options []models.Service
}

func NewServiceResolver(catalog domain.ServiceCatalog, store *Store, logger *zerolog.Logger) *ServiceResolver {
	return &ServiceResolver{catalog: catalog, store: store, logger: orNop(logger)}
}

// Load fetches the catalog. On failure the option list is emptied.
func (r *ServiceResolver) Load(ctx context.Context) ([]models.Service, error) {
	tok := r.gen.next()
	services, err := r.catalog.ListServices(ctx, domain.ServiceFilter{IsActive: true})
	if !r.gen.current(tok) {
		metrics.IncStale("service")
		return nil, ErrStaleResult
	}
	if err != nil {
		r.logger.Warn().Err(err).Msg("list services failed")
		r.setOptions(nil)
		return nil, classify("list services", err)
	}

	r.setOptions(services)
	return services, nil
}

func (r *ServiceResolver) Options() []models.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Service(nil), r.options...)
}

// Pick selects the service with id from the current list.
func (r *ServiceResolver) Pick(id string) error {
	svc, ok := r.find(id)
	if !ok {
		return invalid("service", ErrUnknownOption)
	}
	r.store.SetService(&svc)
	return nil
}

func (r *ServiceResolver) Invalidate() {
	r.gen.bump()
	r.setOptions(nil)
}

func (r *ServiceResolver) find(id string) (models.Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.options {
		if s.ID == id {
			return s, true
		}
	}
	return models.Service{}, false
}

func (r *ServiceResolver) setOptions(services []models.Service) {
	r.mu.Lock()
	r.options = services
	r.mu.Unlock()
}

// DoctorResolver lists active doctors for the selected service's specialty.
type DoctorResolver struct {
	directory domain.DoctorDirectory
	store     *Store
	logger    *zerolog.Logger
	gen       generation

	mu      sync.RWMutex
	options []models.Doctor
}

func NewDoctorResolver(directory domain.DoctorDirectory, store *Store, logger *zerolog.Logger) *DoctorResolver {
	return &DoctorResolver{directory: directory, store: store, logger: orNop(logger)}
}

// Load fetches doctors. The service name doubles as the specialty filter; with no
// service selected the whole directory is listed.
func (r *DoctorResolver) Load(ctx context.Context) ([]models.Doctor, error) {
	tok := r.gen.next()
	filter := domain.DoctorFilter{IsActive: true}
	if svc := r.store.Draft().Service; svc != nil {
		filter.Specialty = svc.Name
	}

	doctors, err := r.directory.ListDoctors(ctx, filter)
	if !r.gen.current(tok) {
		metrics.IncStale("doctor")
		return nil, ErrStaleResult
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("specialty", filter.Specialty).Msg("list doctors failed")
		r.setOptions(nil)
		return nil, classify("list doctors", err)
	}

	r.setOptions(doctors)
	return doctors, nil
}

func (r *DoctorResolver) Options() []models.Doctor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Doctor(nil), r.options...)
}

func (r *DoctorResolver) Pick(id string) error {
	doc, ok := r.find(id)
	if !ok {
		return invalid("doctor", ErrUnknownOption)
	}
	return r.store.SetDoctor(&doc)
}

// Invalidate drops the list and any fetch in flight.
func (r *DoctorResolver) Invalidate() {
	r.gen.bump()
	r.setOptions(nil)
}

func (r *DoctorResolver) find(id string) (models.Doctor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.options {
		if d.ID == id {
			return d, true
		}
	}
	return models.Doctor{}, false
}

func (r *DoctorResolver) setOptions(doctors []models.Doctor) {
	r.mu.Lock()
	r.options = doctors
	r.mu.Unlock()
}

// SlotGrid is the time step's option list. Placeholder grids are demo data, not availability.
type SlotGrid struct {
	Slots       []models.TimeSlot
	Placeholder bool
}

// Partition splits slots into morning (before 12:00) and afternoon, keeping order.
func Partition(slots []models.TimeSlot) (morning, afternoon []models.TimeSlot) {
	for _, s := range slots {
		h := s.Hour()
		switch {
		case h < 0:
			continue
		case h < 12:
			morning = append(morning, s)
		default:
			afternoon = append(afternoon, s)
		}
	}
	return morning, afternoon
}

func (g SlotGrid) Partition() (morning, afternoon []models.TimeSlot) {
	return Partition(g.Slots)
}

// TimeResolver fetches slots for the selected doctor, service and date.
type TimeResolver struct {
	engine   domain.AvailabilityEngine
	identity domain.IdentityProvider
	store    *Store
	logger   *zerolog.Logger
	demo     bool
	gen      generation

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu   sync.RWMutex
	grid SlotGrid
}

func NewTimeResolver(engine domain.AvailabilityEngine, identity domain.IdentityProvider, store *Store, logger *zerolog.Logger) *TimeResolver {
	return &TimeResolver{engine: engine, identity: identity, store: store, logger: orNop(logger)}
}

// EnableDemoFallback makes failed fetches return a placeholder grid drawn from rnd.
func (r *TimeResolver) EnableDemoFallback(rnd *rand.Rand) {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(rand.Int63()))
	}
	r.rndMu.Lock()
	r.demo = true
	r.rnd = rnd
	r.rndMu.Unlock()
}

// Load fetches the slot grid. Without demo fallback a failure leaves an empty grid.
func (r *TimeResolver) Load(ctx context.Context) (SlotGrid, error) {
	// The token is taken before the draft is read so a change in between marks this load stale.
	tok := r.gen.next()
	d := r.store.Draft()
	if d.Service == nil || d.Doctor == nil || d.Date == nil {
		return SlotGrid{}, invalid("time_slot", ErrMissingDependency)
	}
	user, err := r.identity.CurrentUser(ctx)
	if err != nil {
		return SlotGrid{}, classify("current user", err)
	}
	if user == nil {
		return SlotGrid{}, ErrNotAuthenticated
	}

	slots, err := r.engine.GetAvailableSlots(ctx, domain.SlotQuery{
		DoctorID:  d.Doctor.ID,
		PatientID: user.ID,
		ServiceID: d.Service.ID,
		Date:      d.DateString(),
	})
	if !r.gen.current(tok) {
		metrics.IncStale("time")
		return SlotGrid{}, ErrStaleResult
	}
	if err != nil {
		r.logger.Warn().Err(err).
			Str("doctor_id", d.Doctor.ID).
			Str("date", d.DateString()).
			Msg("get available slots failed")

		if grid, ok := r.placeholder(); ok {
			metrics.IncPlaceholder()
			r.setGrid(grid)
			return grid, nil
		}
		r.setGrid(SlotGrid{})
		return SlotGrid{}, classify("get available slots", err)
	}

	grid := SlotGrid{Slots: slots}
	r.setGrid(grid)
	return grid, nil
}

func (r *TimeResolver) Grid() SlotGrid {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return SlotGrid{Slots: append([]models.TimeSlot(nil), r.grid.Slots...), Placeholder: r.grid.Placeholder}
}

// Pick selects an available slot from the current grid.
func (r *TimeResolver) Pick(slot string) error {
	r.mu.RLock()
	var (
		found     bool
		available bool
	)
	for _, s := range r.grid.Slots {
		if s.Time == slot {
			found, available = true, s.Available
			break
		}
	}
	r.mu.RUnlock()

	if !found {
		return invalid("time_slot", ErrUnknownOption)
	}
	if !available {
		return invalid("time_slot", ErrSlotUnavailable)
	}
	return r.store.SetTimeSlot(slot)
}

func (r *TimeResolver) Invalidate() {
	r.gen.bump()
	r.setGrid(SlotGrid{})
}

func (r *TimeResolver) setGrid(g SlotGrid) {
	r.mu.Lock()
	r.grid = g
	r.mu.Unlock()
}

func (r *TimeResolver) placeholder() (SlotGrid, bool) {
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	if !r.demo {
		return SlotGrid{}, false
	}
	return SlotGrid{Slots: placeholderSlots(r.rnd), Placeholder: true}, true
}

// placeholderSlots builds the demo grid: every half hour from 08:00 to 16:30,
// each slot free with probability 0.7.
func placeholderSlots(rnd *rand.Rand) []models.TimeSlot {
	slots := make([]models.TimeSlot, 0, (models.DemoSlotEndHour-models.DemoSlotStartHour)*60/models.DemoSlotStep)
	for m := models.DemoSlotStartHour * 60; m < models.DemoSlotEndHour*60; m += models.DemoSlotStep {
		slots = append(slots, models.TimeSlot{
			Time:      fmt.Sprintf("%02d:%02d", m/60, m%60),
			Available: rnd.Float64() > 0.3,
		})
	}
	return slots
}
