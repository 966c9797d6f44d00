package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"clinicbook/internal/domain"
	"clinicbook/internal/events"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"

	"github.com/rs/zerolog"
)

// AppointmentService covers the patient's existing appointments: listing and cancellation.
type AppointmentService struct {
	book     domain.AppointmentBook
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

var _ domain.AppointmentService = (*AppointmentService)(nil)

func NewAppointmentService(book domain.AppointmentBook, eventBus domain.EventPublisher, logger *zerolog.Logger) *AppointmentService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AppointmentService{
		book:     book,
		eventBus: eventBus,
		logger:   logger,
	}
}

// List returns the patient's appointments, newest date first.
func (s *AppointmentService) List(ctx context.Context) ([]models.Booking, error) {
	bookings, err := s.book.ListMyBookings(ctx)
	if err != nil {
		return nil, err
	}
	SortBookings(bookings)
	return bookings, nil
}

// Find returns a single appointment of the patient by id.
func (s *AppointmentService) Find(ctx context.Context, id string) (*models.Booking, error) {
	bookings, err := s.book.ListMyBookings(ctx)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		if bookings[i].ID == id {
			return &bookings[i], nil
		}
	}
	return nil, ErrBookingNotFound
}

// Cancel cancels one of the patient's appointments after checking it is still cancellable.
func (s *AppointmentService) Cancel(ctx context.Context, telegramID int64, user *models.User, id, reason string) (*models.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrBookingNotFound
	}

	current, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.Cancellable() {
		return nil, fmt.Errorf("%w: status %s", ErrNotCancellable, current.Status)
	}

	cancelled, err := s.book.CancelBooking(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	if cancelled == nil {
		copied := *current
		copied.Status = models.StatusCancelled
		cancelled = &copied
	}

	metrics.IncFunnel(metrics.StageAppointmentDrop)
	s.publishEvent(telegramID, user, *cancelled, reason)
	return cancelled, nil
}

func (s *AppointmentService) publishEvent(telegramID int64, user *models.User, booking models.Booking, reason string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:  booking.ID,
		TelegramID: telegramID,
		PatientID:  booking.PatientID,
		DoctorID:   booking.DoctorID,
		ServiceID:  booking.ServiceID,
		Date:       booking.BookingDate,
		StartTime:  booking.StartTime,
		Status:     string(booking.Status),
		Reason:     reason,
	}
	if user != nil {
		payload.PatientName = user.FullName
	}
	if booking.Doctor != nil {
		payload.DoctorName = booking.Doctor.FullName
	}
	if booking.Service != nil {
		payload.ServiceName = booking.Service.Name
	}

	if err := s.eventBus.PublishJSON(events.EventBookingCancelled, payload); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

// SortBookings orders by date and start time, latest first.
func SortBookings(bookings []models.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].BookingDate != bookings[j].BookingDate {
			return bookings[i].BookingDate > bookings[j].BookingDate
		}
		return bookings[i].StartTime > bookings[j].StartTime
	})
}
