package models

import "time"

type BookingStatus string

const (
	StatusPending    BookingStatus = "PENDING"
	StatusConfirmed  BookingStatus = "CONFIRMED"
	StatusCheckedIn  BookingStatus = "CHECKED_IN"
	StatusInProgress BookingStatus = "IN_PROGRESS"
	StatusCompleted  BookingStatus = "COMPLETED"
	StatusCancelled  BookingStatus = "CANCELLED"
	StatusQueued     BookingStatus = "QUEUED"
	StatusNoShow     BookingStatus = "NO_SHOW"
)

// Cancellable reports whether a patient may still cancel a booking in this status.
func (s BookingStatus) Cancellable() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusQueued:
		return true
	default:
		return false
	}
}

type Booking struct {
	ID           string        `json:"id"`
	PatientID    string        `json:"patientId"`
	DoctorID     string        `json:"doctorId"`
	ServiceID    string        `json:"serviceId"`
	BookingDate  string        `json:"bookingDate"`
	StartTime    string        `json:"startTime"`
	EndTime      string        `json:"endTime,omitempty"`
	Status       BookingStatus `json:"status"`
	PatientNotes string        `json:"patientNotes,omitempty"`
	DoctorNotes  string        `json:"doctorNotes,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`

	Doctor      *BookingDoctor  `json:"doctor,omitempty"`
	Service     *BookingService `json:"service,omitempty"`
	QueueRecord *QueueRecord    `json:"queueRecord,omitempty"`
}

// BookingDoctor and BookingService are the populated relations the backend embeds in a booking.
type BookingDoctor struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

type BookingService struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	DurationMinutes int     `json:"durationMinutes"`
	Price           float64 `json:"price"`
}

type QueueRecord struct {
	ID                   string `json:"id"`
	BookingID            string `json:"bookingId"`
	QueuePosition        int    `json:"queuePosition"`
	EstimatedWaitMinutes int    `json:"estimatedWaitMinutes"`
}

// CreateBookingRequest is the booking ledger payload.
type CreateBookingRequest struct {
	PatientID    string `json:"patientId"`
	DoctorID     string `json:"doctorId"`
	ServiceID    string `json:"serviceId"`
	BookingDate  string `json:"bookingDate"` // YYYY-MM-DD
	StartTime    string `json:"startTime"`   // HH:MM
	PatientNotes string `json:"patientNotes,omitempty"`
}

// BookingStep is the wizard position, 1..5.
type BookingStep int

const (
	StepService BookingStep = iota + 1
	StepDoctor
	StepDate
	StepTime
	StepConfirm
)

func (s BookingStep) Valid() bool {
	return s >= StepService && s <= StepConfirm
}

func (s BookingStep) String() string {
	switch s {
	case StepService:
		return "service"
	case StepDoctor:
		return "doctor"
	case StepDate:
		return "date"
	case StepTime:
		return "time"
	case StepConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// BookingDraft is the in-progress, uncommitted booking selection.
type BookingDraft struct {
	Step     BookingStep `json:"step"`
	Service  *Service    `json:"service,omitempty"`
	Doctor   *Doctor     `json:"doctor,omitempty"`
	Date     *time.Time  `json:"date,omitempty"`
	TimeSlot string      `json:"time_slot,omitempty"`
	Notes    string      `json:"notes,omitempty"`
}

// NewBookingDraft returns the empty draft at the first step.
func NewBookingDraft() BookingDraft {
	return BookingDraft{Step: StepService}
}

// Complete reports whether every selection required for submission is present.
func (d BookingDraft) Complete() bool {
	return d.Service != nil && d.Doctor != nil && d.Date != nil && d.TimeSlot != ""
}

// DateString formats the selected date as YYYY-MM-DD, or "" when unset.
func (d BookingDraft) DateString() string {
	if d.Date == nil {
		return ""
	}
	return d.Date.Format(DateLayout)
}
