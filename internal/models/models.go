package models

import (
	"strconv"
	"strings"
	"time"
)

// Service is a bookable clinic service from the catalog.
type Service struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	IconURL         string  `json:"iconUrl,omitempty"`
	DurationMinutes int     `json:"durationMinutes"`
	Price           float64 `json:"price"`
	MaxSlotsPerHour int     `json:"maxSlotsPerHour"`
	IsActive        bool    `json:"isActive"`
}

// Doctor is a practitioner from the doctor directory.
type Doctor struct {
	ID                string   `json:"id"`
	FullName          string   `json:"fullName"`
	Email             string   `json:"email,omitempty"`
	Phone             string   `json:"phone,omitempty"`
	Specialties       []string `json:"specialties"`
	Qualifications    []string `json:"qualifications,omitempty"`
	YearsOfExperience int      `json:"yearsOfExperience"`
	Rating            float64  `json:"rating"`
	ReviewCount       int      `json:"reviewCount"`
	Bio               string   `json:"bio,omitempty"`
	IsActive          bool     `json:"isActive"`
}

// PrimarySpecialty returns the first listed specialty or an empty string.
func (d Doctor) PrimarySpecialty() string {
	if len(d.Specialties) == 0 {
		return ""
	}
	return d.Specialties[0]
}

// TimeSlot is one bookable start time for a doctor/service/date combination.
type TimeSlot struct {
	Time           string `json:"time"` // HH:MM
	Available      bool   `json:"available"`
	AvailableSlots int    `json:"availableSlots,omitempty"`
	MaxSlots       int    `json:"maxSlots,omitempty"`
}

// Hour returns the hour part of Time, or -1 when Time is malformed.
func (s TimeSlot) Hour() int {
	h, _, ok := strings.Cut(s.Time, ":")
	if !ok {
		return -1
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return -1
	}
	return hour
}

// SmartSuggestion is a server-ranked date/time candidate.
type SmartSuggestion struct {
	Date           string   `json:"date"` // YYYY-MM-DD
	Time           string   `json:"time"` // HH:MM
	AvailableSlots int      `json:"availableSlots"`
	Score          float64  `json:"score"`
	Reasons        []string `json:"reasons,omitempty"`
}

// ParsedDate parses Date in the given location.
func (s SmartSuggestion) ParsedDate(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, s.Date, loc)
}

// Session is the persisted per-Telegram-user state: identity, the booking draft
// and the text-input step of the conversation.
type Session struct {
	UserID       int64                  `json:"user_id"`
	SessionID    string                 `json:"session_id"`
	AccessToken  string                 `json:"access_token,omitempty"`
	RefreshToken string                 `json:"refresh_token,omitempty"`
	User         *User                  `json:"user,omitempty"`
	InputStep    string                 `json:"input_step,omitempty"`
	Draft        BookingDraft           `json:"draft"`
	TempData     map[string]interface{} `json:"temp_data,omitempty"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Authenticated reports whether the session carries a token and a user identity.
func (s *Session) Authenticated() bool {
	return s != nil && s.AccessToken != "" && s.User != nil && s.User.ID != ""
}

// Logout drops the identity but keeps the draft.
func (s *Session) Logout() {
	s.AccessToken = ""
	s.RefreshToken = ""
	s.User = nil
}

func (s *Session) SetTemp(key string, value interface{}) {
	if s.TempData == nil {
		s.TempData = make(map[string]interface{})
	}
	s.TempData[key] = value
}

func (s *Session) GetInt64(key string) int64 {
	if s.TempData == nil {
		return 0
	}
	val, ok := s.TempData[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

func (s *Session) GetString(key string) string {
	if s.TempData == nil {
		return ""
	}
	val, ok := s.TempData[key]
	if !ok {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func (s *Session) GetTime(key string) time.Time {
	if s.TempData == nil {
		return time.Time{}
	}
	val, ok := s.TempData[key]
	if !ok {
		return time.Time{}
	}
	switch v := val.(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}
