package domain

import (
	"context"
	"time"

	"clinicbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type ServiceFilter struct {
	IsActive bool
}

type DoctorFilter struct {
	IsActive  bool
	Specialty string
}

type SlotQuery struct {
	DoctorID  string
	PatientID string
	ServiceID string
	Date      string // YYYY-MM-DD
}

type SuggestionQuery struct {
	DoctorID  string
	ServiceID string
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD
	Limit     int
}

type ServiceCatalog interface {
	ListServices(ctx context.Context, filter ServiceFilter) ([]models.Service, error)
}

type DoctorDirectory interface {
	ListDoctors(ctx context.Context, filter DoctorFilter) ([]models.Doctor, error)
}

type AvailabilityEngine interface {
	GetAvailableSlots(ctx context.Context, query SlotQuery) ([]models.TimeSlot, error)
}

type SuggestionEngine interface {
	GetSuggestions(ctx context.Context, query SuggestionQuery) ([]models.SmartSuggestion, error)
}

type BookingLedger interface {
	CreateBooking(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error)
}

// IdentityProvider returns the authenticated patient, or nil when nobody is logged in.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// AppointmentBook covers the patient's own appointments outside the booking wizard.
type AppointmentBook interface {
	ListMyBookings(ctx context.Context) ([]models.Booking, error)
	CancelBooking(ctx context.Context, id, reason string) (*models.Booking, error)
}

type Authenticator interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
}

// ProfileManager reads and edits the signed-in patient's own account.
type ProfileManager interface {
	GetMe(ctx context.Context) (*models.User, error)
	UpdateMe(ctx context.Context, req models.UpdateProfileRequest) (*models.User, error)
	ChangePassword(ctx context.Context, req models.ChangePasswordRequest) error
}

type DashboardSource interface {
	GetDashboard(ctx context.Context) (*models.Dashboard, error)
}

// Registrar creates patient accounts. A new account is inactive until its email is verified.
type Registrar interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResult, error)
	VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) error
	ResendVerification(ctx context.Context, email string) error
}

// AccountBackend is the account side of the clinic backend.
type AccountBackend interface {
	ProfileManager
	DashboardSource
	Registrar
}

// ClinicAPI is everything the bot needs from the clinic backend.
type ClinicAPI interface {
	ServiceCatalog
	DoctorDirectory
	AvailabilityEngine
	SuggestionEngine
	BookingLedger
	AppointmentBook
	Authenticator
	AccountBackend
}

type SessionRepository interface {
	GetSession(ctx context.Context, userID int64) (*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error
	ClearSession(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type SessionManager interface {
	Load(ctx context.Context, userID int64) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	Clear(ctx context.Context, userID int64) error
	Allow(ctx context.Context, userID int64, limit int, window time.Duration) bool
}

type AuthService interface {
	Login(ctx context.Context, session *models.Session, email, password string) error
	Logout(ctx context.Context, session *models.Session)
}

type AppointmentService interface {
	List(ctx context.Context) ([]models.Booking, error)
	Cancel(ctx context.Context, telegramID int64, user *models.User, id, reason string) (*models.Booking, error)
}

type AccountService interface {
	Profile(ctx context.Context, session *models.Session) (*models.User, error)
	UpdateProfile(ctx context.Context, session *models.Session, req models.UpdateProfileRequest) (*models.User, error)
	ChangePassword(ctx context.Context, session *models.Session, current, next string) error
	Dashboard(ctx context.Context) (*models.Dashboard, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResult, error)
	VerifyEmail(ctx context.Context, email, code string) error
	ResendVerification(ctx context.Context, email string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendHTML(chatID int64, text string) (tgbotapi.Message, error)
	SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	SendDocument(chatID int64, path, caption string) (tgbotapi.Message, error)
	AnswerCallback(callbackID string, text string) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}
