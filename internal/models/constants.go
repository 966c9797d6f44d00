package models

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

// Text-input steps of the conversation; the booking wizard itself is driven by BookingStep.
const (
	InputNone          = ""
	InputLoginEmail    = "login_email"
	InputLoginPassword = "login_password"
	InputNotes         = "notes"

	InputRegisterEmail    = "register_email"
	InputRegisterName     = "register_name"
	InputRegisterPassword = "register_password"
	InputVerifyCode       = "verify_code"

	InputProfileName     = "profile_name"
	InputProfilePhone    = "profile_phone"
	InputCurrentPassword = "current_password"
	InputNewPassword     = "new_password"
)

const (
	// MaxPatientNotesLength is the limit for free-text notes, in characters.
	MaxPatientNotesLength = 500

	// MinPasswordLength is the shortest password the clinic accepts.
	MinPasswordLength = 6

	// VerificationCodeLength digits in the emailed verification code
	VerificationCodeLength = 6

	// DefaultSuggestionLimit number of smart suggestions requested
	DefaultSuggestionLimit = 3

	// DefaultSuggestionDays suggestion window length starting today
	DefaultSuggestionDays = 7

	// DefaultSuccessDelay pause before the draft is reset after a booking, seconds
	DefaultSuccessDelay = 2

	// DefaultAPITimeout clinic backend timeout, seconds
	DefaultAPITimeout = 10

	// DefaultSessionTTL session lifetime in Redis, seconds
	DefaultSessionTTL = 24 * 60 * 60

	// DefaultPaginationSize bookings per page
	DefaultPaginationSize = 5

	// RateLimitRPS sustained updates per second per user
	RateLimitRPS = 2

	// RateLimitBurst update burst per user
	RateLimitBurst = 10

	// DemoSlotStartHour and DemoSlotEndHour bound the placeholder grid, DemoSlotStep in minutes
	DemoSlotStartHour = 8
	DemoSlotEndHour   = 17
	DemoSlotStep      = 30
)

var StatusLabels = map[BookingStatus]string{
	StatusPending:    "Pending confirmation",
	StatusConfirmed:  "Confirmed",
	StatusCheckedIn:  "Checked in",
	StatusInProgress: "In examination",
	StatusCompleted:  "Completed",
	StatusCancelled:  "Cancelled",
	StatusQueued:     "In queue",
	StatusNoShow:     "No-show",
}

// Label returns the human readable status.
func (s BookingStatus) Label() string {
	if l, ok := StatusLabels[s]; ok {
		return l
	}
	return string(s)
}
