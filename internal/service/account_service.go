package service

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"clinicbook/internal/domain"
	"clinicbook/internal/models"

	"github.com/rs/zerolog"
)

// AccountService covers everything about the patient's account that is not a booking:
// registration, profile edits, password changes and the dashboard.
type AccountService struct {
	backend domain.AccountBackend
	logger  *zerolog.Logger
}

var _ domain.AccountService = (*AccountService)(nil)

func NewAccountService(backend domain.AccountBackend, logger *zerolog.Logger) *AccountService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AccountService{backend: backend, logger: logger}
}

// Profile fetches the current profile and refreshes the copy kept on the session.
func (s *AccountService) Profile(ctx context.Context, session *models.Session) (*models.User, error) {
	user, err := s.backend.GetMe(ctx)
	if err != nil {
		return nil, err
	}
	s.remember(session, user)
	return user, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, session *models.Session, req models.UpdateProfileRequest) (*models.User, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Address = strings.TrimSpace(req.Address)
	if req.Empty() {
		return nil, ErrNothingToUpdate
	}
	if req.Phone != "" && !validPhone(req.Phone) {
		return nil, ErrInvalidPhone
	}

	user, err := s.backend.UpdateMe(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", session.UserID).Msg("profile update failed")
		return nil, err
	}
	s.remember(session, user)
	s.logger.Info().Int64("user_id", session.UserID).Str("patient_id", user.ID).Msg("profile updated")
	return user, nil
}

func (s *AccountService) ChangePassword(ctx context.Context, session *models.Session, current, next string) error {
	if current == "" {
		return ErrInvalidCredentials
	}
	if utf8.RuneCountInString(next) < models.MinPasswordLength {
		return ErrPasswordTooShort
	}
	if current == next {
		return ErrSamePassword
	}
	err := s.backend.ChangePassword(ctx, models.ChangePasswordRequest{CurrentPassword: current, NewPassword: next})
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", session.UserID).Msg("password change failed")
		return err
	}
	s.logger.Info().Int64("user_id", session.UserID).Msg("password changed")
	return nil
}

func (s *AccountService) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	return s.backend.GetDashboard(ctx)
}

// Register signs up a patient account. Staff roles cannot be requested from the bot.
func (s *AccountService) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)
	if !validEmail(req.Email) {
		return nil, ErrInvalidEmail
	}
	if req.FullName == "" {
		return nil, ErrNameRequired
	}
	if utf8.RuneCountInString(req.Password) < models.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	req.Role = models.RolePatient

	res, err := s.backend.Register(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", req.Email).Msg("registration failed")
		return nil, err
	}
	s.logger.Info().Str("patient_id", res.UserID).Msg("patient registered")
	return res, nil
}

func (s *AccountService) VerifyEmail(ctx context.Context, email, code string) error {
	code = strings.TrimSpace(code)
	if !validCode(code) {
		return ErrInvalidCode
	}
	return s.backend.VerifyEmail(ctx, models.VerifyEmailRequest{Email: strings.TrimSpace(email), OTP: code})
}

func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return ErrInvalidEmail
	}
	return s.backend.ResendVerification(ctx, email)
}

// remember copies the profile onto the session, keeping the role seen at login.
func (s *AccountService) remember(session *models.Session, user *models.User) {
	if session == nil || user == nil {
		return
	}
	copied := *user
	if copied.Role == "" && session.User != nil {
		copied.Role = session.User.Role
	}
	session.User = &copied
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\n")
}

func validCode(code string) bool {
	if len(code) != models.VerificationCodeLength {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// validPhone accepts digits with an optional leading plus, 8 to 15 digits long.
func validPhone(phone string) bool {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 8 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
