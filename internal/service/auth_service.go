package service

import (
	"context"
	"strings"

	"clinicbook/internal/domain"
	"clinicbook/internal/models"

	"github.com/rs/zerolog"
)

// AuthService logs patients in against the clinic backend and keeps the result in their session.
type AuthService struct {
	auth   domain.Authenticator
	logger *zerolog.Logger
}

var _ domain.AuthService = (*AuthService)(nil)

func NewAuthService(auth domain.Authenticator, logger *zerolog.Logger) *AuthService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AuthService{auth: auth, logger: logger}
}

// Login authenticates and stores the tokens and user on the session. Non-patient accounts are refused.
func (s *AuthService) Login(ctx context.Context, session *models.Session, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return ErrInvalidCredentials
	}

	result, err := s.auth.Login(ctx, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", session.UserID).Msg("login failed")
		return err
	}
	if result.User.Role != "" && result.User.Role != models.RolePatient {
		s.logger.Warn().Int64("user_id", session.UserID).Str("role", string(result.User.Role)).Msg("non-patient login refused")
		return ErrNotPatient
	}

	user := result.User
	session.AccessToken = result.AccessToken
	session.RefreshToken = result.RefreshToken
	session.User = &user
	s.logger.Info().Int64("user_id", session.UserID).Str("patient_id", user.ID).Msg("patient logged in")
	return nil
}

// Logout revokes the refresh token best-effort and drops the identity from the session.
func (s *AuthService) Logout(ctx context.Context, session *models.Session) {
	if session.RefreshToken != "" {
		if err := s.auth.Logout(ctx, session.RefreshToken); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", session.UserID).Msg("logout request failed")
		}
	}
	session.Logout()
}
