package service

import (
	"context"
	"time"

	"clinicbook/internal/domain"
	"clinicbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionService loads and persists per-user bot sessions.
type SessionService struct {
	repo   domain.SessionRepository
	logger *zerolog.Logger
	now    func() time.Time
}

var _ domain.SessionManager = (*SessionService)(nil)

func NewSessionService(repo domain.SessionRepository, logger *zerolog.Logger) *SessionService {
	return &SessionService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Load returns the user's session, starting a fresh one when none is stored.
func (s *SessionService) Load(ctx context.Context, userID int64) (*models.Session, error) {
	session, err := s.repo.GetSession(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to get session")
		return nil, err
	}
	if session == nil {
		session = &models.Session{
			UserID:    userID,
			SessionID: uuid.NewString(),
			Draft:     models.NewBookingDraft(),
		}
	}
	if session.SessionID == "" {
		session.SessionID = uuid.NewString()
	}
	return session, nil
}

func (s *SessionService) Save(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = s.now()
	if err := s.repo.SaveSession(ctx, session); err != nil {
		s.logger.Error().Err(err).Int64("user_id", session.UserID).Msg("failed to save session")
		return err
	}
	return nil
}

func (s *SessionService) Clear(ctx context.Context, userID int64) error {
	return s.repo.ClearSession(ctx, userID)
}

// Allow is a shared fixed-window throttle keyed by user, used for login attempts.
func (s *SessionService) Allow(ctx context.Context, userID int64, limit int, window time.Duration) bool {
	allowed, err := s.repo.CheckRateLimit(ctx, userID, limit, window)
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("rate limit check failed")
		return true
	}
	return allowed
}
