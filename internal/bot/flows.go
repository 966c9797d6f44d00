package bot

import (
	"context"
	"sync"
	"time"

	"clinicbook/internal/booking"
	"clinicbook/internal/clinic"
	"clinicbook/internal/models"
)

// userFlow is one patient's booking wizard plus what the bot needs to keep
// talking to them outside an update: the chat and the identity for the flow.
type userFlow struct {
	*booking.Flow

	mu       sync.Mutex
	user     *models.User
	chatID   int64
	lastSeen time.Time
}

// CurrentUser implements domain.IdentityProvider for the flow's resolvers.
func (u *userFlow) CurrentUser(context.Context) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.user == nil {
		return nil, nil
	}
	user := *u.user
	return &user, nil
}

func (u *userFlow) touch(session *models.Session, chatID int64, now time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if session.Authenticated() {
		user := *session.User
		u.user = &user
	} else {
		u.user = nil
	}
	if chatID != 0 {
		u.chatID = chatID
	}
	u.lastSeen = now
}

func (u *userFlow) chat() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.chatID
}

// flowFor returns the user's wizard, rehydrating it from the session draft on first use.
func (b *Bot) flowFor(session *models.Session, chatID int64) *userFlow {
	b.mu.Lock()
	uf, ok := b.flows[session.UserID]
	if !ok {
		uf = &userFlow{}
		uf.Flow = booking.NewFlow(b.clinic, uf, b.eventBus, b.logger, b.flowOptions())
		b.flows[session.UserID] = uf
		if b.metrics != nil {
			b.metrics.ActiveFlows.Set(float64(len(b.flows)))
		}
	}
	b.mu.Unlock()

	uf.touch(session, chatID, b.now())
	if !ok {
		uf.Restore(session.Draft)
		userID := session.UserID
		uf.Submitter.OnDone(func(created *models.Booking) {
			b.onBookingDone(userID, uf, created)
		})
	}
	return uf
}

func (b *Bot) flowOptions() booking.Options {
	return booking.Options{
		SuggestionLimit: b.config.Booking.SuggestionLimit,
		SuggestionDays:  b.config.Booking.SuggestionDays,
		SuccessDelay:    b.config.Booking.SuccessDelay(),
		MaxAdvanceDays:  b.config.Booking.MaxAdvanceDays,
		NotesMaxLength:  b.config.Booking.NotesMaxLength,
		DemoFallback:    b.config.Clinic.DemoFallback,
		Location:        b.loc,
		Now:             func() time.Time { return b.now() },
	}
}

// dropFlow forgets the in-memory wizard; the persisted draft is untouched.
func (b *Bot) dropFlow(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if uf, ok := b.flows[userID]; ok {
		uf.Cancel()
		delete(b.flows, userID)
	}
	if b.metrics != nil {
		b.metrics.ActiveFlows.Set(float64(len(b.flows)))
	}
}

// sweepFlows evicts wizards idle for longer than idle. Their drafts live on in the session store.
func (b *Bot) sweepFlows(idle time.Duration) int {
	cutoff := b.now().Add(-idle)

	b.mu.Lock()
	defer b.mu.Unlock()
	evicted := 0
	for userID, uf := range b.flows {
		uf.mu.Lock()
		stale := uf.lastSeen.Before(cutoff)
		uf.mu.Unlock()
		if !stale || uf.Submitter.State() != booking.StateIdle {
			continue
		}
		delete(b.flows, userID)
		b.limiter.Forget(userID)
		evicted++
	}
	if b.metrics != nil {
		b.metrics.ActiveFlows.Set(float64(len(b.flows)))
	}
	return evicted
}

// persistDraft copies the wizard's draft into the session and saves it.
func (b *Bot) persistDraft(ctx context.Context, session *models.Session, uf *userFlow) {
	session.Draft = uf.Store.Draft()
	if err := b.sessions.Save(ctx, session); err != nil {
		b.logger.Error().Err(err).Int64("user_id", session.UserID).Msg("failed to persist draft")
	}
}

// onBookingDone runs after the success pause, once the submitter has reset the
// draft, and takes the patient to their appointments.
func (b *Bot) onBookingDone(userID int64, uf *userFlow, created *models.Booking) {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()
	ctx = b.logger.WithContext(ctx)

	session, err := b.sessions.Load(ctx, userID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to load session after booking")
		return
	}
	b.persistDraft(ctx, session, uf)
	if created != nil {
		b.logger.Debug().Int64("user_id", userID).Str("booking_id", created.ID).Msg("booking flow reset")
	}

	chatID := uf.chat()
	if chatID == 0 || !session.Authenticated() {
		return
	}
	b.handleMyBookings(clinic.WithToken(ctx, session.AccessToken), session, chatID, 0, 0)
}
