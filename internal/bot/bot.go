package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"clinicbook/internal/clinic"
	"clinicbook/internal/config"
	"clinicbook/internal/domain"
	"clinicbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	updateTimeout      = 30 * time.Second
	sweepInterval      = 10 * time.Minute
	loginAttemptLimit  = 5
	loginAttemptWindow = 15 * time.Minute
)

type Bot struct {
	tgService    domain.TelegramService
	config       *config.Config
	sessions     domain.SessionManager
	clinic       domain.ClinicAPI
	auth         domain.AuthService
	appointments domain.AppointmentService
	accounts     domain.AccountService
	eventBus     domain.EventPublisher
	metrics      *Metrics
	limiter      *userLimiter
	logger       *zerolog.Logger
	loc          *time.Location
	now          func() time.Time

	mu    sync.Mutex
	flows map[int64]*userFlow
	// secrets holds a typed password between two prompts; it never reaches the session store
	secrets map[int64]string
}

func NewBot(
	tgService domain.TelegramService,
	cfg *config.Config,
	sessions domain.SessionManager,
	clinicAPI domain.ClinicAPI,
	auth domain.AuthService,
	appointments domain.AppointmentService,
	accounts domain.AccountService,
	eventBus domain.EventPublisher,
	metrics *Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if tgService == nil || cfg == nil || sessions == nil || clinicAPI == nil {
		return nil, errors.New("bot: telegram service, config, sessions and clinic api are required")
	}
	if auth == nil || appointments == nil || accounts == nil {
		return nil, errors.New("bot: auth, appointment and account services are required")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Bot{
		tgService:    tgService,
		config:       cfg,
		sessions:     sessions,
		clinic:       clinicAPI,
		auth:         auth,
		appointments: appointments,
		accounts:     accounts,
		eventBus:     eventBus,
		metrics:      metrics,
		limiter:      newUserLimiter(cfg.Bot.RateLimitRPS, cfg.Bot.RateLimitBurst),
		logger:       logger,
		loc:          cfg.Location(),
		now:          time.Now,
		flows:        make(map[int64]*userFlow),
		secrets:      make(map[int64]string),
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			b.tgService.StopReceivingUpdates()
			return
		case <-sweep.C:
			if n := b.sweepFlows(b.config.Bot.SessionTTL()); n > 0 {
				b.logger.Debug().Int("evicted", n).Msg("idle booking flows evicted")
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)
	updateCtx = clinic.WithRequestID(updateCtx, requestID)

	b.withRecovery(func() {
		var (
			userID int64
			kind   string
		)
		switch {
		case update.Message != nil && update.Message.From != nil:
			userID, kind = update.Message.From.ID, "message"
		case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
			userID, kind = update.CallbackQuery.From.ID, "callback"
		}
		if userID == 0 {
			return
		}
		if b.metrics != nil {
			b.metrics.UpdatesProcessed.WithLabelValues(kind).Inc()
		}

		if !b.limiter.Allow(userID) {
			if b.metrics != nil {
				b.metrics.RateLimited.Inc()
			}
			l.Warn().Int64("user_id", userID).Msg("Rate limit exceeded")
			if update.Message != nil {
				b.sendMessage(update.Message.Chat.ID, "⚠️ You are sending messages too fast. Please wait a moment.")
			}
			if update.CallbackQuery != nil {
				b.answerCallback(update.CallbackQuery.ID, "Too fast, please wait a moment")
			}
			return
		}

		session, err := b.sessions.Load(updateCtx, userID)
		if err != nil {
			b.incErrors()
			l.Error().Err(err).Int64("user_id", userID).Msg("failed to load session")
			if update.Message != nil {
				b.sendMessage(update.Message.Chat.ID, b.getErrorMessage(err))
			}
			return
		}
		updateCtx = clinic.WithToken(updateCtx, session.AccessToken)

		if update.CallbackQuery != nil {
			b.handleCallbackQuery(updateCtx, session, update.CallbackQuery)
			return
		}
		b.handleMessage(updateCtx, session, update.Message)
	})
}

func (b *Bot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			b.incErrors()
			b.logger.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

func (b *Bot) incErrors() {
	if b.metrics != nil {
		b.metrics.ErrorsTotal.Inc()
	}
}

func (b *Bot) saveSession(ctx context.Context, session *models.Session) {
	if err := b.sessions.Save(ctx, session); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", session.UserID).Msg("failed to save session")
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}

func (b *Bot) sendHTML(chatID int64, text string) {
	if _, err := b.tgService.SendHTML(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}

// show edits messageID in place when it is set, otherwise sends a new message.
func (b *Bot) show(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	var err error
	if messageID != 0 {
		_, err = b.tgService.EditMessage(chatID, messageID, text, &keyboard)
	} else {
		_, err = b.tgService.SendWithInlineKeyboard(chatID, text, keyboard)
	}
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("render failed")
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	if err := b.tgService.AnswerCallback(callbackID, text); err != nil {
		b.logger.Debug().Err(err).Msg("answer callback failed")
	}
}
