package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinicbook/internal/api"
	"clinicbook/internal/bot"
	"clinicbook/internal/clinic"
	"clinicbook/internal/config"
	"clinicbook/internal/events"
	"clinicbook/internal/logging"
	"clinicbook/internal/metrics"
	"clinicbook/internal/repository"
	"clinicbook/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, loadErr := loadConfigAndLogger()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("failed to create exports directory")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, sessions := initSessionService(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	clinicClient := clinic.NewClient(cfg.Clinic.BaseURL, cfg.Clinic.Timeout())
	if redisClient != nil && cfg.Clinic.CacheTTL() > 0 {
		clinicClient.UseRedisCache(redisClient, cfg.Clinic.CacheTTL())
	}

	eventBus := events.NewEventBus(logging.Component(logger, "events"))
	events.SubscribeAudit(eventBus, logging.Component(logger, "audit"))

	metrics.Register()

	checks := map[string]api.Check{}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return repository.Ping(ctx, redisClient) }
	}
	healthServer := api.NewHTTPServer(cfg.Monitoring.HealthCheckPort, checks, cfg.Monitoring.PrometheusEnabled, logging.Component(logger, "http"))
	go func() {
		if err := healthServer.Start(); err != nil {
			logger.Error().Err(err).Msg("health server error")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthServer.Shutdown(shutdownCtx)
	}()

	return startBot(ctx, cfg, sessions, clinicClient, eventBus, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logging.Component(baseLogger, "bot-main"), closer, nil
}

// initSessionService keeps sessions in Redis when it is configured, with an
// in-memory store taking over while Redis is down.
func initSessionService(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *service.SessionService) {
	ttl := cfg.Bot.SessionTTL()
	fallbackRepo := repository.NewMemorySessionRepository(ttl)
	sessionLogger := logging.Component(logger, "sessions")

	if cfg.Redis.Address == "" {
		logger.Warn().Msg("Redis is not configured, sessions are kept in memory")
		return nil, service.NewSessionService(fallbackRepo, sessionLogger)
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if errPing := repository.Ping(ctx, redisClient); errPing != nil {
		logger.Warn().Err(errPing).Msg("Redis unavailable")
	}

	primaryRepo := repository.NewRedisSessionRepository(redisClient, ttl)
	sessionRepo := repository.NewFailoverSessionRepository(primaryRepo, fallbackRepo, sessionLogger)
	return redisClient, service.NewSessionService(sessionRepo, sessionLogger)
}

func startBot(
	ctx context.Context,
	cfg *config.Config,
	sessions *service.SessionService,
	clinicClient *clinic.Client,
	eventBus *events.EventBus,
	logger *zerolog.Logger,
) error {
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create BotAPI")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	tgService := service.NewTelegramService(bot.NewBotWrapper(botAPI))
	authService := service.NewAuthService(clinicClient, logging.Component(logger, "auth"))
	appointmentService := service.NewAppointmentService(clinicClient, eventBus, logging.Component(logger, "appointments"))
	accountService := service.NewAccountService(clinicClient, logging.Component(logger, "accounts"))

	telegramBot, err := bot.NewBot(
		tgService, cfg, sessions, clinicClient,
		authService, appointmentService, accountService, eventBus,
		bot.NewMetrics(nil), logging.Component(logger, "bot"),
	)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create bot")
		return err
	}

	logger.Info().Str("clinic", cfg.Clinic.BaseURL).Msg("bot started")
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}
