package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"clinicbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Clinic     ClinicConfig     `yaml:"clinic"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Booking    BookingConfig    `yaml:"booking"`
	Bot        BotConfig        `yaml:"bot"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	TimeZone    string `yaml:"timezone"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

// ClinicConfig describes the clinic REST backend.
type ClinicConfig struct {
	BaseURL         string `yaml:"base_url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	// DemoFallback enables the placeholder slot grid when availability cannot be fetched.
	// Never enable it in production: the grid availability is random.
	DemoFallback bool `yaml:"demo_fallback"`
}

func (c ClinicConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ClinicConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	HealthCheckPort   int  `yaml:"health_check_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type BookingConfig struct {
	SuggestionLimit     int `yaml:"suggestion_limit"`
	SuggestionDays      int `yaml:"suggestion_days"`
	SuccessDelaySeconds int `yaml:"success_delay_seconds"`
	MaxAdvanceDays      int `yaml:"max_advance_days"`
	NotesMaxLength      int `yaml:"notes_max_length"`
}

func (c BookingConfig) SuccessDelay() time.Duration {
	return time.Duration(c.SuccessDelaySeconds) * time.Second
}

type BotConfig struct {
	RateLimitRPS      float64 `yaml:"rate_limit_rps"`
	RateLimitBurst    int     `yaml:"rate_limit_burst"`
	SessionTTLSeconds int     `yaml:"session_ttl_seconds"`
	PaginationSize    int     `yaml:"pagination_size"`
}

func (c BotConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}

	if strings.TrimSpace(c.Clinic.BaseURL) == "" {
		return errors.New("clinic base_url is required")
	}
	u, err := url.Parse(c.Clinic.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("clinic base_url %q is not an absolute url", c.Clinic.BaseURL)
	}

	if c.App.TimeZone != "" {
		if _, err := time.LoadLocation(c.App.TimeZone); err != nil {
			return fmt.Errorf("unknown app timezone %q: %w", c.App.TimeZone, err)
		}
	}

	if c.Booking.SuggestionLimit < 0 || c.Booking.SuggestionDays < 0 {
		return errors.New("booking suggestion settings must not be negative")
	}

	return nil
}

// Location returns the clinic time zone used for "today" calculations.
func (c *Config) Location() *time.Location {
	if c.App.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.App.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "clinicbook"
	}
	c.Clinic.BaseURL = strings.TrimRight(c.Clinic.BaseURL, "/")
	if c.Clinic.TimeoutSeconds <= 0 {
		c.Clinic.TimeoutSeconds = models.DefaultAPITimeout
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}

	if c.Booking.SuggestionLimit == 0 {
		c.Booking.SuggestionLimit = models.DefaultSuggestionLimit
	}
	if c.Booking.SuggestionDays == 0 {
		c.Booking.SuggestionDays = models.DefaultSuggestionDays
	}
	if c.Booking.SuccessDelaySeconds == 0 {
		c.Booking.SuccessDelaySeconds = models.DefaultSuccessDelay
	}
	if c.Booking.NotesMaxLength == 0 {
		c.Booking.NotesMaxLength = models.MaxPatientNotesLength
	}

	if c.Bot.RateLimitRPS == 0 {
		c.Bot.RateLimitRPS = models.RateLimitRPS
	}
	if c.Bot.RateLimitBurst == 0 {
		c.Bot.RateLimitBurst = models.RateLimitBurst
	}
	if c.Bot.SessionTTLSeconds == 0 {
		c.Bot.SessionTTLSeconds = models.DefaultSessionTTL
	}
	if c.Bot.PaginationSize == 0 {
		c.Bot.PaginationSize = models.DefaultPaginationSize
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
