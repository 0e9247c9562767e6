package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all scibot configuration.
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Telegram  TelegramConfig
	Scheduler SchedulerConfig
	OpenAI    OpenAIConfig
	AdminIDs  []int64
	LogLevel  string
}

type DatabaseConfig struct {
	Type       string // "sqlite" or "postgres"
	SQLitePath string
	URL        string // postgres DSN
}

type ServerConfig struct {
	Addr string
}

type TelegramConfig struct {
	Token string
}

type SchedulerConfig struct {
	Enabled   bool
	StartHour int // UTC, inclusive
	EndHour   int // UTC, inclusive
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_TYPE", DriverSQLite)
	v.SetDefault("SQLITE_PATH", "data/scibot.db")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_USER", "sciuser")
	v.SetDefault("DB_PASS", "sci_password")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "scientia_db")
	v.SetDefault("HTTP_ADDR", "127.0.0.1:8000")
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("NOTIFICATION_START_HOUR", 4)
	v.SetDefault("NOTIFICATION_END_HOUR", 18)
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("ADMIN_IDS", "")
	v.SetDefault("LOG_LEVEL", "info")
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Database: DatabaseConfig{
			Type:       strings.ToLower(v.GetString("DB_TYPE")),
			SQLitePath: v.GetString("SQLITE_PATH"),
			URL:        v.GetString("DATABASE_URL"),
		},
		Server: ServerConfig{
			Addr: v.GetString("HTTP_ADDR"),
		},
		Telegram: TelegramConfig{
			Token: v.GetString("TELEGRAM_BOT_TOKEN"),
		},
		Scheduler: SchedulerConfig{
			Enabled:   v.GetBool("ENABLE_SCHEDULER"),
			StartHour: v.GetInt("NOTIFICATION_START_HOUR"),
			EndHour:   v.GetInt("NOTIFICATION_END_HOUR"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  v.GetString("OPENAI_API_KEY"),
			Model:   v.GetString("OPENAI_MODEL"),
			BaseURL: v.GetString("OPENAI_BASE_URL"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	switch cfg.Database.Type {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.Database.URL == "" {
			cfg.Database.URL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
				v.GetString("DB_USER"), v.GetString("DB_PASS"),
				v.GetString("DB_HOST"), v.GetString("DB_PORT"), v.GetString("DB_NAME"))
		}
	default:
		return Config{}, fmt.Errorf("unknown DB_TYPE %q", cfg.Database.Type)
	}

	if err := validHour("NOTIFICATION_START_HOUR", cfg.Scheduler.StartHour); err != nil {
		return Config{}, err
	}
	if err := validHour("NOTIFICATION_END_HOUR", cfg.Scheduler.EndHour); err != nil {
		return Config{}, err
	}

	ids, err := ParseAdminIDs(v.GetString("ADMIN_IDS"))
	if err != nil {
		return Config{}, err
	}
	cfg.AdminIDs = ids

	return cfg, nil
}

// ParseAdminIDs parses a comma separated list of telegram ids.
func ParseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func validHour(key string, h int) error {
	if h < 0 || h > 23 {
		return fmt.Errorf("%s must be between 0 and 23, got %d", key, h)
	}
	return nil
}
