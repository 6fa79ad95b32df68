package config

import (
	"os"
	"strings"
	"time"

	"cards-chaos/internal/game"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	Port        string `env:"PORT"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	AutoMigrate bool   `env:"AUTO_MIGRATE"`
	CardsCSV    string `env:"CARDS_CSV"`

	SubmissionSeconds int    `env:"SUBMISSION_SECONDS"`
	PickingSeconds    int    `env:"PICKING_SECONDS"`
	HandSize          int    `env:"HAND_SIZE"`
	MaxPlayers        int    `env:"MAX_PLAYERS"`
	MinPlayers        int    `env:"MIN_PLAYERS"`
	DefaultMaxRounds  int    `env:"DEFAULT_MAX_ROUNDS"`
	DefaultPackID     string `env:"DEFAULT_PACK_ID"`

	OpeningQuestionText string `env:"FALLBACK_OPENING_QUESTION"`
	OutOfQuestionsText  string `env:"FALLBACK_QUESTION"`
	UnknownWinningCard  string `env:"FALLBACK_WINNING_CARD"`

	SweepIntervalSeconds         int      `env:"SWEEP_INTERVAL_SECONDS"`
	VideoHeartbeatTimeoutSeconds int      `env:"VIDEO_HEARTBEAT_TIMEOUT_SECONDS"`
	SignalRetentionSeconds       int      `env:"SIGNAL_RETENTION_SECONDS"`
	ICEServers                   []string `env:"ICE_SERVERS" envSeparator:","`

	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST"`

	DBMaxOpenConns           int `env:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int `env:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeSeconds int `env:"DB_CONN_MAX_LIFETIME_SECONDS"`
	DBConnMaxIdleTimeSeconds int `env:"DB_CONN_MAX_IDLE_SECONDS"`
}

func Default() Config {
	return Config{
		Port:                         "8080",
		SubmissionSeconds:            60,
		PickingSeconds:               30,
		HandSize:                     7,
		MaxPlayers:                   8,
		MinPlayers:                   3,
		DefaultMaxRounds:             10,
		DefaultPackID:                "standard",
		OpeningQuestionText:          "No questions available!",
		OutOfQuestionsText:           "Out of questions!",
		UnknownWinningCard:           "Unknown",
		SweepIntervalSeconds:         1,
		VideoHeartbeatTimeoutSeconds: 120,
		SignalRetentionSeconds:       300,
		ICEServers:                   []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"},
		RateLimitPerSecond:           5,
		RateLimitBurst:               20,
		DBMaxOpenConns:               10,
		DBMaxIdleConns:               10,
		DBConnMaxLifetimeSeconds:     300,
		DBConnMaxIdleTimeSeconds:     60,
	}
}

// Load overlays environment variables on top of Default. Unset variables keep
// their default, and non-positive numbers are reset to it.
func Load() (Config, error) {
	cfg := Default()
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	defaults := Default()
	positive := []struct {
		value    *int
		fallback int
	}{
		{&cfg.SubmissionSeconds, defaults.SubmissionSeconds},
		{&cfg.PickingSeconds, defaults.PickingSeconds},
		{&cfg.HandSize, defaults.HandSize},
		{&cfg.MaxPlayers, defaults.MaxPlayers},
		{&cfg.MinPlayers, defaults.MinPlayers},
		{&cfg.DefaultMaxRounds, defaults.DefaultMaxRounds},
		{&cfg.SweepIntervalSeconds, defaults.SweepIntervalSeconds},
		{&cfg.VideoHeartbeatTimeoutSeconds, defaults.VideoHeartbeatTimeoutSeconds},
		{&cfg.SignalRetentionSeconds, defaults.SignalRetentionSeconds},
		{&cfg.RateLimitBurst, defaults.RateLimitBurst},
		{&cfg.DBMaxOpenConns, defaults.DBMaxOpenConns},
		{&cfg.DBMaxIdleConns, defaults.DBMaxIdleConns},
		{&cfg.DBConnMaxLifetimeSeconds, defaults.DBConnMaxLifetimeSeconds},
		{&cfg.DBConnMaxIdleTimeSeconds, defaults.DBConnMaxIdleTimeSeconds},
	}
	for _, field := range positive {
		if *field.value <= 0 {
			*field.value = field.fallback
		}
	}
	if cfg.RateLimitPerSecond <= 0 {
		cfg.RateLimitPerSecond = defaults.RateLimitPerSecond
	}
	cfg.DefaultPackID = strings.TrimSpace(cfg.DefaultPackID)
	return cfg, nil
}

func (c Config) Game() game.Config {
	return game.Config{
		HandSize:            c.HandSize,
		SubmissionTime:      time.Duration(c.SubmissionSeconds) * time.Second,
		PickingTime:         time.Duration(c.PickingSeconds) * time.Second,
		OpeningQuestionText: c.OpeningQuestionText,
		OutOfQuestionsText:  c.OutOfQuestionsText,
		UnknownWinningCard:  c.UnknownWinningCard,
	}
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.VideoHeartbeatTimeoutSeconds) * time.Second
}

func (c Config) SignalRetention() time.Duration {
	return time.Duration(c.SignalRetentionSeconds) * time.Second
}
