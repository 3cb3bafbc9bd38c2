package variables

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type SyncStrategy string

const (
	// SyncDesignated asks a single existing member to send its buffer.
	SyncDesignated SyncStrategy = "designated"
	// SyncBroadcast asks every existing member.
	SyncBroadcast SyncStrategy = "broadcast"
)

var (
	ErrInvalidSyncStrategy = errors.New("invalid sync strategy")
	ErrOutOfRange          = errors.New("value out of range")
)

type Config struct {
	HTTPPort       string
	AllowedOrigins []string
	LogLevel       slog.Level

	OutboxSize     int
	MaxMessageSize int64
	PongWait       time.Duration
	PingPeriod     time.Duration
	WriteWait      time.Duration

	DrawingEchoSender       bool
	SyncStrategy            SyncStrategy
	SingleRoom              bool
	FanoutParallelThreshold int
}

// LoadDotEnv reads .env into the process environment. A missing file is not
// an error.
func LoadDotEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}
}

func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

func LoadFrom(lookup Lookup) (*Config, error) {
	env := func(name, defaultValue string) string {
		return envFrom(lookup, name, defaultValue)
	}

	var (
		cfg  = &Config{}
		errs []error
		err  error
	)

	cfg.HTTPPort = env(HTTP_PORT_NAME, HTTP_PORT_DEFAULT)
	cfg.AllowedOrigins = ParseList(env(ALLOWED_ORIGINS_NAME, ALLOWED_ORIGINS_DEFAULT))

	if err = cfg.LogLevel.UnmarshalText([]byte(env(LOG_LEVEL_NAME, LOG_LEVEL_DEFAULT))); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", LOG_LEVEL_NAME, err))
	}

	if cfg.OutboxSize, err = ParseInt(env(OUTBOX_SIZE_NAME, OUTBOX_SIZE_DEFAULT)); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", OUTBOX_SIZE_NAME, err))
	} else if cfg.OutboxSize < 1 {
		errs = append(errs, fmt.Errorf("%s %d must be at least 1: %w", OUTBOX_SIZE_NAME, cfg.OutboxSize, ErrOutOfRange))
	}

	maxMessageSize, err := ParseInt(env(MAX_MESSAGE_SIZE_NAME, MAX_MESSAGE_SIZE_DEFAULT))
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", MAX_MESSAGE_SIZE_NAME, err))
	} else if maxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("%s %d must be positive: %w", MAX_MESSAGE_SIZE_NAME, maxMessageSize, ErrOutOfRange))
	}
	cfg.MaxMessageSize = int64(maxMessageSize)

	if cfg.PongWait, err = ParseDuration(env(PONG_WAIT_NAME, PONG_WAIT_DEFAULT)); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", PONG_WAIT_NAME, err))
	}
	cfg.PingPeriod = (cfg.PongWait * 9) / 10
	// the ping ticker needs a positive period
	if err == nil && cfg.PingPeriod <= 0 {
		errs = append(errs, fmt.Errorf("%s %s is too short: %w", PONG_WAIT_NAME, cfg.PongWait, ErrOutOfRange))
	}

	if cfg.WriteWait, err = ParseDuration(env(WRITE_WAIT_NAME, WRITE_WAIT_DEFAULT)); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", WRITE_WAIT_NAME, err))
	} else if cfg.WriteWait <= 0 {
		errs = append(errs, fmt.Errorf("%s %s must be positive: %w", WRITE_WAIT_NAME, cfg.WriteWait, ErrOutOfRange))
	}

	if cfg.DrawingEchoSender, err = ParseBool(env(DRAWING_ECHO_SENDER_NAME, DRAWING_ECHO_SENDER_DEFAULT)); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", DRAWING_ECHO_SENDER_NAME, err))
	}

	cfg.SyncStrategy = SyncStrategy(env(SYNC_STRATEGY_NAME, SYNC_STRATEGY_DEFAULT))
	switch cfg.SyncStrategy {
	case SyncDesignated, SyncBroadcast:
	default:
		errs = append(errs, fmt.Errorf("%s %q: %w", SYNC_STRATEGY_NAME, cfg.SyncStrategy, ErrInvalidSyncStrategy))
	}

	if cfg.SingleRoom, err = ParseBool(env(SINGLE_ROOM_NAME, SINGLE_ROOM_DEFAULT)); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", SINGLE_ROOM_NAME, err))
	}

	if cfg.FanoutParallelThreshold, err = ParseInt(env(FANOUT_PARALLEL_THRESHOLD_NAME, FANOUT_PARALLEL_THRESHOLD_DEFAULT)); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", FANOUT_PARALLEL_THRESHOLD_NAME, err))
	} else if cfg.FanoutParallelThreshold < 0 {
		errs = append(errs, fmt.Errorf("%s %d must not be negative: %w", FANOUT_PARALLEL_THRESHOLD_NAME, cfg.FanoutParallelThreshold, ErrOutOfRange))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration built only from default values.
func Default() *Config {
	cfg, err := LoadFrom(func(string) string { return "" })
	if err != nil {
		panic(err)
	}
	return cfg
}
