package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/quizclient/go/internal/quiz/clock"
	"github.com/mcdev12/quizclient/go/internal/quiz/connection"
)

const (
	TransportWebsocket = "websocket"
	TransportNATS      = "nats"
	TransportAbly      = "ably"
	TransportAMQP      = "amqp"

	ArchivePostgres = "postgres"
	ArchiveRedis    = "redis"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server struct {
		URL       string `yaml:"url"`
		Transport string `yaml:"transport"`
		NATSURL   string `yaml:"nats_url"`
		AblyKey   string `yaml:"ably_key"`
		AMQPURL   string `yaml:"amqp_url"`
	} `yaml:"server"`

	Timing struct {
		QuestionDuration time.Duration `yaml:"question_duration"`
		TransitionDelay  time.Duration `yaml:"transition_delay"`
		NoticeDuration   time.Duration `yaml:"notice_duration"`
	} `yaml:"timing"`

	Connection struct {
		HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
		WriteTimeout      time.Duration `yaml:"write_timeout"`
		ReadTimeout       time.Duration `yaml:"read_timeout"`
		PingInterval      time.Duration `yaml:"ping_interval"`
		MaxMessageSize    int64         `yaml:"max_message_size"`
		ReconnectAttempts int           `yaml:"reconnect_attempts"`
		InitialBackoff    time.Duration `yaml:"initial_backoff"`
		MaxBackoff        time.Duration `yaml:"max_backoff"`
	} `yaml:"connection"`

	Clock struct {
		SkewPolicy string        `yaml:"skew_policy"`
		Offset     time.Duration `yaml:"offset"`
	} `yaml:"clock"`

	Status struct {
		// Addr enables the local status server when set, e.g. ":9090".
		Addr string `yaml:"addr"`
	} `yaml:"status"`

	Archive struct {
		Enabled  bool          `yaml:"enabled"`
		Backend  string        `yaml:"backend"`
		RedisURL string        `yaml:"redis_url"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"archive"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	ws := connection.DefaultWebsocketConfig()
	conn := connection.DefaultConfig()

	var c Config
	c.Server.URL = "http://localhost:8000"
	c.Server.Transport = TransportWebsocket
	c.Server.NATSURL = connection.DefaultNATSConfig().URL
	c.Timing.QuestionDuration = clock.DefaultQuestionDuration
	c.Timing.TransitionDelay = 4 * time.Second
	c.Timing.NoticeDuration = 3 * time.Second
	c.Connection.HandshakeTimeout = ws.HandshakeTimeout
	c.Connection.WriteTimeout = ws.WriteTimeout
	c.Connection.ReadTimeout = ws.ReadTimeout
	c.Connection.PingInterval = conn.PingInterval
	c.Connection.MaxMessageSize = ws.MaxMessageSize
	c.Connection.ReconnectAttempts = conn.MaxAttempts
	c.Connection.InitialBackoff = conn.InitialBackoff
	c.Connection.MaxBackoff = conn.MaxBackoff
	c.Server.AMQPURL = connection.DefaultAMQPConfig().URL
	c.Clock.SkewPolicy = string(clock.SkewTrust)
	c.Archive.Backend = ArchivePostgres
	c.Archive.RedisURL = "redis://localhost:6379/0"
	c.Log.Level = "info"
	c.Log.Pretty = true
	return c
}

// Load reads the YAML file at path over the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.Server.URL = getEnv("QUIZ_SERVER_URL", c.Server.URL)
	c.Server.Transport = getEnv("QUIZ_TRANSPORT", c.Server.Transport)
	c.Server.NATSURL = getEnv("NATS_URL", c.Server.NATSURL)
	c.Server.AblyKey = getEnv("ABLY_API_KEY", c.Server.AblyKey)
	c.Server.AMQPURL = getEnv("AMQP_URL", c.Server.AMQPURL)
	c.Timing.QuestionDuration = getEnvAsDuration("QUIZ_QUESTION_DURATION", c.Timing.QuestionDuration)
	c.Timing.TransitionDelay = getEnvAsDuration("QUIZ_TRANSITION_DELAY", c.Timing.TransitionDelay)
	c.Connection.ReconnectAttempts = getEnvAsInt("QUIZ_RECONNECT_ATTEMPTS", c.Connection.ReconnectAttempts)
	c.Connection.PingInterval = getEnvAsDuration("QUIZ_PING_INTERVAL", c.Connection.PingInterval)
	c.Clock.SkewPolicy = getEnv("QUIZ_SKEW_POLICY", c.Clock.SkewPolicy)
	c.Clock.Offset = getEnvAsDuration("QUIZ_CLOCK_OFFSET", c.Clock.Offset)
	c.Status.Addr = getEnv("QUIZ_STATUS_ADDR", c.Status.Addr)
	c.Archive.Enabled = getEnvAsBool("QUIZ_ARCHIVE_ENABLED", c.Archive.Enabled)
	c.Archive.Backend = getEnv("QUIZ_ARCHIVE_BACKEND", c.Archive.Backend)
	c.Archive.RedisURL = getEnv("REDIS_URL", c.Archive.RedisURL)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Validate checks the values that have no safe fallback.
func (c Config) Validate() error {
	switch c.Server.Transport {
	case TransportWebsocket:
		if c.Server.URL == "" {
			return fmt.Errorf("%w: server.url is required for the websocket transport", ErrInvalidConfig)
		}
	case TransportNATS:
		if c.Server.NATSURL == "" {
			return fmt.Errorf("%w: server.nats_url is required for the nats transport", ErrInvalidConfig)
		}
	case TransportAbly:
		if c.Server.AblyKey == "" {
			return fmt.Errorf("%w: server.ably_key is required for the ably transport", ErrInvalidConfig)
		}
	case TransportAMQP:
		if c.Server.AMQPURL == "" {
			return fmt.Errorf("%w: server.amqp_url is required for the amqp transport", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Server.Transport)
	}
	if c.Timing.QuestionDuration <= 0 {
		return fmt.Errorf("%w: timing.question_duration must be positive", ErrInvalidConfig)
	}
	if c.Connection.ReconnectAttempts < 0 {
		return fmt.Errorf("%w: connection.reconnect_attempts must not be negative", ErrInvalidConfig)
	}
	if c.Archive.Backend != ArchivePostgres && c.Archive.Backend != ArchiveRedis {
		return fmt.Errorf("%w: unknown archive backend %q", ErrInvalidConfig, c.Archive.Backend)
	}
	if _, err := clock.ParseSkewPolicy(c.Clock.SkewPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ConnectionConfig returns the reconnect and keep-alive policy.
func (c Config) ConnectionConfig() connection.Config {
	cfg := connection.DefaultConfig()
	cfg.PingInterval = c.Connection.PingInterval
	cfg.MaxAttempts = c.Connection.ReconnectAttempts
	cfg.InitialBackoff = c.Connection.InitialBackoff
	cfg.MaxBackoff = c.Connection.MaxBackoff
	return cfg
}

// Dialer builds the configured transport.
func (c Config) Dialer() connection.Dialer {
	switch c.Server.Transport {
	case TransportNATS:
		nc := connection.DefaultNATSConfig()
		nc.URL = c.Server.NATSURL
		if c.Connection.WriteTimeout > 0 {
			nc.FlushTimeout = c.Connection.WriteTimeout
		}
		return connection.NewNATSDialer(nc)
	case TransportAbly:
		return connection.NewAblyDialer(connection.AblyConfig{Key: c.Server.AblyKey, Buffer: 64})
	case TransportAMQP:
		ac := connection.DefaultAMQPConfig()
		ac.URL = c.Server.AMQPURL
		return connection.NewAMQPDialer(ac)
	}

	ws := connection.DefaultWebsocketConfig()
	ws.HandshakeTimeout = c.Connection.HandshakeTimeout
	ws.WriteTimeout = c.Connection.WriteTimeout
	ws.ReadTimeout = c.Connection.ReadTimeout
	ws.MaxMessageSize = c.Connection.MaxMessageSize
	return connection.NewWebsocketDialer(c.Server.URL, ws)
}

// Skew returns the clock-skew handling for question anchors.
func (c Config) Skew() clock.Skew {
	policy, _ := clock.ParseSkewPolicy(c.Clock.SkewPolicy)
	return clock.Skew{Policy: policy, Offset: c.Clock.Offset}
}

// LogLevel returns the parsed zerolog level, info when unparsable.
func (c Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
