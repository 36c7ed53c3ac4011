package infra

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the engine. Values are resolved with the
// precedence: CLI flags > environment > config file > defaults. Flag
// overrides are applied by the caller after Load.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Network struct {
		WSHost   string `yaml:"ws_host"`
		WSPort   string `yaml:"ws_port"`
		RESTHost string `yaml:"rest_host"`
		RESTPort string `yaml:"rest_port"`
		Symbol   string `yaml:"symbol"` // lowercase, e.g. "btcusdt"

		ReconnectDelayInitialMS    int     `yaml:"reconnect_delay_initial_ms"`
		ReconnectDelayMaxMS        int     `yaml:"reconnect_delay_max_ms"`
		ReconnectBackoffMultiplier float64 `yaml:"reconnect_backoff_multiplier"`
		ReconnectJitterFactor      float64 `yaml:"reconnect_jitter_factor"`
	} `yaml:"network"`

	Engine struct {
		QueueCapacity     uint64  `yaml:"queue_capacity"` // power of two
		VWAPWindow        int     `yaml:"vwap_window"`
		LargeTradeStdDevs float64 `yaml:"large_trade_std_devs"`
		DepthLimit        int     `yaml:"depth_limit"`
	} `yaml:"engine"`

	Output struct {
		ConsoleIntervalMS int    `yaml:"console_interval_ms"`
		ServerPort        uint16 `yaml:"server_port"`
		ImbalanceLevels   int    `yaml:"imbalance_levels"`
	} `yaml:"output"`

	Recording struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"recording"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	cfg := &Config{}
	cfg.App.Name = "titan"
	cfg.App.Version = "1.0.0"

	cfg.Network.WSHost = "fstream.binance.com"
	cfg.Network.WSPort = "443"
	cfg.Network.RESTHost = "fapi.binance.com"
	cfg.Network.RESTPort = "443"
	cfg.Network.Symbol = "btcusdt"
	cfg.Network.ReconnectDelayInitialMS = 1000
	cfg.Network.ReconnectDelayMaxMS = 30000
	cfg.Network.ReconnectBackoffMultiplier = 2.0
	cfg.Network.ReconnectJitterFactor = 0.3

	cfg.Engine.QueueCapacity = 65536
	cfg.Engine.VWAPWindow = 100
	cfg.Engine.LargeTradeStdDevs = 2.0
	cfg.Engine.DepthLimit = 1000

	cfg.Output.ConsoleIntervalMS = 500
	cfg.Output.ServerPort = 9001
	cfg.Output.ImbalanceLevels = 5

	cfg.Recording.Enabled = true
	cfg.Recording.Path = "data/titan.db"

	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig resolves the configuration. A missing config file is not an
// error (defaults apply); a present but unreadable one is. A .env file in
// the working directory, when present, is loaded before environment
// overrides are read.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			slog.Warn("Config file not found, using defaults", slog.String("path", path))
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Network.Symbol == "" {
		return fmt.Errorf("symbol must not be empty")
	}
	if c.Engine.QueueCapacity == 0 || c.Engine.QueueCapacity&(c.Engine.QueueCapacity-1) != 0 {
		return fmt.Errorf("queue_capacity %d must be a power of two", c.Engine.QueueCapacity)
	}
	if c.Engine.VWAPWindow <= 0 {
		return fmt.Errorf("vwap_window must be positive")
	}
	if c.Engine.DepthLimit <= 0 {
		return fmt.Errorf("depth_limit must be positive")
	}
	if c.Network.ReconnectJitterFactor < 0 || c.Network.ReconnectJitterFactor > 1 {
		return fmt.Errorf("reconnect_jitter_factor %f must be in [0, 1]", c.Network.ReconnectJitterFactor)
	}
	if c.Network.ReconnectBackoffMultiplier < 1 {
		return fmt.Errorf("reconnect_backoff_multiplier %f must be >= 1", c.Network.ReconnectBackoffMultiplier)
	}
	if c.Output.ConsoleIntervalMS <= 0 {
		return fmt.Errorf("console_interval_ms must be positive")
	}
	return nil
}

// Symbol helpers: the stream path wants lowercase, the REST API uppercase.

func (c *Config) SymbolLower() string {
	return strings.ToLower(c.Network.Symbol)
}

func (c *Config) SymbolUpper() string {
	return strings.ToUpper(c.Network.Symbol)
}

func (c *Config) ReconnectDelayInitial() time.Duration {
	return time.Duration(c.Network.ReconnectDelayInitialMS) * time.Millisecond
}

func (c *Config) ReconnectDelayMax() time.Duration {
	return time.Duration(c.Network.ReconnectDelayMaxMS) * time.Millisecond
}

func (c *Config) ConsoleInterval() time.Duration {
	return time.Duration(c.Output.ConsoleIntervalMS) * time.Millisecond
}

// overrideWithEnv applies TITAN_* environment variables. Invalid values are
// reported and discarded; the prior value wins.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("TITAN_WS_HOST"); v != "" {
		cfg.Network.WSHost = v
	}
	if v := os.Getenv("TITAN_WS_PORT"); v != "" {
		cfg.Network.WSPort = v
	}
	if v := os.Getenv("TITAN_REST_HOST"); v != "" {
		cfg.Network.RESTHost = v
	}
	if v := os.Getenv("TITAN_REST_PORT"); v != "" {
		cfg.Network.RESTPort = v
	}
	if v := os.Getenv("TITAN_SYMBOL"); v != "" {
		cfg.Network.Symbol = v
	}

	envInt("TITAN_RECONNECT_DELAY_INITIAL_MS", &cfg.Network.ReconnectDelayInitialMS, 100, 300_000)
	envInt("TITAN_RECONNECT_DELAY_MAX_MS", &cfg.Network.ReconnectDelayMaxMS, 1000, 600_000)
	envFloat("TITAN_RECONNECT_BACKOFF_MULTIPLIER", &cfg.Network.ReconnectBackoffMultiplier, 1, 10)
	envFloat("TITAN_RECONNECT_JITTER_FACTOR", &cfg.Network.ReconnectJitterFactor, 0, 1)

	envUint64("TITAN_QUEUE_CAPACITY", &cfg.Engine.QueueCapacity, 1_048_576)
	envInt("TITAN_VWAP_WINDOW", &cfg.Engine.VWAPWindow, 1, 10_000)
	envFloat("TITAN_LARGE_TRADE_STD_DEVS", &cfg.Engine.LargeTradeStdDevs, 0.1, 100)
	envInt("TITAN_DEPTH_LIMIT", &cfg.Engine.DepthLimit, 5, 5000)

	envInt("TITAN_CONSOLE_INTERVAL_MS", &cfg.Output.ConsoleIntervalMS, 100, 60_000)
	envPort("TITAN_SERVER_PORT", &cfg.Output.ServerPort)
	envInt("TITAN_IMBALANCE_LEVELS", &cfg.Output.ImbalanceLevels, 1, 100)

	if v := os.Getenv("TITAN_RECORDING_PATH"); v != "" {
		cfg.Recording.Path = v
	}
	if v := os.Getenv("TITAN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func envInt(name string, dst *int, min, max int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Invalid integer in environment, keeping prior value",
			slog.String("var", name), slog.String("value", v))
		return
	}
	if n < min || n > max {
		slog.Warn("Environment value out of range, keeping prior value",
			slog.String("var", name), slog.Int("value", n),
			slog.Int("min", min), slog.Int("max", max))
		return
	}
	*dst = n
}

func envUint64(name string, dst *uint64, max uint64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil || n == 0 || n > max {
		slog.Warn("Invalid size in environment, keeping prior value",
			slog.String("var", name), slog.String("value", v))
		return
	}
	*dst = n
}

func envFloat(name string, dst *float64, min, max float64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < min || f > max {
		slog.Warn("Invalid float in environment, keeping prior value",
			slog.String("var", name), slog.String("value", v))
		return
	}
	*dst = f
}

func envPort(name string, dst *uint16) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil || n < 1024 {
		slog.Warn("Invalid port in environment, keeping prior value",
			slog.String("var", name), slog.String("value", v))
		return
	}
	*dst = uint16(n)
}
