// Package config loads the decision-maker configuration from YAML on top of
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"decision-maker/internal/fsm"
	"decision-maker/internal/messaging"
	"decision-maker/internal/spatial"
	"decision-maker/internal/types"
	"decision-maker/internal/units"
)

const (
	DefaultCyclePeriod    = 100 * time.Millisecond
	DefaultRedisHost      = "127.0.0.1"
	DefaultRedisPort      = 6379
	DefaultMetricsAddr    = ":9110"
	DefaultSpeedArrayLen  = 10
	DefaultConnectRetries = 10
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration that reads from YAML strings such as "100ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

type RedisConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	DB             int    `yaml:"db"`
	ConnectRetries uint64 `yaml:"connect_retries"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type CrossroadConfig struct {
	Scale float64 `yaml:"scale"`
}

type SpeedArrayConfig struct {
	Length int    `yaml:"length"`
	Unit   string `yaml:"unit"`
}

// SubscriptionConfig lists inbound channels: Default always, ByState in
// addition while MAIN is in that state.
type SubscriptionConfig struct {
	Default []string            `yaml:"default"`
	ByState map[string][]string `yaml:"by_state"`
}

type Config struct {
	LogLevel      string             `yaml:"log_level"`
	CyclePeriod   Duration           `yaml:"cycle_period"`
	MetricsAddr   string             `yaml:"metrics_addr"`
	Redis         RedisConfig        `yaml:"redis"`
	Crossroad     CrossroadConfig    `yaml:"crossroad"`
	SpeedArray    SpeedArrayConfig   `yaml:"speed_array"`
	Subscriptions SubscriptionConfig `yaml:"subscriptions"`
	Axes          []fsm.AxisSpec     `yaml:"axes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:    "info",
		CyclePeriod: Duration(DefaultCyclePeriod),
		MetricsAddr: DefaultMetricsAddr,
		Redis: RedisConfig{
			Host:           DefaultRedisHost,
			Port:           DefaultRedisPort,
			ConnectRetries: DefaultConnectRetries,
		},
		Crossroad:  CrossroadConfig{Scale: spatial.DefaultScale},
		SpeedArray: SpeedArrayConfig{Length: DefaultSpeedArrayLen, Unit: units.KMPH},
		Subscriptions: SubscriptionConfig{
			Default: []string{messaging.ChannelCurrentPose, messaging.ChannelCurrentVelocity},
			ByState: map[string][]string{
				types.MainReady: {messaging.ChannelFinalWaypoints},
				types.MainDrive: {messaging.ChannelFinalWaypoints, messaging.ChannelCrossroads},
			},
		},
		Axes: fsm.DefaultDefinition(),
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// A file that declares axes replaces the default tables entirely.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML into cfg, keeping values the document does not set.
func Parse(data []byte, cfg *Config) error {
	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	// yaml merges maps key by key; replace subscriptions wholesale when set.
	if overlay.Subscriptions.ByState != nil {
		cfg.Subscriptions.ByState = overlay.Subscriptions.ByState
	}
	return nil
}

// Validate checks values that are not covered by fsm.Build.
func (c Config) Validate() error {
	if c.CyclePeriod <= 0 {
		return fmt.Errorf("%w: cycle_period must be positive", ErrInvalidConfig)
	}
	if c.Redis.Host == "" || c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("%w: redis address %q is not valid", ErrInvalidConfig, c.Redis.Addr())
	}
	if c.Crossroad.Scale <= 0 {
		return fmt.Errorf("%w: crossroad.scale must be positive", ErrInvalidConfig)
	}
	if c.SpeedArray.Length <= 0 || c.SpeedArray.Length > DefaultSpeedArrayLen {
		return fmt.Errorf("%w: speed_array.length must be within 1..%d", ErrInvalidConfig, DefaultSpeedArrayLen)
	}
	if err := units.Validate(c.SpeedArray.Unit); err != nil {
		return fmt.Errorf("%w: speed_array.unit: %v", ErrInvalidConfig, err)
	}
	for state, channels := range c.Subscriptions.ByState {
		for _, ch := range channels {
			if ch == "" {
				return fmt.Errorf("%w: empty channel for state %q", ErrInvalidConfig, state)
			}
		}
	}
	for _, ch := range c.Subscriptions.Default {
		if ch == "" {
			return fmt.Errorf("%w: empty default channel", ErrInvalidConfig)
		}
	}
	return nil
}
