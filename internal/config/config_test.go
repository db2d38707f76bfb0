package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"decision-maker/internal/fsm"
	"decision-maker/internal/logger"
	"decision-maker/internal/messaging"
	"decision-maker/internal/types"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if time.Duration(cfg.CyclePeriod) != DefaultCyclePeriod {
		t.Errorf("CyclePeriod = %v", time.Duration(cfg.CyclePeriod))
	}
	if _, err := fsm.Build(cfg.Axes, logger.NewNop()); err != nil {
		t.Errorf("default axes do not build: %v", err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Redis.Addr() != "127.0.0.1:6379" {
		t.Errorf("Addr = %s", cfg.Redis.Addr())
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	doc := `
cycle_period: 50ms
redis:
  host: redis.local
crossroad:
  scale: 6
subscriptions:
  by_state:
    Drive: [final_waypoints]
axes:
  - kind: MAIN
    initial: Idle
    states: [Idle, Moving]
    transitions:
      - from: Idle
        to: Moving
        guard: speed_above
        args: {kmph: 5}
`
	path := filepath.Join(t.TempDir(), "decision-maker.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if time.Duration(cfg.CyclePeriod) != 50*time.Millisecond {
		t.Errorf("CyclePeriod = %v", time.Duration(cfg.CyclePeriod))
	}
	if cfg.Redis.Addr() != "redis.local:6379" {
		t.Errorf("Addr = %s, want port kept from defaults", cfg.Redis.Addr())
	}
	if cfg.Crossroad.Scale != 6 {
		t.Errorf("Scale = %v", cfg.Crossroad.Scale)
	}
	want := map[string][]string{"Drive": {messaging.ChannelFinalWaypoints}}
	if diff := cmp.Diff(want, cfg.Subscriptions.ByState); diff != "" {
		t.Errorf("ByState mismatch (-want +got):\n%s", diff)
	}
	if len(cfg.Axes) != 1 || cfg.Axes[0].Kind != types.AxisMain {
		t.Fatalf("Axes = %+v", cfg.Axes)
	}
	if _, err := fsm.Build(cfg.Axes, logger.NewNop()); err != nil {
		t.Errorf("loaded axes do not build: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	cfg := Default()
	if err := Parse([]byte("cycle_period: soon\n"), &cfg); err == nil {
		t.Error("expected duration parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero period", func(c *Config) { c.CyclePeriod = 0 }},
		{"no host", func(c *Config) { c.Redis.Host = "" }},
		{"bad port", func(c *Config) { c.Redis.Port = 70000 }},
		{"zero scale", func(c *Config) { c.Crossroad.Scale = 0 }},
		{"long speed array", func(c *Config) { c.SpeedArray.Length = 11 }},
		{"bad unit", func(c *Config) { c.SpeedArray.Unit = "knots" }},
		{"empty channel", func(c *Config) { c.Subscriptions.Default = []string{""} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
