package config

import (
	"fmt"
	"os"

	"github.com/san-kum/dampsim/internal/control"
	"github.com/san-kum/dampsim/internal/dynamo"
	"github.com/san-kum/dampsim/internal/physics"
	"github.com/san-kum/dampsim/internal/sim"
	"gopkg.in/yaml.v3"
)

const (
	ModeOpen   = "open"
	ModeClosed = "closed"
)

const (
	DefaultDt       = 0.03
	DefaultDuration = 9.0
	DefaultVX       = 250.0
	DefaultVY       = 100.0
	DefaultLogLevel = "info"
	DefaultCacheDir = ""
)

type Config struct {
	Mode      string       `yaml:"mode"`
	Dt        float64      `yaml:"dt"`
	Duration  float64      `yaml:"duration"`
	Damping   float64      `yaml:"damping"`
	InitState StateConfig  `yaml:"init_state"`
	Goal      StateConfig  `yaml:"goal"`
	Costs     CostsConfig  `yaml:"costs"`
	Limits    LimitsConfig `yaml:"limits"`
	Log       LogConfig    `yaml:"log"`
	Cache     CacheConfig  `yaml:"cache"`
}

type StateConfig struct {
	X  float64 `yaml:"x"`
	VX float64 `yaml:"vx"`
	Y  float64 `yaml:"y"`
	VY float64 `yaml:"vy"`
}

// State orders the fields as (x, vx, y, vy).
func (s StateConfig) State() dynamo.State {
	return dynamo.State{s.X, s.VX, s.Y, s.VY}
}

// CostsConfig holds the diagonals of Q, F and R.
type CostsConfig struct {
	Q []float64 `yaml:"q,flow"`
	F []float64 `yaml:"f,flow"`
	R []float64 `yaml:"r,flow"`
}

type LimitsConfig struct {
	MaxAccel float64 `yaml:"max_accel"`
	MaxSpeed float64 `yaml:"max_speed"`
}

// LogConfig selects the console level and an optional rotated JSON file.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// CacheConfig enables the gain cache. An empty Dir keeps it in memory.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

func DefaultConfig() *Config {
	return &Config{
		Mode:     ModeOpen,
		Dt:       DefaultDt,
		Duration: DefaultDuration,
		Damping:  physics.DefaultDamping,
		InitState: StateConfig{
			VX: DefaultVX,
			VY: DefaultVY,
		},
		Costs: CostsConfig{
			Q: []float64{0, 0, 0, 0},
			F: []float64{6000, 2000, 6000, 2000},
			R: []float64{1, 1},
		},
		Limits: LimitsConfig{
			MaxAccel: sim.DefaultMaxAccel,
			MaxSpeed: sim.DefaultMaxSpeed,
		},
		Log: LogConfig{
			Level:      DefaultLogLevel,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Cache: CacheConfig{
			Dir: DefaultCacheDir,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch c.Mode {
	case ModeOpen, ModeClosed:
	default:
		return fmt.Errorf("%w: unknown mode %q", dynamo.ErrParameterBounds, c.Mode)
	}
	if _, err := dynamo.NewHorizon(c.Duration, c.Dt); err != nil {
		return err
	}
	if _, err := physics.NewPointMass(c.Dt, c.Damping); err != nil {
		return err
	}
	if err := c.SimLimits().Validate(); err != nil {
		return err
	}
	if c.Mode == ModeClosed {
		if _, err := c.ControlCosts(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) SimLimits() sim.Limits {
	return sim.Limits{MaxAccel: c.Limits.MaxAccel, MaxSpeed: c.Limits.MaxSpeed}
}

func (c *Config) ControlCosts() (control.Costs, error) {
	return control.DiagCosts(c.Costs.Q, c.Costs.F, c.Costs.R)
}

func (c *Config) Horizon() (dynamo.Horizon, error) {
	return dynamo.NewHorizon(c.Duration, c.Dt)
}
