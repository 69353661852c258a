package config

import "sort"

var Presets = map[string]*Config{
	"drift": {
		Mode: ModeOpen, Dt: 0.03, Duration: 9.0,
		InitState: StateConfig{X: 0, VX: 250, Y: 0, VY: 100},
	},
	"seek": {
		Mode: ModeClosed, Dt: 0.03, Duration: 9.0,
		InitState: StateConfig{X: 0, VX: 0, Y: 0, VY: 0},
		Goal:      StateConfig{X: 100, VX: 0, Y: -50, VY: 0},
	},
	"sprint": {
		Mode: ModeClosed, Dt: 0.5, Duration: 10.0,
		InitState: StateConfig{X: 0, VX: 0, Y: 0, VY: 0},
		Goal:      StateConfig{X: 1e5, VX: 0, Y: 0, VY: 0},
	},
	"hold": {
		Mode: ModeClosed, Dt: 0.03, Duration: 9.0,
		InitState: StateConfig{X: 100, VX: 0, Y: -50, VY: 0},
		Goal:      StateConfig{X: 100, VX: 0, Y: -50, VY: 0},
	},
}

// GetPreset returns a full configuration built from the named preset over
// the defaults, or nil when the name is unknown.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Mode = p.Mode
	cfg.Dt = p.Dt
	cfg.Duration = p.Duration
	cfg.InitState = p.InitState
	cfg.Goal = p.Goal
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
