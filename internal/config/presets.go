package config

import "sort"

// Presets are complete run configurations selectable by name.
var Presets = map[string]func() *Config{
	// demo runs the double pendulum over 0..10 s in 100 steps.
	"demo": DefaultConfig,
	"fine": func() *Config {
		cfg := DefaultConfig()
		cfg.Steps = 1000
		return cfg
	},
	"variable": func() *Config {
		cfg := DefaultConfig()
		cfg.StepMode = "variable"
		cfg.Steps = 200
		return cfg
	},
	"pendulum": func() *Config {
		cfg := DefaultConfig()
		cfg.Model = "builtin:pendulum"
		cfg.StopTime = 20
		cfg.Steps = 400
		return cfg
	},
	"lorenz": func() *Config {
		cfg := DefaultConfig()
		cfg.Model = "builtin:lorenz"
		cfg.StopTime = 30
		cfg.Steps = 3000
		return cfg
	},
	"echo": func() *Config {
		cfg := DefaultConfig()
		cfg.Model = "builtin:echo"
		cfg.StopTime = 1
		cfg.Steps = 10
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
