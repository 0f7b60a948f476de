// Package models provides simulation models that run in-process behind the
// same contract as sandboxed ones.
package models

import (
	"fmt"
	"slices"
	"strings"

	"github.com/san-kum/wasmsim/internal/dynamo"
	"github.com/san-kum/wasmsim/internal/physics"
)

// Scheme prefixes references to built-in models, as in "builtin:dpend".
const Scheme = "builtin:"

var plants = map[string]Plant{
	"dpend": {
		Info: dynamo.ModelInfo{
			ID:             Scheme + "dpend",
			Name:           "dpend",
			Description:    "Double pendulum",
			GenerationTool: "wasmsim",
		},
		New:     func() System { return physics.NewDoublePendulum() },
		States:  []string{"theta1", "theta2", "omega1", "omega2"},
		Initial: dynamo.State{1.0, 1.5, 0, 0},
		Inputs:  []string{"tau"},
	},
	"pendulum": {
		Info: dynamo.ModelInfo{
			ID:             Scheme + "pendulum",
			Name:           "pendulum",
			Description:    "Damped pendulum",
			GenerationTool: "wasmsim",
		},
		New:     func() System { return physics.NewPendulum() },
		States:  []string{"theta", "omega"},
		Initial: dynamo.State{0.5, 0},
		Inputs:  []string{"torque"},
	},
	"lorenz": {
		Info: dynamo.ModelInfo{
			ID:             Scheme + "lorenz",
			Name:           "lorenz",
			Description:    "Lorenz attractor",
			GenerationTool: "wasmsim",
		},
		New:     func() System { return physics.NewLorenz() },
		States:  []string{"x", "y", "z"},
		Initial: dynamo.State{1, 1, 1},
	},
}

// Lookup returns a fresh model by name, with or without the scheme prefix.
func Lookup(name string) (dynamo.Model, error) {
	name = strings.TrimPrefix(name, Scheme)
	if name == "echo" {
		return NewEcho(), nil
	}
	p, ok := plants[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return NewODE(p), nil
}

// IsBuiltin reports whether ref names a built-in model and returns its name.
func IsBuiltin(ref string) (string, bool) {
	return strings.CutPrefix(ref, Scheme)
}

func Names() []string {
	names := []string{"echo"}
	for name := range plants {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
