package models

import (
	"slices"

	"github.com/san-kum/wasmsim/internal/dynamo"
)

// System is a natively integrated dynamical system with named parameters.
type System interface {
	dynamo.System
	dynamo.Configurable
}

// Plant describes how a System is exposed as a model: which state components
// are reported and which control components are driven as inputs.
type Plant struct {
	Info    dynamo.ModelInfo
	New     func() System
	States  []string
	Initial dynamo.State
	Inputs  []string
}

const (
	defaultIntegrator = "rk4"
	defaultMaxStep    = 0.01
)

// role tells the model what a variable id maps to.
type role int

const (
	roleParam role = iota
	roleInitial
	roleIntegrator
	roleMaxStep
	roleInput
	roleState
	roleEnergy
	roleSteps
	roleFinite
)

type binding struct {
	role  role
	index int
	name  string
}

// catalog assigns identifiers in declaration order.
type catalog struct {
	vars     []dynamo.Variable
	bindings map[dynamo.VarID]binding
}

func (c *catalog) add(v dynamo.Variable, b binding) {
	v.ID = dynamo.VarID(len(c.vars))
	c.vars = append(c.vars, v)
	c.bindings[v.ID] = b
}

func (p Plant) catalog() *catalog {
	c := &catalog{bindings: make(map[dynamo.VarID]binding)}
	sys := p.New()

	params := sys.Params()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		c.add(dynamo.Variable{
			Name: name, Kind: dynamo.KindReal, Causality: dynamo.CausalityParameter,
			HasDefault: true, Default: dynamo.RealValue(params[name]),
		}, binding{role: roleParam, name: name})
	}

	for i, state := range p.States {
		c.add(dynamo.Variable{
			Name: state + "_0", Description: "initial " + state,
			Kind: dynamo.KindReal, Causality: dynamo.CausalityParameter,
			HasDefault: true, Default: dynamo.RealValue(p.Initial[i]),
		}, binding{role: roleInitial, index: i})
	}

	c.add(dynamo.Variable{
		Name: "integrator", Description: "integration method",
		Kind: dynamo.KindText, Causality: dynamo.CausalityParameter,
		HasDefault: true, Default: dynamo.TextValue(defaultIntegrator),
	}, binding{role: roleIntegrator})
	c.add(dynamo.Variable{
		Name: "max_step", Description: "largest internal step",
		Kind: dynamo.KindReal, Causality: dynamo.CausalityParameter,
		HasDefault: true, Default: dynamo.RealValue(defaultMaxStep),
	}, binding{role: roleMaxStep})

	for i, input := range p.Inputs {
		c.add(dynamo.Variable{
			Name: input, Kind: dynamo.KindReal, Causality: dynamo.CausalityInput,
			HasDefault: true, Default: dynamo.RealValue(0),
		}, binding{role: roleInput, index: i})
	}

	for i, state := range p.States {
		c.add(dynamo.Variable{
			Name: state, Kind: dynamo.KindReal, Causality: dynamo.CausalityOutput,
		}, binding{role: roleState, index: i})
	}

	if _, ok := sys.(dynamo.Hamiltonian); ok {
		c.add(dynamo.Variable{
			Name: "energy", Description: "total mechanical energy",
			Kind: dynamo.KindReal, Causality: dynamo.CausalityLocal,
		}, binding{role: roleEnergy})
	}
	c.add(dynamo.Variable{
		Name: "steps", Description: "accepted steps",
		Kind: dynamo.KindInt, Causality: dynamo.CausalityLocal,
	}, binding{role: roleSteps})
	c.add(dynamo.Variable{
		Name: "finite", Description: "state is finite",
		Kind: dynamo.KindBool, Causality: dynamo.CausalityLocal,
	}, binding{role: roleFinite})

	return c
}
