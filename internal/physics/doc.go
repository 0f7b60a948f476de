// Package physics provides the dynamical systems behind the built-in models.
//
// Each system implements [dynamo.System] and [dynamo.Configurable]:
//
//   - [Pendulum]: damped pendulum driven by a torque
//   - [DoublePendulum]: chaotic coupled pendulum
//   - [Lorenz]: butterfly attractor
//
// Pendulums also implement [dynamo.Hamiltonian] so energy drift can be
// reported alongside their state.
package physics
