package sim

import "github.com/san-kum/wasmsim/internal/dynamo"

// Hooks for the external lifecycle suite.
type ScriptedModel = scriptedModel

var (
	NewScriptedModel = newScriptedModel
	SmallConfig      = testConfig
)

func (m *scriptedModel) Calls() []string { return m.log }

func (m *scriptedModel) CloseCount() int { return m.closed }

func (m *scriptedModel) FailInit(status dynamo.Status) { m.initStatus = status }

func (m *scriptedModel) OnStep(fn func(call int, t, h float64) dynamo.StepResponse) { m.stepFn = fn }
