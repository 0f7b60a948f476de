// Package dynamo provides the core primitives shared by the co-simulation host.
//
// The package defines the vocabulary every other package speaks when it talks
// to a sandboxed simulation model:
//
//   - [Status]: ordered outcome scale returned by every model call
//   - [Value]: tagged variant carrying one typed variable value
//   - [Store]: typed variable store checked against declared kinds
//   - [ModelDescription]: read-only catalog of a model's variables
//   - [Model]: call contract implemented by sandbox adapters
//
// # Example
//
//	desc, _ := model.Describe(ctx)
//	defaults, _ := desc.Defaults()
//	status, _ := model.Initialize(ctx, dynamo.InitRequest{Values: defaults, StopTime: 10, HasStopTime: true})
//
// # Thread Safety
//
// [Store] instances are NOT thread-safe. They are transient and built fresh
// for every model operation, so they are never shared between goroutines.
package dynamo
