// Package wasm runs a simulation model compiled to WebAssembly inside a wazero
// sandbox and adapts it to the dynamo.Model contract.
//
// A guest exports its linear memory as "memory" plus the functions below.
// Every call function has the signature
//
//	(inPtr, inLen, outPtr, outCap i32) -> i32
//
// The host writes a msgpack request at inPtr and reserves outCap bytes at
// outPtr. The guest writes its msgpack response there and returns the
// response length. When the response does not fit the guest writes nothing
// and returns the length it needs. A negative result reports a guest-side
// failure such as an undecodable request.
//
//	alloc(size i32) -> i32            reserve size bytes, never 0
//	dealloc(ptr, size i32)            release a reservation
//	getModelDescription               ignores its input
//	init                              initialization arguments and defaults
//	getValues                         requested identifiers
//	setValues                         per-kind value mappings
//	doStep                            current time and step size
//
// Only getModelDescription and getValues are repeated with a larger buffer,
// since calling them twice has no effect on the model.
package wasm
