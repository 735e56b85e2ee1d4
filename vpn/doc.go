// Package vpn drives the lifecycle of a seaside engine session.
//
// A Controller owns the single active session of a plugin instance:
//
//   - Connect validates Parameters, loads the engine, starts it and defers
//     configuration delivery to the host loop
//   - Disconnect stops the engine and clears the session handle
//   - HandleEngineReport reacts to asynchronous engine failures
//
// # Threading
//
// Connect, Disconnect and HandleEngineReport must run on the goroutine that
// drains the controller's events.Loop. Engine threads never touch controller
// state directly: their reports reach the loop through an events.Bridge.
// Status may be called from any goroutine.
//
// The package also keeps the operator's profile store (profiles.yaml) used
// by the command line client.
package vpn
