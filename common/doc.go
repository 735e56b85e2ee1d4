// Package common provides shared constants, types, utilities, and interfaces
// used throughout the seaside NetworkManager plugin.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: module and service names, setting keys, queue defaults
//   - Errors: Sentinel errors shared by the engine binding, the session
//     controller and the D-Bus adapter
//   - Interfaces: the Logger abstraction
//   - Logger: Leveled logging to stderr with an optional rotated file
//   - Utils: directory helpers
//
// # Usage
//
//	common.LogInfo("Session %s started", id)
//
//	if errors.Is(err, common.ErrBadArguments) {
//	    // reject the connection request
//	}
package common
