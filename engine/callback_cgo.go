//go:build cgo && unix

// Package engine provides the binding to the seaside engine module.
package engine

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import "unsafe"

// seasideCaptureError is the C error callback handed to vpn_start.
// It runs on an engine thread and must return promptly.
//
//export seasideCaptureError
func seasideCaptureError(context C.uintptr_t, message *C.char) {
	if message == nil {
		callbacks.dispatch(uintptr(context), CleanExit())
		return
	}
	report := NewReport(C.GoString(message), func() {
		C.free(unsafe.Pointer(message))
	})
	callbacks.dispatch(uintptr(context), report)
}
