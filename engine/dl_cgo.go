//go:build cgo && unix

// Package engine provides the binding to the seaside engine module.
package engine

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>
#include <string.h>

typedef struct VPNConfig {
	const char *tunnel_name;
	uint32_t tunnel_mtu;
	uint32_t remote_address;
	uint32_t tunnel_gateway;
	uint32_t tunnel_address;
	uint32_t tunnel_prefix;
	uint32_t dns_address;
} VPNConfig;

typedef void (*vpn_error_fn)(void *, char *);
typedef bool (*vpn_start_fn)(const char *, uintptr_t, const char *, VPNConfig **, void **, void *, vpn_error_fn, char **);
typedef bool (*vpn_stop_fn)(void *, char **);

extern void seasideCaptureError(uintptr_t context, char *message);

static void capture_error(void *context, char *message) {
	seasideCaptureError((uintptr_t)context, message);
}

// dlerror is thread local, so the reason is copied before returning to Go.
static uintptr_t open_module(const char *name, char **error) {
	void *handle = dlopen(name, RTLD_NOW | RTLD_LOCAL);
	if (handle == NULL) {
		const char *reason = dlerror();
		*error = reason != NULL ? strdup(reason) : NULL;
	}
	return (uintptr_t)handle;
}

static uintptr_t resolve_symbol(uintptr_t handle, const char *name) {
	dlerror();
	return (uintptr_t)dlsym((void *)handle, name);
}

static bool call_vpn_start(uintptr_t fn, const char *certificate, uintptr_t certificate_length,
                           const char *protocol, VPNConfig **config, uintptr_t *session,
                           uintptr_t context, char **error) {
	void *handle = NULL;
	bool ok = ((vpn_start_fn)fn)(certificate, certificate_length, protocol, config, &handle,
	                             (void *)context, capture_error, error);
	*session = (uintptr_t)handle;
	return ok;
}

static bool call_vpn_stop(uintptr_t fn, uintptr_t session, char **error) {
	return ((vpn_stop_fn)fn)((void *)session, error);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/yllada/seaside-nm/common"
)

type dlLibrary struct {
	handle C.uintptr_t
}

func openLibrary(name string) (Library, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var cerr *C.char
	handle := C.open_module(cname, &cerr)
	if handle == 0 {
		reason := takeCString(cerr)
		if reason == "" {
			reason = "dlopen failed"
		}
		return nil, errors.New(reason)
	}
	return &dlLibrary{handle: handle}, nil
}

func (l *dlLibrary) Symbol(name string) (uintptr, bool) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	addr := C.resolve_symbol(l.handle, cname)
	return uintptr(addr), addr != 0
}

// cgoEntryPoints calls the resolved C functions. contexts tracks the
// callback token of every running session so it can be retired on stop.
type cgoEntryPoints struct {
	start C.uintptr_t
	stop  C.uintptr_t

	mu       sync.Mutex
	contexts map[Handle]uintptr
}

func bindEntryPoints(start, stop uintptr) EntryPoints {
	return &cgoEntryPoints{
		start:    C.uintptr_t(start),
		stop:     C.uintptr_t(stop),
		contexts: make(map[Handle]uintptr),
	}
}

func (e *cgoEntryPoints) Start(certificate []byte, length int, protocol string, sink ErrorSink) (*Config, Handle, error) {
	// NUL terminated so a file path reads as a C string.
	buf := make([]byte, len(certificate)+1)
	copy(buf, certificate)
	ccert := C.CBytes(buf)
	defer C.free(ccert)

	cproto := C.CString(protocol)
	defer C.free(unsafe.Pointer(cproto))

	token := callbacks.register(sink)

	var (
		raw     *C.VPNConfig
		session C.uintptr_t
		cerr    *C.char
	)
	ok := C.call_vpn_start(e.start, (*C.char)(ccert), C.uintptr_t(length), cproto, &raw, &session, C.uintptr_t(token), &cerr)
	if !ok {
		callbacks.unregister(token)
		return nil, 0, fmt.Errorf("%w: %s", common.ErrEngineStart, takeCString(cerr))
	}

	handle := Handle(session)
	e.mu.Lock()
	e.contexts[handle] = token
	e.mu.Unlock()

	return takeConfig(raw), handle, nil
}

func (e *cgoEntryPoints) Stop(handle Handle) error {
	var cerr *C.char
	ok := C.call_vpn_stop(e.stop, C.uintptr_t(handle), &cerr)

	e.mu.Lock()
	token, found := e.contexts[handle]
	delete(e.contexts, handle)
	e.mu.Unlock()
	if found {
		callbacks.unregister(token)
	}

	if !ok {
		return fmt.Errorf("%w: %s", common.ErrStopFailed, takeCString(cerr))
	}
	return nil
}

// takeConfig copies the engine configuration record and frees it.
// The tunnel name string belongs to the engine and is left alone.
func takeConfig(raw *C.VPNConfig) *Config {
	if raw == nil {
		return &Config{}
	}
	defer C.free(unsafe.Pointer(raw))

	cfg := &Config{
		MTU:           uint32(raw.tunnel_mtu),
		RemoteAddress: uint32(raw.remote_address),
		TunnelGateway: uint32(raw.tunnel_gateway),
		TunnelAddress: uint32(raw.tunnel_address),
		TunnelPrefix:  uint32(raw.tunnel_prefix),
		DNSAddress:    uint32(raw.dns_address),
	}
	if raw.tunnel_name != nil {
		cfg.TunnelName = C.GoString(raw.tunnel_name)
	}
	return cfg
}

// takeCString converts an engine-allocated C string and frees it.
func takeCString(s *C.char) string {
	if s == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(s))
	return C.GoString(s)
}
