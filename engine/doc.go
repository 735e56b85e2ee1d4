// Package engine binds the plugin to the externally supplied seaside VPN
// engine, a native shared module found by name through the platform loader.
//
// The module exports two C entry points:
//
//	bool vpn_start(const char *certificate, uintptr_t certificate_length,
//	               const char *protocol, VPNConfig **config, void **session,
//	               void *context, void (*on_error)(void *, char *), char **error);
//	bool vpn_stop(void *session, char **error);
//
// Module resolves both symbols once and caches them as an EntryPoints value.
// The error callback may run on any engine thread; it is forwarded to the
// ErrorSink registered for the session as a *Report, whose C buffer stays
// alive until Report.Release is called.
//
// Dynamic loading requires cgo. Builds without cgo still compile; every load
// then fails with ErrModuleNotFound.
package engine
