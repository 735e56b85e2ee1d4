// Package engine provides the binding to the seaside engine module.
package engine

import (
	"sync"

	"github.com/yllada/seaside-nm/common"
)

// Library is an opened module that can resolve exported symbols.
type Library interface {
	// Symbol returns the address of name, or false if it is not exported.
	Symbol(name string) (uintptr, bool)
}

// Opener opens a module by name using the platform search path.
type Opener func(name string) (Library, error)

// Binder turns resolved entry point addresses into callable EntryPoints.
type Binder func(start, stop uintptr) EntryPoints

// Module is the lazily bound engine module.
// A successful binding is cached for the lifetime of the Module and the
// module is never unloaded. A failed open is retried on the next Load, so
// installing the engine later does not require a restart.
type Module struct {
	name string
	open Opener
	bind Binder

	mu    sync.Mutex
	lib   Library
	entry EntryPoints
}

// NewModule returns a Module bound through the platform dynamic loader.
func NewModule(name string) *Module {
	return NewModuleWith(name, openLibrary, bindEntryPoints)
}

// NewModuleWith returns a Module using custom open and bind functions.
func NewModuleWith(name string, open Opener, bind Binder) *Module {
	if name == "" {
		name = common.DefaultModuleName
	}
	return &Module{name: name, open: open, bind: bind}
}

// Name returns the module name handed to the loader.
func (m *Module) Name() string {
	return m.name
}

// Loaded reports whether the entry points are bound.
func (m *Module) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entry != nil
}

// Load binds the engine entry points, returning the cached binding when one exists.
func (m *Module) Load() (EntryPoints, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entry != nil {
		return m.entry, nil
	}

	if m.lib == nil {
		common.LogDebug("Engine: opening module %s", m.name)
		lib, err := m.open(m.name)
		if err != nil {
			return nil, &LoadError{Kind: ModuleNotFound, Module: m.name, Err: err}
		}
		m.lib = lib
	}

	// The library stays open on a missing symbol; it is never closed.
	start, ok := m.lib.Symbol(StartSymbol)
	if !ok {
		return nil, &LoadError{Kind: MissingSymbol, Module: m.name, Symbol: StartSymbol}
	}
	stop, ok := m.lib.Symbol(StopSymbol)
	if !ok {
		return nil, &LoadError{Kind: MissingSymbol, Module: m.name, Symbol: StopSymbol}
	}

	m.entry = m.bind(start, stop)
	common.LogInfo("Engine: module %s bound", m.name)
	return m.entry, nil
}
