package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/seaside-nm/common"
)

type fakeLibrary struct {
	symbols map[string]uintptr
	lookups int
}

func (l *fakeLibrary) Symbol(name string) (uintptr, bool) {
	l.lookups++
	addr, ok := l.symbols[name]
	return addr, ok
}

type nopEntryPoints struct {
	start, stop uintptr
}

func (nopEntryPoints) Start([]byte, int, string, ErrorSink) (*Config, Handle, error) {
	return &Config{}, 1, nil
}

func (nopEntryPoints) Stop(Handle) error { return nil }

func bindNop(start, stop uintptr) EntryPoints {
	return nopEntryPoints{start: start, stop: stop}
}

func TestModule_LoadCachesBinding(t *testing.T) {
	lib := &fakeLibrary{symbols: map[string]uintptr{StartSymbol: 0x10, StopSymbol: 0x20}}
	opens := 0
	m := NewModuleWith("libseaside.so", func(name string) (Library, error) {
		opens++
		assert.Equal(t, "libseaside.so", name)
		return lib, nil
	}, bindNop)

	first, err := m.Load()
	require.NoError(t, err)
	second, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, nopEntryPoints{start: 0x10, stop: 0x20}, first)
	assert.Equal(t, 1, opens)
	assert.Equal(t, 2, lib.lookups)
	assert.True(t, m.Loaded())
}

func TestModule_ModuleNotFound(t *testing.T) {
	opens := 0
	m := NewModuleWith("", func(string) (Library, error) {
		opens++
		return nil, errors.New("cannot open shared object file")
	}, bindNop)

	assert.Equal(t, common.DefaultModuleName, m.Name())

	_, err := m.Load()
	require.Error(t, err)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ModuleNotFound, loadErr.Kind)
	assert.ErrorIs(t, err, common.ErrModuleNotFound)
	assert.Contains(t, err.Error(), "cannot open shared object file")

	// Failures are not cached.
	_, err = m.Load()
	require.Error(t, err)
	assert.Equal(t, 2, opens)
	assert.False(t, m.Loaded())
}

func TestModule_MissingStartSymbolKeepsLibrary(t *testing.T) {
	lib := &fakeLibrary{symbols: map[string]uintptr{StopSymbol: 0x20}}
	opens := 0
	m := NewModuleWith("libseaside.so", func(string) (Library, error) {
		opens++
		return lib, nil
	}, bindNop)

	_, err := m.Load()
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, MissingSymbol, loadErr.Kind)
	assert.Equal(t, StartSymbol, loadErr.Symbol)
	assert.ErrorIs(t, err, common.ErrMissingSymbol)

	// The symbol appears once the module is fixed; the open library is reused.
	lib.symbols[StartSymbol] = 0x10
	_, err = m.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, opens)
}

func TestModule_MissingStopSymbol(t *testing.T) {
	lib := &fakeLibrary{symbols: map[string]uintptr{StartSymbol: 0x10}}
	m := NewModuleWith("libseaside.so", func(string) (Library, error) { return lib, nil }, bindNop)

	_, err := m.Load()
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, StopSymbol, loadErr.Symbol)
	assert.Contains(t, err.Error(), `missing symbol "vpn_stop"`)
}

func TestLoadErrorKind_String(t *testing.T) {
	assert.Equal(t, "ModuleNotFound", ModuleNotFound.String())
	assert.Equal(t, "MissingSymbol", MissingSymbol.String())
	assert.Equal(t, "Unknown", LoadErrorKind(7).String())
}

func TestReport_ReleaseOnce(t *testing.T) {
	frees := 0
	r := NewReport("boom", func() { frees++ })
	r.Release()
	r.Release()

	assert.Equal(t, 1, frees)
	assert.True(t, r.HasMessage)

	clean := CleanExit()
	assert.False(t, clean.HasMessage)
	clean.Release()
}
