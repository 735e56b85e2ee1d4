//go:build !cgo || !unix

// Package engine provides the binding to the seaside engine module.
package engine

import (
	"errors"
	"fmt"

	"github.com/yllada/seaside-nm/common"
)

var errNoDynamicLoading = errors.New("dynamic loading requires a cgo build on a unix platform")

func openLibrary(string) (Library, error) {
	return nil, errNoDynamicLoading
}

func bindEntryPoints(uintptr, uintptr) EntryPoints {
	return unsupportedEntryPoints{}
}

type unsupportedEntryPoints struct{}

func (unsupportedEntryPoints) Start([]byte, int, string, ErrorSink) (*Config, Handle, error) {
	return nil, 0, fmt.Errorf("%w: %v", common.ErrEngineStart, errNoDynamicLoading)
}

func (unsupportedEntryPoints) Stop(Handle) error {
	return fmt.Errorf("%w: %v", common.ErrStopFailed, errNoDynamicLoading)
}
