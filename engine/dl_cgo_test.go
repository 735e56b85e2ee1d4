//go:build cgo && unix

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/seaside-nm/common"
)

func TestNewModule_UnknownModule(t *testing.T) {
	m := NewModule("libseaside-does-not-exist.so")

	_, err := m.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrModuleNotFound)
	assert.False(t, m.Loaded())
}
