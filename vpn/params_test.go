package vpn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yllada/seaside-nm/common"
)

func TestParametersFromData(t *testing.T) {
	tests := []struct {
		name string
		data map[string]string
		want Parameters
	}{
		{
			name: "embedded certificate",
			data: map[string]string{"certificate": "Y2VydA==", "protocol": "typhoon"},
			want: Parameters{Certificate: "Y2VydA==", Protocol: "typhoon"},
		},
		{
			name: "file flag present",
			data: map[string]string{"certificate": "/tmp/cert.sea", "certifile": "true", "protocol": "port"},
			want: Parameters{Certificate: "/tmp/cert.sea", CertificateIsFile: true, Protocol: "port"},
		},
		{
			name: "file flag with empty value",
			data: map[string]string{"certificate": "/tmp/cert.sea", "certifile": "", "protocol": "port"},
			want: Parameters{Certificate: "/tmp/cert.sea", CertificateIsFile: true, Protocol: "port"},
		},
		{
			name: "file flag explicitly false",
			data: map[string]string{"certificate": "Y2VydA==", "certifile": "no", "protocol": "port"},
			want: Parameters{Certificate: "Y2VydA==", Protocol: "port"},
		},
		{
			name: "nothing set",
			data: nil,
			want: Parameters{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParametersFromData(tt.data))
		})
	}
}

func TestParameters_Validate(t *testing.T) {
	assert.NoError(t, Parameters{Certificate: "x", Protocol: "p"}.Validate())

	err := Parameters{Protocol: "p"}.Validate()
	assert.ErrorIs(t, err, common.ErrBadArguments)
	assert.Contains(t, err.Error(), "certificate")

	err = Parameters{Certificate: "x"}.Validate()
	assert.ErrorIs(t, err, common.ErrBadArguments)
	assert.Contains(t, err.Error(), "protocol")
}

func TestParameters_Material(t *testing.T) {
	data, n := Parameters{Certificate: "aGVsbG8="}.Material()
	assert.Equal(t, []byte("hello"), data)
	assert.Equal(t, 5, n)

	data, n = Parameters{Certificate: "/etc/seaside/cert.sea", CertificateIsFile: true}.Material()
	assert.Equal(t, []byte("/etc/seaside/cert.sea"), data)
	assert.Zero(t, n)

	// Malformed input is handed on rather than rejected.
	data, n = Parameters{Certificate: "aGVs!!!"}.Material()
	assert.Equal(t, len(data), n)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "Running", Status{State: StateRunning}.String())
	assert.Equal(t, "Terminated(Failed)", Status{State: StateTerminated, Outcome: OutcomeFailed}.String())
	assert.Equal(t, "Unknown", State(42).String())
	assert.True(t, StateStopping.Active())
	assert.False(t, StateTerminated.Active())
}
