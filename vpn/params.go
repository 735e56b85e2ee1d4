// Package vpn provides the seaside session controller and operator profiles.
package vpn

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/yllada/seaside-nm/common"
)

// Parameters are the session inputs read from the connection settings.
type Parameters struct {
	// Certificate is base64 certificate data, or a file path when
	// CertificateIsFile is set.
	Certificate string
	// CertificateIsFile selects path pass-through instead of decoding.
	CertificateIsFile bool
	// Protocol is the engine protocol name.
	Protocol string
}

// ParametersFromData reads Parameters from a vpn.data dictionary.
// The certifile key selects file mode when present, unless it holds an
// explicit false value.
func ParametersFromData(data map[string]string) Parameters {
	params := Parameters{
		Certificate: data[common.KeyCertificate],
		Protocol:    data[common.KeyProtocol],
	}
	if flag, ok := data[common.KeyCertifile]; ok {
		switch strings.ToLower(strings.TrimSpace(flag)) {
		case "false", "no", "0":
		default:
			params.CertificateIsFile = true
		}
	}
	return params
}

// Validate checks that both required parameters are present.
func (p Parameters) Validate() error {
	if p.Certificate == "" {
		return fmt.Errorf("%w: missing %q parameter", common.ErrBadArguments, common.KeyCertificate)
	}
	if p.Protocol == "" {
		return fmt.Errorf("%w: missing %q parameter", common.ErrBadArguments, common.KeyProtocol)
	}
	return nil
}

// Material returns the certificate bytes and the length handed to the
// engine. A file path is passed through unchanged with length 0. Invalid
// base64 is not rejected here: whatever decodes is handed on and the engine
// rejects malformed input.
func (p Parameters) Material() ([]byte, int) {
	if p.CertificateIsFile {
		return []byte(p.Certificate), 0
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(p.Certificate))
	if err != nil {
		common.LogDebug("Session: certificate is not valid base64 (%v), passing %d decoded bytes", err, len(decoded))
	}
	return decoded, len(decoded)
}
