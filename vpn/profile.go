// Package vpn provides the seaside session controller and operator profiles.
package vpn

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/yllada/seaside-nm/common"
)

// Profile is a connection kept by the command line client. It stores the
// values a NetworkManager connection carries in vpn.data, so a profile and
// an imported connection start identical sessions.
type Profile struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Certificate is base64 data or, with CertificateFile, a path. Empty
	// for keyring profiles.
	Certificate     string    `yaml:"certificate,omitempty"`
	CertificateFile bool      `yaml:"certifile,omitempty"`
	Protocol        string    `yaml:"protocol"`
	Keyring         bool      `yaml:"keyring,omitempty"`
	Created         time.Time `yaml:"created"`
	LastUsed        time.Time `yaml:"last_used,omitempty"`
}

// Validate checks if the profile has all required fields.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("profile name is required")
	}
	if p.Protocol == "" {
		return errors.New("protocol is required")
	}
	if p.Keyring && p.CertificateFile {
		return errors.New("keyring profiles cannot reference a certificate file")
	}
	if !p.Keyring && p.Certificate == "" {
		return errors.New("certificate is required")
	}
	return nil
}

// Data renders the profile as a vpn.data dictionary. certificate replaces
// the stored value for keyring profiles.
func (p *Profile) Data(certificate string) map[string]string {
	data := map[string]string{
		common.KeyCertificate: p.Certificate,
		common.KeyProtocol:    p.Protocol,
	}
	if p.Keyring {
		data[common.KeyCertificate] = certificate
	} else if p.CertificateFile {
		data[common.KeyCertifile] = "true"
	}
	return data
}

// Parameters returns the session parameters for the profile, parsed the
// same way as a NetworkManager connection.
func (p *Profile) Parameters(certificate string) Parameters {
	return ParametersFromData(p.Data(certificate))
}

// ProfileManager keeps profiles in a YAML file.
type ProfileManager struct {
	profiles   []*Profile
	configFile string
}

// NewProfileManager opens the profile store in the configuration directory.
func NewProfileManager() (*ProfileManager, error) {
	configDir, err := common.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return NewProfileManagerAt(filepath.Join(configDir, common.ProfilesFileName))
}

// NewProfileManagerAt opens the profile store at path.
func NewProfileManagerAt(path string) (*ProfileManager, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	pm := &ProfileManager{configFile: path}
	if err := pm.Load(); err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	return pm, nil
}

// Load reads the store. A missing or empty file means no profiles; unknown
// fields and repeated IDs or names are errors.
func (pm *ProfileManager) Load() error {
	data, err := os.ReadFile(pm.configFile)
	if os.IsNotExist(err) {
		pm.profiles = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read profiles file: %w", err)
	}

	var profiles []*Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&profiles); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse profiles file: %w", err)
	}

	ids := make(map[string]bool, len(profiles))
	names := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if p == nil {
			return errors.New("empty profile entry")
		}
		if ids[p.ID] || names[p.Name] {
			return fmt.Errorf("%w: %s", common.ErrDuplicateName, p.Name)
		}
		ids[p.ID], names[p.Name] = true, true
	}
	pm.profiles = profiles
	return nil
}

// Save writes the store through a temporary file so a crash never leaves
// it truncated.
func (pm *ProfileManager) Save() error {
	data, err := yaml.Marshal(pm.profiles)
	if err != nil {
		return fmt.Errorf("failed to serialize profiles: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(pm.configFile), ".profiles-*")
	if err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	if err := os.Rename(tmp.Name(), pm.configFile); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	return nil
}

// Add validates and stores a new profile, assigning its ID.
func (pm *ProfileManager) Add(profile *Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	if _, err := pm.GetByName(profile.Name); err == nil {
		return fmt.Errorf("%w: %s", common.ErrDuplicateName, profile.Name)
	}
	if profile.CertificateFile {
		abs, err := filepath.Abs(profile.Certificate)
		if err != nil || !common.FileExists(abs) {
			return fmt.Errorf("certificate file %s not found", profile.Certificate)
		}
		// The engine resolves the path from the plugin's working directory.
		profile.Certificate = abs
	}

	profile.ID = uuid.NewString()
	profile.Created = time.Now()
	pm.profiles = append(pm.profiles, profile)
	return pm.Save()
}

// Remove removes a profile by ID.
func (pm *ProfileManager) Remove(id string) error {
	i := pm.index(id)
	if i < 0 {
		return common.ErrProfileNotFound
	}
	pm.profiles = append(pm.profiles[:i], pm.profiles[i+1:]...)
	return pm.Save()
}

// Get retrieves a profile by ID.
func (pm *ProfileManager) Get(id string) (*Profile, error) {
	if i := pm.index(id); i >= 0 {
		return pm.profiles[i], nil
	}
	return nil, common.ErrProfileNotFound
}

// GetByName retrieves a profile by name.
func (pm *ProfileManager) GetByName(name string) (*Profile, error) {
	for _, p := range pm.profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, common.ErrProfileNotFound
}

// Lookup finds a profile by name, falling back to ID.
func (pm *ProfileManager) Lookup(ref string) (*Profile, error) {
	if p, err := pm.GetByName(ref); err == nil {
		return p, nil
	}
	return pm.Get(ref)
}

// List returns all profiles, most recently used first.
func (pm *ProfileManager) List() []*Profile {
	out := append([]*Profile(nil), pm.profiles...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastUsed.After(out[j].LastUsed)
	})
	return out
}

// Update replaces the stored profile with the same ID.
func (pm *ProfileManager) Update(profile *Profile) error {
	i := pm.index(profile.ID)
	if i < 0 {
		return common.ErrProfileNotFound
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	pm.profiles[i] = profile
	return pm.Save()
}

// MarkUsed stamps a profile's LastUsed time.
func (pm *ProfileManager) MarkUsed(id string) error {
	profile, err := pm.Get(id)
	if err != nil {
		return err
	}
	profile.LastUsed = time.Now()
	return pm.Save()
}

func (pm *ProfileManager) index(id string) int {
	for i, p := range pm.profiles {
		if p.ID == id {
			return i
		}
	}
	return -1
}
