// Package keyring stores certificates for command line profiles.
// It uses the system keyring when available, falling back to an
// encrypted file in the config directory when not.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/hkdf"

	"github.com/yllada/seaside-nm/common"
)

const (
	// serviceName is the identifier used in the system keyring.
	serviceName = "seaside-nm"
	// fallbackFile is the encrypted store used without a system keyring.
	fallbackFile = ".certificates"
	probeKey     = "seaside-nm-probe"
)

// Common errors returned by keyring operations.
var (
	ErrNotFound = errors.New("certificate not found")
	ErrEmpty    = errors.New("profile ID and certificate are required")
)

// Store keeps certificates keyed by profile ID.
type Store struct {
	dir string

	probe sync.Once
	mu    sync.RWMutex
	local bool
	key   []byte
	items map[string]string
}

// New returns a store whose fallback file lives in dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// NewDefault returns a store using the user's config directory.
func NewDefault() (*Store, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return New(dir), nil
}

// UsingFallback reports whether certificates go to the encrypted file.
func (s *Store) UsingFallback() bool {
	s.init()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local
}

func (s *Store) init() {
	s.probe.Do(func() {
		if err := keyring.Set(serviceName, probeKey, "probe"); err == nil {
			_ = keyring.Delete(serviceName, probeKey)
			return
		}
		common.LogWarn("Keyring: system keyring unavailable, using encrypted file in %s", s.dir)
		s.useLocal()
	})
}

// useLocal switches to the file store. Callers must not hold s.mu.
func (s *Store) useLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local {
		return
	}
	s.local = true
	s.key = deriveKey()
	s.items = make(map[string]string)

	data, err := os.ReadFile(s.path())
	if err != nil {
		return
	}
	plain, err := decrypt(s.key, data)
	if err != nil {
		common.LogWarn("Keyring: cannot decrypt %s: %v", s.path(), err)
		return
	}
	if err := json.Unmarshal(plain, &s.items); err != nil {
		common.LogWarn("Keyring: cannot parse %s: %v", s.path(), err)
	}
}

func (s *Store) path() string {
	return filepath.Join(s.dir, fallbackFile)
}

// saveLocked writes the file store. Callers hold s.mu.
func (s *Store) saveLocked() error {
	data, err := json.Marshal(s.items)
	if err != nil {
		return err
	}
	encrypted, err := encrypt(s.key, data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}
	return os.WriteFile(s.path(), encrypted, 0600)
}

// Put saves the certificate for a profile.
func (s *Store) Put(profileID, certificate string) error {
	if profileID == "" || certificate == "" {
		return ErrEmpty
	}
	s.init()

	if !s.UsingFallback() {
		err := keyring.Set(serviceName, profileID, certificate)
		if err == nil {
			return nil
		}
		common.LogWarn("Keyring: %v, falling back to encrypted file", err)
		s.useLocal()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[profileID] = certificate
	return s.saveLocked()
}

// Get retrieves the certificate for a profile.
func (s *Store) Get(profileID string) (string, error) {
	if profileID == "" {
		return "", ErrEmpty
	}
	s.init()

	if !s.UsingFallback() {
		certificate, err := keyring.Get(serviceName, profileID)
		if err == nil {
			return certificate, nil
		}
		if !errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("keyring: %w", err)
		}
		return "", ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	certificate, ok := s.items[profileID]
	if !ok {
		return "", ErrNotFound
	}
	return certificate, nil
}

// Delete removes the certificate for a profile. Missing entries are fine.
func (s *Store) Delete(profileID string) error {
	if profileID == "" {
		return ErrEmpty
	}
	s.init()

	if !s.UsingFallback() {
		err := keyring.Delete(serviceName, profileID)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("keyring: %w", err)
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[profileID]; !ok {
		return nil
	}
	delete(s.items, profileID)
	return s.saveLocked()
}

// Exists checks if a certificate is stored for a profile.
func (s *Store) Exists(profileID string) bool {
	_, err := s.Get(profileID)
	return err == nil
}

// deriveKey derives the file store key from machine and user identity.
func deriveKey() []byte {
	hostname, _ := os.Hostname()
	salt := fmt.Sprintf("%s-%d", hostname, os.Getuid())
	r := hkdf.New(sha256.New, []byte(machineID()), []byte(salt), []byte(serviceName+" certificates"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		panic(fmt.Sprintf("keyring: hkdf: %v", err))
	}
	return key
}

func machineID() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return "default-machine-id"
}

func encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func decrypt(key, data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
