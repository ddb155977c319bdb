// Package keyring provides secure credential storage.
// It uses the system keyring when available, falling back to
// encrypted local file storage when not.
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

	"github.com/yllada/claw-manager/common"
)

const (
	// serviceName is the identifier used in the system keyring.
	serviceName = "claw-manager"

	// GatewayTokenKey holds the gateway auth token.
	GatewayTokenKey = "gateway-token"
)

// Common errors returned by keyring operations.
var (
	ErrNotFound    = common.ErrCredentialsNotFound
	ErrAccess      = errors.New("keyring access denied")
	ErrUnavailable = errors.New("keyring service unavailable")
)

// Vault stores secrets in the system keyring or, failing that, in an
// AES-GCM encrypted file.
type Vault struct {
	service string
	dir     string

	mu         sync.RWMutex
	initOnce   sync.Once
	useLocal   bool
	local      map[string]string
	localFile  string
	encryption []byte
}

var _ common.CredentialStore = (*Vault)(nil)

// New returns a vault for service that keeps its fallback file in dir.
func New(service, dir string) *Vault {
	return &Vault{service: service, dir: dir}
}

// NewLocal returns a vault that never touches the system keyring.
func NewLocal(dir string) *Vault {
	v := New(serviceName, dir)
	v.initOnce.Do(func() {
		v.useLocal = true
		v.initLocalStorage()
	})
	return v
}

var (
	defaultVault *Vault
	defaultOnce  sync.Once
)

// Default returns the application vault.
func Default() *Vault {
	defaultOnce.Do(func() {
		dir, err := common.GetConfigDir()
		if err != nil {
			homeDir, _ := os.UserHomeDir()
			dir = filepath.Join(homeDir, ".config", common.ConfigDirName)
		}
		defaultVault = New(serviceName, dir)
	})
	return defaultVault
}

func (v *Vault) init() {
	v.initOnce.Do(func() {
		// Try system keyring first
		testKey := serviceName + "-test-init"
		if err := keyring.Set(v.service, testKey, "test"); err == nil {
			keyring.Delete(v.service, testKey)
			v.useLocal = false
			return
		}
		common.LogDebug("System keyring unavailable, using encrypted file")
		v.useLocal = true
		v.initLocalStorage()
	})
}

func (v *Vault) initLocalStorage() {
	os.MkdirAll(v.dir, 0700)
	v.localFile = filepath.Join(v.dir, common.CredentialsFileName)

	key, err := deriveKey(v.service)
	if err != nil {
		common.LogWarn("Deriving credential key failed: %v", err)
	}
	v.encryption = key

	v.local = make(map[string]string)
	v.loadLocalStore()
}

// deriveKey derives the file encryption key from machine-specific data.
func deriveKey(service string) ([]byte, error) {
	hostname, _ := os.Hostname()
	secret := fmt.Sprintf("%s-%s-%d", hostname, getMachineID(), os.Getuid())
	r := hkdf.New(sha256.New, []byte(secret), []byte(service), []byte("local credential store"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func getMachineID() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return "default-machine-id"
}

func (v *Vault) loadLocalStore() {
	data, err := os.ReadFile(v.localFile)
	if err != nil {
		return
	}

	decrypted, err := v.decrypt(data)
	if err != nil {
		common.LogWarn("Credential file unreadable: %v", err)
		return
	}

	json.Unmarshal(decrypted, &v.local)
}

func (v *Vault) saveLocalStore() error {
	v.mu.RLock()
	data, err := json.Marshal(v.local)
	v.mu.RUnlock()
	if err != nil {
		return err
	}

	encrypted, err := v.encrypt(data)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}

	if err := os.WriteFile(v.localFile, encrypted, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
	}
	return nil
}

func (v *Vault) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(v.encryption)
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

func (v *Vault) decrypt(data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	block, err := aes.NewCipher(v.encryption)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", common.ErrDecryption)
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func (v *Vault) storeLocal(key, secret string) error {
	v.mu.Lock()
	v.local[key] = secret
	v.mu.Unlock()
	return v.saveLocalStore()
}

// Store saves secret under key.
func (v *Vault) Store(key, secret string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if secret == "" {
		return errors.New("secret cannot be empty")
	}
	v.init()

	if v.useLocal {
		return v.storeLocal(key, secret)
	}

	if err := keyring.Set(v.service, key, secret); err != nil {
		// Fallback to local storage
		v.mu.Lock()
		v.useLocal = true
		v.mu.Unlock()
		v.initLocalStorage()
		return v.storeLocal(key, secret)
	}
	return nil
}

// Get retrieves the secret stored under key.
func (v *Vault) Get(key string) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}
	v.init()

	if v.useLocal {
		v.mu.RLock()
		secret, exists := v.local[key]
		v.mu.RUnlock()
		if !exists {
			return "", ErrNotFound
		}
		return secret, nil
	}

	secret, err := keyring.Get(v.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return secret, nil
}

// Delete removes the secret stored under key.
func (v *Vault) Delete(key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	v.init()

	if !v.useLocal {
		if err := keyring.Delete(v.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrAccess, err)
		}
		return nil
	}

	v.mu.Lock()
	delete(v.local, key)
	v.mu.Unlock()
	return v.saveLocalStore()
}

// Exists checks if a secret exists under key.
func (v *Vault) Exists(key string) bool {
	_, err := v.Get(key)
	return err == nil
}

// Store saves a secret in the default vault.
func Store(key, secret string) error { return Default().Store(key, secret) }

// Get reads a secret from the default vault.
func Get(key string) (string, error) { return Default().Get(key) }

// Delete removes a secret from the default vault.
func Delete(key string) error { return Default().Delete(key) }

// Exists checks the default vault for key.
func Exists(key string) bool { return Default().Exists(key) }
