package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	encPrefix     = "enc:"
	keyFileName   = "secret.key"
	secretKeySize = 32
)

// SecretKey holds the AES-256-GCM key that protects the stored API key.
type SecretKey struct {
	key []byte
}

// NewSecretKey derives the key from AULE_SECRET_KEY when set. Otherwise it
// reads dir/secret.key, generating it on first use. An empty dir means ~/.aule.
func NewSecretKey(dir string) (*SecretKey, error) {
	if raw := os.Getenv("AULE_SECRET_KEY"); raw != "" {
		return NewSecretKeyFromPassphrase(raw), nil
	}

	if dir == "" {
		dir = defaultConfigDir()
	}
	keyPath := filepath.Join(dir, keyFileName)
	if data, err := os.ReadFile(keyPath); err == nil && len(data) >= secretKeySize {
		return &SecretKey{key: data[:secretKeySize]}, nil
	}

	key := make([]byte, secretKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate secret key: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(keyPath, key, 0o600); err != nil {
		return nil, fmt.Errorf("write secret key: %w", err)
	}
	return &SecretKey{key: key}, nil
}

// NewSecretKeyFromPassphrase hashes an arbitrary passphrase into a key
func NewSecretKeyFromPassphrase(passphrase string) *SecretKey {
	h := sha256.Sum256([]byte(passphrase))
	return &SecretKey{key: h[:]}
}

// Encrypt returns "enc:" followed by base64(nonce || ciphertext).
// The empty string stays empty.
func (s *SecretKey) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := s.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without the "enc:" prefix are returned as is.
func (s *SecretKey) Decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, encPrefix) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	aead, err := s.aead()
	if err != nil {
		return "", err
	}
	if len(data) < aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	return string(plain), nil
}

func (s *SecretKey) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return aead, nil
}

// MaskSecret keeps only the last four characters: "****abcd"
func MaskSecret(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 4:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}

func isMasked(s string) bool {
	return strings.HasPrefix(s, "****")
}

func defaultConfigDir() string {
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, ".aule")
	}
	return filepath.Join(os.TempDir(), ".aule")
}
