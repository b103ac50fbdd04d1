package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/aretw0/retrofx/pkg/ports"
)

// KeySize is the required key length (AES-256).
const KeySize = 32

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// Validate checks key lengths.
func (c EncryptionConfig) Validate() error {
	if len(c.ActiveKey) != KeySize {
		return fmt.Errorf("active key must be %d bytes (AES-256), got %d", KeySize, len(c.ActiveKey))
	}
	for i, k := range c.FallbackKeys {
		if len(k) != KeySize {
			return fmt.Errorf("fallback key %d must be %d bytes, got %d", i, KeySize, len(k))
		}
	}
	return nil
}

// ParseKeys decodes base64 keys into an EncryptionConfig.
func ParseKeys(active string, fallbacks ...string) (EncryptionConfig, error) {
	var cfg EncryptionConfig
	key, err := base64.StdEncoding.DecodeString(active)
	if err != nil {
		return cfg, fmt.Errorf("decode active key: %w", err)
	}
	cfg.ActiveKey = key
	for i, f := range fallbacks {
		k, err := base64.StdEncoding.DecodeString(f)
		if err != nil {
			return cfg, fmt.Errorf("decode fallback key %d: %w", i, err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, k)
	}
	return cfg, cfg.Validate()
}

type encryptionMiddleware struct {
	next   ports.SessionStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals snapshots using AES-GCM.
// It panics on an invalid config; use EncryptionConfig.Validate or ParseKeys first.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if err := config.Validate(); err != nil {
		panic(err)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, snap domain.SessionSnapshot) error {
	plainText, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}

	// The envelope keeps what monitoring needs and hides the image and effect.
	envelope := domain.SessionSnapshot{
		ID:        snap.ID,
		State:     snap.State,
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
		Sealed:    base64.StdEncoding.EncodeToString(ciphertext),
	}
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	envelope, err := m.next.Load(ctx, sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	// Fail secure: a plain snapshot under an encrypting store is an error.
	if envelope.Sealed == "" {
		return domain.SessionSnapshot{}, errors.New("snapshot is missing its sealed envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(envelope.Sealed)
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("failed to decrypt snapshot: %w", err)
	}

	var snap domain.SessionSnapshot
	if err := json.Unmarshal(plainText, &snap); err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("failed to unmarshal decrypted snapshot: %w", err)
	}
	return snap, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
