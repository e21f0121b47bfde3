package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

//nolint:gochecknoglobals // sentinel error
var ErrSecretNotFound = errors.New("secrets: not found")

//nolint:gochecknoglobals // sentinel error
var ErrInvalidKey = errors.New("secrets: invalid encryption key")

// Well-known secret names.
const (
	SlackBotToken = "slack_bot_token"
)

// Secret is an encrypted per-tenant credential, e.g. a messenger bot token.
type Secret struct {
	TenantID  uuid.UUID
	Name      string
	Value     string // base64(nonce || ciphertext)
	UpdatedAt time.Time
}

// SecretRepository stores encrypted secrets.
type SecretRepository interface {
	Put(ctx context.Context, s *Secret) error
	Get(ctx context.Context, tenantID uuid.UUID, name string) (*Secret, error)
	ListNames(ctx context.Context, tenantID uuid.UUID) ([]string, error)
	Delete(ctx context.Context, tenantID uuid.UUID, name string) error
}

// Vault encrypts/decrypts secrets using AES-256-GCM.
type Vault struct {
	aead cipher.AEAD
}

// NewVault creates a Vault with the given 32-byte encryption key.
func NewVault(key []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets.NewVault: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets.NewVault: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext with additional data and returns base64(nonce || ciphertext).
// Decrypt must be called with the same additional data.
func (v *Vault) Encrypt(plaintext string, additional []byte) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secrets.Encrypt: generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), additional)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens base64(nonce || ciphertext).
func (v *Vault) Decrypt(ciphertext string, additional []byte) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("secrets.Decrypt: base64 decode: %w", err)
	}

	nonceSize := v.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("secrets.Decrypt: ciphertext too short")
	}

	plaintext, err := v.aead.Open(nil, data[:nonceSize], data[nonceSize:], additional)
	if err != nil {
		return "", fmt.Errorf("secrets.Decrypt: %w", err)
	}

	return string(plaintext), nil
}

// Keeper stores tenant secrets encrypted at rest. Ciphertexts are bound to
// their tenant and name, so a row copied to another tenant fails to open.
type Keeper struct {
	repo  SecretRepository
	vault *Vault
}

func NewKeeper(repo SecretRepository, vault *Vault) *Keeper {
	return &Keeper{repo: repo, vault: vault}
}

func binding(tenantID uuid.UUID, name string) []byte {
	return []byte(tenantID.String() + "/" + name)
}

// Put encrypts and stores plaintext, replacing any previous value.
func (k *Keeper) Put(ctx context.Context, tenantID uuid.UUID, name, plaintext string) error {
	enc, err := k.vault.Encrypt(plaintext, binding(tenantID, name))
	if err != nil {
		return fmt.Errorf("secrets.Keeper.Put: %w", err)
	}

	err = k.repo.Put(ctx, &Secret{TenantID: tenantID, Name: name, Value: enc, UpdatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("secrets.Keeper.Put: %w", err)
	}
	return nil
}

// Get returns the plaintext of a stored secret.
func (k *Keeper) Get(ctx context.Context, tenantID uuid.UUID, name string) (string, error) {
	s, err := k.repo.Get(ctx, tenantID, name)
	if err != nil {
		return "", fmt.Errorf("secrets.Keeper.Get: %w", err)
	}

	plaintext, err := k.vault.Decrypt(s.Value, binding(tenantID, name))
	if err != nil {
		return "", fmt.Errorf("secrets.Keeper.Get: %q: %w", name, err)
	}
	return plaintext, nil
}

func (k *Keeper) Names(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	names, err := k.repo.ListNames(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("secrets.Keeper.Names: %w", err)
	}
	return names, nil
}

func (k *Keeper) Delete(ctx context.Context, tenantID uuid.UUID, name string) error {
	if err := k.repo.Delete(ctx, tenantID, name); err != nil {
		return fmt.Errorf("secrets.Keeper.Delete: %w", err)
	}
	return nil
}
