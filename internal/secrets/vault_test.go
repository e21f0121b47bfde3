package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validKey(t *testing.T) []byte {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	return key
}

func TestNewVault_InvalidKey(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 16, 64} {
		v, err := NewVault(make([]byte, n))
		assert.Nil(t, v)
		assert.ErrorIs(t, err, ErrInvalidKey, "len %d", n)
	}
}

func TestEncryptDecrypt(t *testing.T) {
	t.Parallel()

	v, err := NewVault(validKey(t))
	require.NoError(t, err)

	ad := []byte("tenant/slack")

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		for _, plain := range []string{"xoxb-123-456", "", "유니코드 ✓"} {
			enc, err := v.Encrypt(plain, ad)
			require.NoError(t, err)

			got, err := v.Decrypt(enc, ad)
			require.NoError(t, err)
			assert.Equal(t, plain, got)
		}
	})

	t.Run("nonce makes ciphertexts differ", func(t *testing.T) {
		t.Parallel()

		a, err := v.Encrypt("same", ad)
		require.NoError(t, err)
		b, err := v.Encrypt("same", ad)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("different additional data fails", func(t *testing.T) {
		t.Parallel()

		enc, err := v.Encrypt("xoxb", ad)
		require.NoError(t, err)

		_, err = v.Decrypt(enc, []byte("other/slack"))
		assert.Error(t, err)
	})

	t.Run("malformed input", func(t *testing.T) {
		t.Parallel()

		for _, in := range []string{"not-base64!!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
			got, err := v.Decrypt(in, ad)
			require.Error(t, err)
			assert.Empty(t, got)
		}
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		t.Parallel()

		enc, err := v.Encrypt("xoxb", ad)
		require.NoError(t, err)
		data, err := base64.StdEncoding.DecodeString(enc)
		require.NoError(t, err)
		data[len(data)-1] ^= 0xff

		_, err = v.Decrypt(base64.StdEncoding.EncodeToString(data), ad)
		assert.Error(t, err)
	})
}

type memRepo struct {
	mu   sync.Mutex
	rows map[string]*Secret
}

func newMemRepo() *memRepo { return &memRepo{rows: map[string]*Secret{}} }

func key(tenantID uuid.UUID, name string) string { return tenantID.String() + "/" + name }

func (m *memRepo) Put(_ context.Context, s *Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[key(s.TenantID, s.Name)] = s
	return nil
}

func (m *memRepo) Get(_ context.Context, tenantID uuid.UUID, name string) (*Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[key(tenantID, name)]
	if !ok {
		return nil, ErrSecretNotFound
	}
	return s, nil
}

func (m *memRepo) ListNames(_ context.Context, tenantID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, s := range m.rows {
		if s.TenantID == tenantID {
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *memRepo) Delete(_ context.Context, tenantID uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[key(tenantID, name)]; !ok {
		return ErrSecretNotFound
	}
	delete(m.rows, key(tenantID, name))
	return nil
}

func TestKeeper(t *testing.T) {
	t.Parallel()

	v, err := NewVault(validKey(t))
	require.NoError(t, err)

	tenantA, tenantB := uuid.New(), uuid.New()

	t.Run("put then get", func(t *testing.T) {
		t.Parallel()

		repo := newMemRepo()
		k := NewKeeper(repo, v)
		require.NoError(t, k.Put(t.Context(), tenantA, SlackBotToken, "xoxb-a"))

		assert.NotContains(t, repo.rows[key(tenantA, SlackBotToken)].Value, "xoxb-a")

		got, err := k.Get(t.Context(), tenantA, SlackBotToken)
		require.NoError(t, err)
		assert.Equal(t, "xoxb-a", got)

		require.NoError(t, k.Put(t.Context(), tenantA, SlackBotToken, "xoxb-rotated"))
		got, err = k.Get(t.Context(), tenantA, SlackBotToken)
		require.NoError(t, err)
		assert.Equal(t, "xoxb-rotated", got)
	})

	t.Run("row moved to another tenant does not open", func(t *testing.T) {
		t.Parallel()

		repo := newMemRepo()
		k := NewKeeper(repo, v)
		require.NoError(t, k.Put(t.Context(), tenantA, SlackBotToken, "xoxb-a"))

		stolen := *repo.rows[key(tenantA, SlackBotToken)]
		stolen.TenantID = tenantB
		require.NoError(t, repo.Put(t.Context(), &stolen))

		_, err := k.Get(t.Context(), tenantB, SlackBotToken)
		assert.Error(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		k := NewKeeper(newMemRepo(), v)
		_, err := k.Get(t.Context(), tenantA, SlackBotToken)
		assert.ErrorIs(t, err, ErrSecretNotFound)
		assert.ErrorIs(t, k.Delete(t.Context(), tenantA, SlackBotToken), ErrSecretNotFound)
	})

	t.Run("names are per tenant", func(t *testing.T) {
		t.Parallel()

		k := NewKeeper(newMemRepo(), v)
		require.NoError(t, k.Put(t.Context(), tenantA, "b", "1"))
		require.NoError(t, k.Put(t.Context(), tenantA, "a", "2"))
		require.NoError(t, k.Put(t.Context(), tenantB, "c", "3"))

		names, err := k.Names(t.Context(), tenantA)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, names)
	})
}
