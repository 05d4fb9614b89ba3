package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/intake/pkg/adapters/memory"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/persistence/middleware"
	"github.com/aretw0/intake/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func newSession() *domain.Session {
	s := domain.NewSession("test-session", "event-1", "owner-1", time.Now())
	s.Parent[domain.FieldOrganization] = domain.TextValue("Secret Labs")
	return s
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	store := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(memory.NewStore())
	ports.RunDraftStoreContract(t, store)
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	ctx := context.Background()

	require.NoError(t, secure.Save(ctx, newSession()))

	stored, err := underlying.Load(ctx, "test-session")
	require.NoError(t, err)
	assert.False(t, stored.Parent.Has(domain.FieldOrganization), "plaintext must not reach the wrapped store")
	assert.True(t, stored.Parent.Has("__encrypted__"))
	assert.Equal(t, "owner-1", stored.OwnerID)

	loaded, err := secure.Load(ctx, "test-session")
	require.NoError(t, err)
	assert.Equal(t, "Secret Labs", loaded.Parent.Text(domain.FieldOrganization))
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	storeOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, storeOld.Save(ctx, newSession()))

	storeNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := storeNew.Load(ctx, "test-session")
	require.NoError(t, err, "fallback key should decrypt")
	assert.Equal(t, "Secret Labs", loaded.Parent.Text(domain.FieldOrganization))

	require.NoError(t, storeNew.Save(ctx, loaded))

	_, err = storeOld.Load(ctx, "test-session")
	assert.Error(t, err, "old-key store cannot read data sealed with the new key")
}

func TestEncryptionMiddleware_RejectsPlainSession(t *testing.T) {
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(context.Background(), newSession()))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Load(context.Background(), "test-session")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)
	got, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
	_, err = middleware.ParseKey("%%%")
	assert.Error(t, err)
}
