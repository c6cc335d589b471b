package credentials

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()

	token := Token{AccessToken: "abc", ExpiresIn: 3600, CreatedAt: time.Now()}
	require.NoError(t, store.Put("https://mcp.example", token))

	got, ok := store.Get("https://mcp.example")
	require.True(t, ok)
	assert.Equal(t, "abc", got.AccessToken)

	_, ok = store.Get("https://other.example")
	assert.False(t, ok)
}

func TestMemoryStoreEvictsExpired(t *testing.T) {
	current := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(WithClock(func() time.Time { return current }))

	token := Token{AccessToken: "abc", ExpiresIn: 60, CreatedAt: current}
	require.NoError(t, store.Put("key", token))

	_, ok := store.Get("key")
	assert.True(t, ok)

	// Advance past the lifetime: the token is evicted on read.
	current = current.Add(2 * time.Minute)
	_, ok = store.Get("key")
	assert.False(t, ok)

	// And it stays gone.
	current = current.Add(-2 * time.Minute)
	_, ok = store.Get("key")
	assert.False(t, ok)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put("key", Token{AccessToken: "abc", ExpiresIn: 3600, CreatedAt: time.Now()}))
	require.NoError(t, store.Delete("key"))

	_, ok := store.Get("key")
	assert.False(t, ok)
}

func TestTokenExpired(t *testing.T) {
	created := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	token := Token{AccessToken: "abc", ExpiresIn: 60, CreatedAt: created}

	assert.False(t, token.Expired(created.Add(30*time.Second)))
	assert.True(t, token.Expired(created.Add(61*time.Second)))
}
