// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	store := New(client, opts...)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return store, mr
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://Example.com/Doc.pdf", "example.com/doc.pdf"},
		{"http://example.com/", "example.com"},
		{"  HTTPS://a.com/b/// ", "a.com/b"},
		{"ftp://x.org/", "ftp://x.org"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
	assert.Equal(t, Hash("https://a.com/doc.pdf"), Hash("http://A.com/doc.pdf/"))
	assert.NotEqual(t, Hash("https://a.com/x"), Hash("https://a.com/y"))
}

func TestAdmit_Idempotent(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	ok, existing := store.Admit(ctx, "https://a.com/doc.pdf", 1, Payload{Title: "Doc", Engine: "bing"})
	assert.True(t, ok)
	assert.Nil(t, existing)

	ok, existing = store.Admit(ctx, "http://a.com/doc.pdf/", 1, Payload{Title: "Again"})
	assert.False(t, ok)
	require.NotNil(t, existing)
	assert.Equal(t, "Doc", existing.Title)
	assert.Equal(t, "bing", existing.Engine)
	assert.Equal(t, int64(1), existing.SessionID)

	// Another session admits independently.
	ok, _ = store.Admit(ctx, "https://a.com/doc.pdf", 2, Payload{})
	assert.True(t, ok)

	n, err := store.DuplicateStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAdmit_ConcurrentSingleWinner(t *testing.T) {
	store, _ := setupTestStore(t)
	var admitted int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.Admit(context.Background(), "https://race.com/a", 7, Payload{}); ok {
				atomic.AddInt32(&admitted, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), admitted)
}

func TestCheckDuplicateAndMarkProcessed(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, dup := store.CheckDuplicate(ctx, "https://b.com", 3)
	assert.False(t, dup)

	written, err := store.MarkProcessed(ctx, "https://b.com", 3, Payload{Title: "B"}, 0)
	require.NoError(t, err)
	assert.True(t, written)

	p, dup := store.CheckDuplicate(ctx, "https://b.com/", 3)
	require.True(t, dup)
	assert.Equal(t, "B", p.Title)

	// Second write is rejected, not overwritten.
	written, err = store.MarkProcessed(ctx, "https://b.com", 3, Payload{Title: "changed"}, 0)
	require.NoError(t, err)
	assert.False(t, written)
	p, _ = store.CheckDuplicate(ctx, "https://b.com", 3)
	assert.Equal(t, "B", p.Title)

	g, ok := store.SeenGlobally(ctx, "https://b.com")
	require.True(t, ok)
	assert.Equal(t, int64(3), g.SessionID)
}

func TestTTLExpiry(t *testing.T) {
	store, mr := setupTestStore(t, WithTTL(10*time.Minute))
	ctx := context.Background()

	ok, _ := store.Admit(ctx, "https://c.com", 1, Payload{})
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, mr.TTL(SessionKey(1, Hash("https://c.com"))))

	mr.FastForward(11 * time.Minute)

	_, dup := store.CheckDuplicate(ctx, "https://c.com", 1)
	assert.False(t, dup)
	ok, _ = store.Admit(ctx, "https://c.com", 1, Payload{})
	assert.True(t, ok)
}

func TestFailOpen(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	ok, _ := store.Admit(ctx, "https://d.com", 1, Payload{})
	require.True(t, ok)

	mr.Close()

	_, dup := store.CheckDuplicate(ctx, "https://d.com", 1)
	assert.False(t, dup)
	ok, existing := store.Admit(ctx, "https://d.com", 1, Payload{})
	assert.True(t, ok)
	assert.Nil(t, existing)
	assert.Error(t, store.Ping(ctx))
}

func TestCleanupSession(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	for _, u := range []string{"https://e.com/1", "https://e.com/2", "https://e.com/3"} {
		ok, _ := store.Admit(ctx, u, 5, Payload{})
		require.True(t, ok)
	}
	ok, _ := store.Admit(ctx, "https://e.com/1", 6, Payload{})
	require.True(t, ok)

	n, err := store.SessionStats(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	removed, err := store.CleanupSession(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	n, _ = store.SessionStats(ctx, 5)
	assert.Equal(t, 0, n)
	n, _ = store.SessionStats(ctx, 6)
	assert.Equal(t, 1, n)

	removed, err = store.CleanupSession(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
