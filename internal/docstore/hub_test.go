package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitFor reads from the subscription until pred holds.
func waitFor(t *testing.T, sub *Subscription, pred func([]Snapshot) bool) []Snapshot {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case snaps, ok := <-sub.C():
			require.True(t, ok, "subscription closed")
			if pred(snaps) {
				return snaps
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}
}

func TestWatchDocInitialThenChanges(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	sub, err := s.WatchDoc(ctx, "carts", "current_cart")
	require.NoError(t, err)
	defer sub.Close()

	first := waitFor(t, sub, func([]Snapshot) bool { return true })
	require.Len(t, first, 1)
	assert.False(t, first[0].Exists)

	require.NoError(t, s.Set(ctx, "carts", "current_cart", map[string]any{"items": []any{}}))
	waitFor(t, sub, func(s []Snapshot) bool { return s[0].Exists })

	require.NoError(t, s.Delete(ctx, "carts", "current_cart"))
	waitFor(t, sub, func(s []Snapshot) bool { return !s[0].Exists })
}

func TestWatchQueryCoalescesToLatest(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	sub, err := s.WatchQuery(ctx, From("orders").Where("status", OpEq, "open"))
	require.NoError(t, err)
	defer sub.Close()

	waitFor(t, sub, func(s []Snapshot) bool { return len(s) == 0 })
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Set(ctx, "orders", string(rune('a'+i%26))+"x", map[string]any{"status": "open"}))
	}
	got := waitFor(t, sub, func(s []Snapshot) bool { return len(s) == 26 })
	assert.Len(t, got, 26)
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	s := NewMemory()
	sub, err := s.WatchDoc(context.Background(), "carts", "c")
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	for range sub.C() {
	}
	assert.Zero(t, s.hub.count())
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemory()
	sub, err := s.WatchQuery(ctx, From("orders"))
	require.NoError(t, err)
	waitFor(t, sub, func([]Snapshot) bool { return true })

	cancel()
	select {
	case <-sub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Zero(t, s.hub.count())
}

func TestWatchQueryOtherCollectionDoesNotWake(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	sub, err := s.WatchQuery(ctx, From("orders"))
	require.NoError(t, err)
	defer sub.Close()
	waitFor(t, sub, func([]Snapshot) bool { return true })

	require.NoError(t, s.Set(ctx, "categories", "c1", map[string]any{"name": "x"}))
	select {
	case <-sub.C():
		t.Fatal("unexpected refresh")
	case <-time.After(50 * time.Millisecond):
	}
}
