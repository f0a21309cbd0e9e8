package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(store Store) (*limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	l := NewLimiter(store, zerolog.Nop()).(*limiter)
	l.now = clock.Now
	return l, clock
}

func TestLimiterRejectsAfterQuota(t *testing.T) {
	l, _ := newTestLimiter(NewMemoryStore())
	window := Window{Name: "escalation", Limit: 3, Period: time.Hour}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := l.Allow(ctx, "email:a@b.fr", window)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "admission %d", i+1)
		assert.Equal(t, 2-i, decision.Remaining)
	}

	decision, err := l.Allow(ctx, "email:a@b.fr", window)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
	assert.Equal(t, time.Hour, decision.RetryAfter)
	assert.Equal(t, 3600, decision.RetryAfterSeconds())
}

func TestLimiterRejectionDoesNotConsumeSlot(t *testing.T) {
	l, clock := newTestLimiter(NewMemoryStore())
	window := Window{Name: "chat", Limit: 2, Period: time.Minute}
	ctx := context.Background()

	_, _ = l.Allow(ctx, "k", window)
	clock.Advance(30 * time.Second)
	_, _ = l.Allow(ctx, "k", window)

	for i := 0; i < 5; i++ {
		decision, err := l.Allow(ctx, "k", window)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
	}

	// only the first admission has aged out, the rejected attempts left no trace
	clock.Advance(31 * time.Second)
	decision, err := l.Allow(ctx, "k", window)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = l.Allow(ctx, "k", window)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 29*time.Second, decision.RetryAfter)
}

func TestLimiterKeysAndWindowsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(NewMemoryStore())
	chat := Window{Name: "chat", Limit: 1, Period: time.Minute}
	escalation := Window{Name: "escalation", Limit: 1, Period: time.Hour}
	ctx := context.Background()

	first, _ := l.Allow(ctx, "email:one@x.fr", chat)
	other, _ := l.Allow(ctx, "email:two@x.fr", chat)
	esc, _ := l.Allow(ctx, "email:one@x.fr", escalation)

	assert.True(t, first.Allowed)
	assert.True(t, other.Allowed)
	assert.True(t, esc.Allowed)
}

type failingStore struct{}

func (failingStore) Admit(context.Context, string, int, time.Duration, time.Time) (Admission, error) {
	return Admission{}, errors.New("connection refused")
}

func TestLimiterFailsOpen(t *testing.T) {
	l, _ := newTestLimiter(failingStore{})
	decision, err := l.Allow(context.Background(), "k", Window{Name: "chat", Limit: 1, Period: time.Minute})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestIdentityKey(t *testing.T) {
	assert.Equal(t, "email:marie@acme.fr", IdentityKey(" Marie@Acme.fr ", "10.0.0.1"))
	assert.Equal(t, "ip:10.0.0.1", IdentityKey("", "10.0.0.1:5432"))
	assert.Equal(t, "ip:10.0.0.1", IdentityKey("", "::ffff:10.0.0.1"))
	assert.Equal(t, "anonymous", IdentityKey("", ""))
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	_, _ = store.Admit(context.Background(), "old", 5, time.Minute, now.Add(-2*time.Hour))
	_, _ = store.Admit(context.Background(), "fresh", 5, time.Minute, now)

	assert.Equal(t, 1, store.Sweep(now, time.Hour))
	assert.Len(t, store.logs, 1)
}
