package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabricops/apstra-mcp/internal/config"
)

func testCreds() config.Credentials {
	return config.Credentials{Host: "10.0.0.1", Port: 443, Username: "admin", Password: "secret"}
}

// fakeClock is a settable time source for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, ttl time.Duration, clock *fakeClock) *Store {
	t.Helper()
	s := NewStore(ttl, nil, WithClock(clock.Now))
	t.Cleanup(s.Stop)
	return s
}

func TestCreateAndResolve(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, time.Hour, clock)

	token, err := s.Create("admin", testCreds(), "upstream-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	rec, err := s.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", rec.Owner)
	assert.Equal(t, "upstream-1", rec.UpstreamToken)
	assert.Equal(t, testCreds(), rec.Credentials)
	assert.Equal(t, token, rec.Token)
}

func TestTokensAreUniqueAndOpaque(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, time.Hour, clock)

	seen := make(map[string]bool)
	for range 100 {
		token, err := s.Create("admin", testCreds(), "u")
		require.NoError(t, err)
		assert.False(t, seen[token], "token collision")
		seen[token] = true
		// 32 random bytes base64url encoded
		assert.Len(t, token, 43)
		assert.NotContains(t, token, "admin")
	}
}

func TestResolveUnknownToken(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, time.Hour, clock)

	_, err := s.Resolve("no-such-token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRefreshesIdleTimer(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, time.Hour, clock)

	token, err := s.Create("admin", testCreds(), "u")
	require.NoError(t, err)

	// Touch the session just before expiry, repeatedly. It must stay
	// alive because each use refreshes the timer.
	for range 3 {
		clock.Advance(59 * time.Minute)
		_, err := s.Resolve(token)
		require.NoError(t, err)
	}
}

func TestExpiryReportedOnceThenNotFound(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, time.Hour, clock)

	token, err := s.Create("admin", testCreds(), "u")
	require.NoError(t, err)

	clock.Advance(time.Hour + time.Second)

	_, err = s.Resolve(token)
	assert.ErrorIs(t, err, ErrExpired)

	// The expired record was purged by the failing lookup.
	_, err = s.Resolve(token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExactTTLBoundaryStillLive(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, time.Hour, clock)

	token, err := s.Create("admin", testCreds(), "u")
	require.NoError(t, err)

	clock.Advance(time.Hour)

	_, err = s.Resolve(token)
	assert.NoError(t, err, "idle exactly TTL is not yet expired")
}

func TestPeekDoesNotRefresh(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, time.Hour, clock)

	token, err := s.Create("admin", testCreds(), "u")
	require.NoError(t, err)

	clock.Advance(40 * time.Minute)
	_, err = s.Peek(token)
	require.NoError(t, err)

	// Had Peek refreshed, the session would survive this.
	clock.Advance(30 * time.Minute)
	_, err = s.Resolve(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestPeekDoesNotPurge(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, time.Hour, clock)

	token, err := s.Create("admin", testCreds(), "u")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = s.Peek(token)
	assert.ErrorIs(t, err, ErrExpired)

	// Resolve still sees the record and reports expiry itself: had Peek
	// purged it, this would be ErrNotFound.
	_, err = s.Resolve(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestInvalidateIdempotent(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, time.Hour, clock)

	token, err := s.Create("admin", testCreds(), "u")
	require.NoError(t, err)

	assert.True(t, s.Invalidate(token))
	assert.False(t, s.Invalidate(token))
	assert.False(t, s.Invalidate("never-existed"))

	_, err = s.Resolve(token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountExcludesExpired(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, time.Hour, clock)

	_, err := s.Create("alice", testCreds(), "u")
	require.NoError(t, err)

	clock.Advance(50 * time.Minute)
	_, err = s.Create("bob", testCreds(), "u")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count())

	// Alice's session passes its TTL. Even before a sweep purges the
	// record, the count only reports live sessions.
	clock.Advance(30 * time.Minute)
	assert.Equal(t, 1, s.Count())

	s.Sweep()
	assert.Equal(t, 1, s.Count())
}

func TestSweep(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, time.Hour, clock)

	stale1, err := s.Create("alice", testCreds(), "u")
	require.NoError(t, err)
	stale2, err := s.Create("bob", testCreds(), "u")
	require.NoError(t, err)

	clock.Advance(50 * time.Minute)
	fresh, err := s.Create("carol", testCreds(), "u")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 2, s.Sweep())
	assert.Equal(t, 1, s.Count())

	_, err = s.Resolve(stale1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Resolve(stale2)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Resolve(fresh)
	assert.NoError(t, err)
}

func TestExpiresIn(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, time.Hour, clock)

	token, err := s.Create("admin", testCreds(), "u")
	require.NoError(t, err)

	rec, err := s.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, s.ExpiresIn(rec))

	clock.Advance(20 * time.Minute)
	assert.Equal(t, 40*time.Minute, s.ExpiresIn(rec))

	clock.Advance(2 * time.Hour)
	assert.Equal(t, time.Duration(0), s.ExpiresIn(rec))
}

func TestZeroTTLUsesDefault(t *testing.T) {
	s := NewStore(0, nil)
	defer s.Stop()
	assert.Equal(t, DefaultTTL, s.TTL())
}

func TestResolvedRecordIsACopy(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, time.Hour, clock)

	token, err := s.Create("admin", testCreds(), "u")
	require.NoError(t, err)

	rec, err := s.Resolve(token)
	require.NoError(t, err)
	rec.UpstreamToken = "mutated"

	again, err := s.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "u", again.UpstreamToken)
}

func TestConcurrentUse(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, time.Hour, clock)

	const workers = 16
	tokens := make([]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := s.Create("admin", testCreds(), "u")
			if err != nil {
				t.Error(err)
				return
			}
			tokens[i] = token
			if _, err := s.Resolve(token); err != nil {
				t.Error(err)
			}
			s.Sweep()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, workers, s.Count())
	seen := make(map[string]bool)
	for _, token := range tokens {
		assert.False(t, seen[token])
		seen[token] = true
	}
}

func TestStopIdempotent(t *testing.T) {
	s := NewStore(time.Hour, nil)
	s.Stop()
	s.Stop()
}
