package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fabricops/apstra-mcp/internal/config"
	"github.com/fabricops/apstra-mcp/internal/logging"
)

// DefaultTTL is the idle lifetime of a session.
const DefaultTTL = time.Hour

// DefaultSweepInterval is how often the background sweeper runs.
const DefaultSweepInterval = 5 * time.Minute

var (
	// ErrNotFound is returned when no session exists for a token. This
	// includes sessions already purged after expiry.
	ErrNotFound = errors.New("session not found; please login again")

	// ErrExpired is returned exactly once per expired session: the
	// lookup that detects expiry purges the record and reports this.
	ErrExpired = errors.New("session expired; please login again")
)

// Record is one authenticated session. The store owns all records;
// callers receive copies valid only for the duration of one call.
type Record struct {
	Token         string
	Owner         string
	Credentials   config.Credentials
	UpstreamToken string
	CreatedAt     time.Time
	LastUsedAt    time.Time
}

// Store maps opaque session tokens to records. All operations are safe
// for concurrent use.
type Store struct {
	mu      sync.Mutex
	records map[string]*Record

	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	ticker *time.Ticker
	done   chan struct{}
	stop   sync.Once
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSweepInterval overrides how often the background sweeper runs.
func WithSweepInterval(interval time.Duration) StoreOption {
	return func(s *Store) {
		s.ticker.Reset(interval)
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a session store and starts its background sweeper.
// Call Stop on shutdown.
func NewStore(ttl time.Duration, logger *slog.Logger, opts ...StoreOption) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		records: make(map[string]*Record),
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		ticker:  time.NewTicker(DefaultSweepInterval),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.sweepLoop()

	return s
}

// TTL returns the configured idle lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create inserts a new session for owner and returns its token. Token
// generation uses 32 bytes from crypto/rand, so collisions with live
// sessions are not a practical concern.
func (s *Store) Create(owner string, creds config.Credentials, upstreamToken string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.now()
	s.mu.Lock()
	s.records[token] = &Record{
		Token:         token,
		Owner:         owner,
		Credentials:   creds,
		UpstreamToken: upstreamToken,
		CreatedAt:     now,
		LastUsedAt:    now,
	}
	s.mu.Unlock()

	s.logger.Debug("session created", logging.Owner(logging.AnonymizeOwner(owner)))
	return token, nil
}

// Resolve looks up a live session, refreshes its last-used time, and
// returns a copy of the record. An expired session is purged as part of
// the failing lookup; a later Resolve with the same token reports
// ErrNotFound.
func (s *Store) Resolve(token string) (Record, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[token]
	if !ok {
		return Record{}, ErrNotFound
	}
	if now.Sub(rec.LastUsedAt) > s.ttl {
		delete(s.records, token)
		s.logger.Debug("session expired", logging.Owner(logging.AnonymizeOwner(rec.Owner)))
		return Record{}, ErrExpired
	}

	// last_used_at must be monotonically non-decreasing so expiry stays
	// correct under concurrent calls.
	if now.After(rec.LastUsedAt) {
		rec.LastUsedAt = now
	}
	return *rec, nil
}

// Peek returns session state without refreshing last-used or purging.
// Used by session_info, which must not extend a session's life.
func (s *Store) Peek(token string) (Record, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[token]
	if !ok {
		return Record{}, ErrNotFound
	}
	if now.Sub(rec.LastUsedAt) > s.ttl {
		return Record{}, ErrExpired
	}
	return *rec, nil
}

// Invalidate removes a session. Removing an unknown token is not an
// error; the call is idempotent. Reports whether a session was removed.
func (s *Store) Invalidate(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[token]; ok {
		delete(s.records, token)
		s.logger.Debug("session invalidated", logging.Owner(logging.AnonymizeOwner(rec.Owner)))
		return true
	}
	return false
}

// Sweep removes all expired sessions and returns how many were removed.
// Safe to run concurrently with every other operation.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, rec := range s.records {
		if now.Sub(rec.LastUsedAt) > s.ttl {
			delete(s.records, token)
			removed++
		}
	}
	return removed
}

// Count returns the number of live sessions. Records that expired but
// have not been swept yet are not counted.
func (s *Store) Count() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	live := 0
	for _, rec := range s.records {
		if now.Sub(rec.LastUsedAt) <= s.ttl {
			live++
		}
	}
	return live
}

// ExpiresIn returns how long a record has before idle expiry, given the
// store's TTL.
func (s *Store) ExpiresIn(rec Record) time.Duration {
	remaining := s.ttl - s.now().Sub(rec.LastUsedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Stop halts the background sweeper. Idempotent.
func (s *Store) Stop() {
	s.stop.Do(func() {
		s.ticker.Stop()
		close(s.done)
	})
}

func (s *Store) sweepLoop() {
	for {
		select {
		case <-s.ticker.C:
			if removed := s.Sweep(); removed > 0 {
				s.logger.Info("swept expired sessions", slog.Int("count", removed))
			}
		case <-s.done:
			return
		}
	}
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
