// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedup tracks which URLs have already been admitted into a session.
// Entries live in Redis under two keyspaces: a session-scoped key that gates
// admission and a global key kept for cross-session statistics. Both expire
// after a TTL, so the same URL may be collected again once its window lapses.
//
// The store fails open: when Redis cannot be reached every URL is treated as
// new, so collection continues with duplicates rather than stopping.
package dedup

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an admitted URL stays "seen".
const DefaultTTL = time.Hour

const (
	sessionPrefix = "session:"
	globalPrefix  = "global:url:"
	scanBatch     = 200
)

// Payload is stored with each entry and returned when a duplicate is found.
type Payload struct {
	URL         string    `json:"url"`
	SessionID   int64     `json:"session_id"`
	Title       string    `json:"title,omitempty"`
	Engine      string    `json:"engine,omitempty"`
	Language    string    `json:"language,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Normalize lower-cases a URL and strips its scheme and trailing slash.
func Normalize(rawURL string) string {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	return strings.TrimRight(u, "/")
}

// Hash returns the content address of a URL's normalized form.
func Hash(rawURL string) string {
	sum := md5.Sum([]byte(Normalize(rawURL)))
	return hex.EncodeToString(sum[:])
}

// SessionKey is the admission key for a URL hash within one session.
func SessionKey(sessionID int64, hash string) string {
	return fmt.Sprintf("%s%d:url:%s", sessionPrefix, sessionID, hash)
}

// GlobalKey is the cross-session key for a URL hash.
func GlobalKey(hash string) string {
	return globalPrefix + hash
}

// Store is a Redis-backed deduplication store. It is safe for concurrent use.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store over client.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		ttl:    DefaultTTL,
		logger: slog.Default().With("component", "dedup"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured entry lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Admit atomically claims rawURL for sessionID. It returns true when the URL
// was not yet seen in the session, and false together with the stored payload
// when it was. The claim and the check are a single SET NX, so concurrent
// callers for the same URL and session see exactly one admission.
//
// The global key is written best-effort after a successful claim.
func (s *Store) Admit(ctx context.Context, rawURL string, sessionID int64, p Payload) (bool, *Payload) {
	hash := Hash(rawURL)
	p = s.fill(p, rawURL, sessionID)
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Warn("encoding payload", "url", rawURL, "err", err)
		return true, nil
	}

	ok, err := s.client.SetNX(ctx, SessionKey(sessionID, hash), data, s.ttl).Result()
	if err != nil {
		s.logger.Warn("dedup store unavailable, admitting", "url", rawURL, "err", err)
		return true, nil
	}
	if !ok {
		existing, _ := s.get(ctx, SessionKey(sessionID, hash))
		return false, existing
	}

	if err := s.client.SetNX(ctx, GlobalKey(hash), data, s.ttl).Err(); err != nil {
		s.logger.Debug("writing global key", "url", rawURL, "err", err)
	}
	return true, nil
}

// CheckDuplicate reports whether rawURL was already processed in sessionID
// and returns the stored payload if so. Store errors report "not a duplicate".
func (s *Store) CheckDuplicate(ctx context.Context, rawURL string, sessionID int64) (*Payload, bool) {
	p, err := s.get(ctx, SessionKey(sessionID, Hash(rawURL)))
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("dedup check failed, treating as new", "url", rawURL, "err", err)
		}
		return nil, false
	}
	return p, true
}

// SeenGlobally reports whether rawURL was processed by any session within the TTL.
func (s *Store) SeenGlobally(ctx context.Context, rawURL string) (*Payload, bool) {
	p, err := s.get(ctx, GlobalKey(Hash(rawURL)))
	if err != nil {
		return nil, false
	}
	return p, true
}

// MarkProcessed records rawURL for sessionID under both keyspaces with the
// given TTL (the store default when ttl <= 0). Existing entries are never
// overwritten; the returned bool is false when the session key already existed.
func (s *Store) MarkProcessed(ctx context.Context, rawURL string, sessionID int64, p Payload, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	hash := Hash(rawURL)
	data, err := json.Marshal(s.fill(p, rawURL, sessionID))
	if err != nil {
		return false, fmt.Errorf("encoding payload: %w", err)
	}

	pipe := s.client.TxPipeline()
	sessionSet := pipe.SetNX(ctx, SessionKey(sessionID, hash), data, ttl)
	pipe.SetNX(ctx, GlobalKey(hash), data, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("marking %s processed: %w", rawURL, err)
	}
	return sessionSet.Val(), nil
}

// CleanupSession deletes every session-scoped key of sessionID and returns
// how many were removed. Global keys are left to expire.
func (s *Store) CleanupSession(ctx context.Context, sessionID int64) (int, error) {
	keys, err := s.scan(ctx, fmt.Sprintf("%s%d:url:*", sessionPrefix, sessionID))
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("deleting session keys: %w", err)
	}
	s.logger.Info("cleaned up session keys", "session", sessionID, "keys", n)
	return int(n), nil
}

// SessionStats returns the number of URLs currently held for sessionID.
func (s *Store) SessionStats(ctx context.Context, sessionID int64) (int, error) {
	keys, err := s.scan(ctx, fmt.Sprintf("%s%d:url:*", sessionPrefix, sessionID))
	return len(keys), err
}

// DuplicateStats returns the number of distinct URLs tracked across sessions.
func (s *Store) DuplicateStats(ctx context.Context) (int, error) {
	keys, err := s.scan(ctx, globalPrefix+"*")
	return len(keys), err
}

func (s *Store) fill(p Payload, rawURL string, sessionID int64) Payload {
	if p.URL == "" {
		p.URL = rawURL
	}
	p.SessionID = sessionID
	if p.ProcessedAt.IsZero() {
		p.ProcessedAt = time.Now().UTC()
	}
	return p
}

func (s *Store) get(ctx context.Context, key string) (*Payload, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return &p, nil
}

func (s *Store) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
