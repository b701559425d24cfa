package auth

import (
	"sync"
	"time"
)

type revocationEntry struct {
	ExpiresAt time.Time
	UserID    string
}

// TokenRevocationStore remembers revoked token IDs until the tokens would
// have expired anyway. It also records per-user cutoffs: every token issued
// to that user at or before the cutoff is treated as revoked.
type TokenRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]revocationEntry // JTI -> entry
	cutoffs map[string]time.Time       // userID -> tokens issued before this are revoked
	maxTTL  time.Duration
	done    chan struct{}
}

// NewTokenRevocationStore starts a background cleanup every five minutes.
// maxTTL bounds how long a user cutoff has to be kept.
func NewTokenRevocationStore(maxTTL time.Duration) *TokenRevocationStore {
	s := &TokenRevocationStore{
		entries: make(map[string]revocationEntry),
		cutoffs: make(map[string]time.Time),
		maxTTL:  maxTTL,
		done:    make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Revoke revokes one token.
func (s *TokenRevocationStore) Revoke(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	expires := time.Now().Add(s.maxTTL)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[claims.ID] = revocationEntry{ExpiresAt: expires, UserID: claims.Subject}
}

// RevokeAllForUser revokes every token issued to userID up to now and
// returns how many individually revoked tokens the user already had.
func (s *TokenRevocationStore) RevokeAllForUser(userID string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cutoffs[userID] = now
	count := 0
	for _, e := range s.entries {
		if e.UserID == userID {
			count++
		}
	}
	return count
}

func (s *TokenRevocationStore) IsRevoked(claims *Claims) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.entries[claims.ID]; ok {
		return true
	}
	cutoff, ok := s.cutoffs[claims.Subject]
	if !ok {
		return false
	}
	return claims.IssuedAt == nil || !claims.IssuedAt.Time.After(cutoff)
}

func (s *TokenRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

type RevocationInfo struct {
	JTI       string    `json:"jti"`
	UserID    string    `json:"user_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *TokenRevocationStore) Entries() []RevocationInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]RevocationInfo, 0, len(s.entries))
	for jti, entry := range s.entries {
		result = append(result, RevocationInfo{JTI: jti, UserID: entry.UserID, ExpiresAt: entry.ExpiresAt})
	}
	return result
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *TokenRevocationStore) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *TokenRevocationStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.cleanup(now)
		}
	}
}

func (s *TokenRevocationStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, jti)
		}
	}
	for userID, cutoff := range s.cutoffs {
		if now.After(cutoff.Add(s.maxTTL)) {
			delete(s.cutoffs, userID)
		}
	}
}
