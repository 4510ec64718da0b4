package utils

import (
	"context"
	"sync"
	"time"
)

// ttlStore is a set of short-lived keys kept in Redis when available and in
// process memory otherwise.
type ttlStore struct {
	prefix string

	mu  sync.Mutex
	mem map[string]time.Time
}

func newTTLStore(prefix string) *ttlStore {
	return &ttlStore{prefix: prefix, mem: map[string]time.Time{}}
}

func (s *ttlStore) put(key string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, s.prefix+key, "1", ttl).Err(); err == nil {
			return
		}
	}
	now := time.Now()
	s.mu.Lock()
	for k, exp := range s.mem {
		if now.After(exp) {
			delete(s.mem, k)
		}
	}
	s.mem[key] = now.Add(ttl)
	s.mu.Unlock()
}

// has reports whether key is present; take additionally removes it.
func (s *ttlStore) has(key string, take bool) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if take {
			if v, err := rc.GetDel(ctx, s.prefix+key).Result(); err == nil {
				return v != ""
			}
		} else if n, err := rc.Exists(ctx, s.prefix+key).Result(); err == nil && n > 0 {
			return true
		}
		// fall through: the key may have been written while Redis was down
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.mem[key]
	if !ok {
		return false
	}
	if take || time.Now().After(exp) {
		delete(s.mem, key)
	}
	return time.Now().Before(exp)
}

var (
	oauthStates   = newTTLStore("oauth:state:")
	revokedTokens = newTTLStore("jwt:blacklist:")
)

// SaveState stores an OAuth state token with TTL to mitigate CSRF.
func SaveState(state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	oauthStates.put(state, ttl)
}

// ConsumeState validates and removes a state token. States are single use.
func ConsumeState(state string) bool {
	return state != "" && oauthStates.has(state, true)
}

// BlacklistToken revokes a session token until its natural expiry.
func BlacklistToken(token string, expiresAt time.Time) {
	revokedTokens.put(token, time.Until(expiresAt))
}

// IsTokenBlacklisted checks if a token was revoked before natural expiration.
func IsTokenBlacklisted(token string) bool {
	return revokedTokens.has(token, false)
}
