// Package cache provides short-lived keyed locks used to reject identical
// submissions that arrive while the first one is still being processed.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const submissionKeyPrefix = "nutriwatch:submit:"

// Locker acquires and releases expiring keys. Acquire reports false when the
// key is already held; on success it returns a token that Release must
// present, so a holder whose key expired cannot release a newer holder's key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// SubmissionKey derives the lock key for a requester submitting a food name.
// Names that differ only by case or surrounding spaces share a key.
func SubmissionKey(requesterID, name string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(name))))
	return submissionKeyPrefix + requesterID + ":" + hex.EncodeToString(sum[:])
}

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds keys in Redis with SET NX.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a Locker backed by the given client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire sets key to a fresh token if it does not exist yet.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// Release deletes key if it still holds token.
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
}

type memoryEntry struct {
	token   string
	expires time.Time
}

// MemoryLocker holds keys in process memory. It is used when Redis is not
// configured and only guards a single instance.
type MemoryLocker struct {
	mu   sync.Mutex
	keys map[string]memoryEntry
	now  func() time.Time
}

// NewMemoryLocker creates an empty in-process Locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{keys: make(map[string]memoryEntry), now: time.Now}
}

// Acquire stores key until ttl elapses unless a live entry already exists.
func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.keys[key]; ok && now.Before(e.expires) {
		return "", false, nil
	}

	// prune expired entries
	for k, e := range l.keys {
		if !now.Before(e.expires) {
			delete(l.keys, k)
		}
	}

	token := uuid.NewString()
	l.keys[key] = memoryEntry{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

// Release removes key if it still holds token.
func (l *MemoryLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.keys[key]; ok && e.token == token {
		delete(l.keys, key)
	}
	return nil
}
