package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore records processed event IDs. Implementations must be safe
// for concurrent use.
type IdempotencyStore interface {
	// Contains reports whether eventID has already been processed.
	Contains(ctx context.Context, eventID string) (bool, error)
	// Add marks eventID as processed.
	Add(ctx context.Context, eventID string) error
}

// MemoryIdempotencyStore keeps IDs in process memory with a TTL. Used when
// Redis is not configured.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
}

// NewMemoryIdempotencyStore creates a store whose entries expire after ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]time.Time), ttl: ttl}
}

// Contains reports whether eventID was added within the TTL.
func (s *MemoryIdempotencyStore) Contains(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.entries[eventID]
	if !ok {
		return false, nil
	}
	if time.Since(ts) > s.ttl {
		delete(s.entries, eventID)
		return false, nil
	}
	return true, nil
}

// Add marks eventID as processed now.
func (s *MemoryIdempotencyStore) Add(_ context.Context, eventID string) error {
	s.mu.Lock()
	s.entries[eventID] = time.Now()
	s.mu.Unlock()
	return nil
}

// RedisIdempotencyStore keeps processed IDs as expiring Redis keys so every
// replica shares the same view.
type RedisIdempotencyStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a store writing keys "<prefix>:<eventID>".
func NewRedisIdempotencyStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisIdempotencyStore) key(eventID string) string {
	return s.prefix + ":" + eventID
}

// Contains reports whether the key for eventID exists.
func (s *RedisIdempotencyStore) Contains(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Add sets the key for eventID with the store TTL.
func (s *RedisIdempotencyStore) Add(ctx context.Context, eventID string) error {
	return s.client.Set(ctx, s.key(eventID), 1, s.ttl).Err()
}

// IdempotentHandler skips events whose ID is already in store and records the
// ID after inner succeeds. Store failures are logged and the event processed.
func IdempotentHandler(store IdempotencyStore, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		if event.EventID == "" {
			return inner(ctx, event)
		}

		seen, err := store.Contains(ctx, event.EventID)
		if err != nil {
			logger.WarnContext(ctx, "idempotency store lookup failed, processing anyway",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
		} else if seen {
			consumerMessagesDuplicate.WithLabelValues(event.EventType).Inc()
			logger.DebugContext(ctx, "skipping duplicate event",
				slog.String("event_id", event.EventID),
				slog.String("event_type", event.EventType),
			)
			return nil
		}

		if err := inner(ctx, event); err != nil {
			return err
		}

		if err := store.Add(ctx, event.EventID); err != nil {
			logger.WarnContext(ctx, "failed to record event ID",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
}
