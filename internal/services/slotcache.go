package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SlotCache memoizes computed free-slot lists per (doctor, date) in Redis.
// It is strictly an accelerator for the read path: the ledger stays
// authoritative, and every booking or cancellation invalidates the affected
// key. All methods are safe on a nil receiver, so the cache can simply be
// left out when REDIS_ADDR is not configured.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewSlotCache connects to Redis at addr. Returns nil (cache disabled) when
// addr is empty or the server is unreachable.
func NewSlotCache(addr string, log zerolog.Logger) *SlotCache {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("redis unreachable, slot cache disabled")
		return nil
	}
	return &SlotCache{client: client, ttl: 5 * time.Minute, log: log}
}

func slotKey(doctorID, date string) string {
	return "slots:" + doctorID + ":" + date
}

// Get returns the cached free slots for (doctorID, date), if present.
func (s *SlotCache) Get(ctx context.Context, doctorID, date string) ([]string, bool) {
	if s == nil {
		return nil, false
	}
	raw, err := s.client.Get(ctx, slotKey(doctorID, date)).Result()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn().Err(err).Msg("slot cache read failed")
		}
		return nil, false
	}
	var slots []string
	if err := json.Unmarshal([]byte(raw), &slots); err != nil {
		return nil, false
	}
	return slots, true
}

// Set stores the free slots for (doctorID, date).
func (s *SlotCache) Set(ctx context.Context, doctorID, date string, slots []string) {
	if s == nil {
		return
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, slotKey(doctorID, date), raw, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Msg("slot cache write failed")
	}
}

// Invalidate drops the cached entry after a booking or cancellation touched
// the doctor's ledger for that date.
func (s *SlotCache) Invalidate(ctx context.Context, doctorID, date string) {
	if s == nil {
		return
	}
	if err := s.client.Del(ctx, slotKey(doctorID, date)).Err(); err != nil {
		s.log.Warn().Err(err).Msg("slot cache invalidation failed")
	}
}
