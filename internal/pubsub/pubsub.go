// Package pubsub implements the distributed pub/sub bus (C11): a thin
// wrapper over Redis pub/sub for channel broadcasts, plus an ephemeral
// SCAN-enumerable typing-indicator namespace. Delivery is at-most-once;
// publishers must not assume delivery across a partition, and the
// WebSocket gateway does not replay missed events on reconnect.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	broadcastPrefix = "ws:broadcast:"
	typingPrefix    = "ws:typing:"
	typingTTL       = 5 * time.Second
)

// Envelope is the JSON frame published on a broadcast channel.
type Envelope struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

// Bus wraps a redis.UniversalClient for both publish and the blocking
// Subscribe used by the gateway's per-replica fan-out.
type Bus struct {
	Redis redis.UniversalClient
}

func New(rdb redis.UniversalClient) *Bus {
	return &Bus{Redis: rdb}
}

// Publish broadcasts data on channel, wrapped in an Envelope tagged with
// eventType.
func (b *Bus) Publish(ctx context.Context, channel, eventType string, data any) error {
	envelope := Envelope{Type: eventType, Channel: channel, Data: data}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal pubsub envelope: %w", err)
	}
	if err := b.Redis.Publish(ctx, broadcastPrefix+channel, encoded).Err(); err != nil {
		return fmt.Errorf("publish to channel %s: %w", channel, err)
	}
	return nil
}

// Subscription is the Redis subscription Subscribe opens on one channel;
// callers read Envelopes() until Close.
type Subscription struct {
	ps *redis.PubSub
}

func (b *Bus) Subscribe(ctx context.Context, channel string) *Subscription {
	return &Subscription{ps: b.Redis.Subscribe(ctx, broadcastPrefix+channel)}
}

// Envelopes decodes incoming messages lazily; a decode failure drops the
// message rather than blocking the subscriber loop.
func (s *Subscription) Envelopes() <-chan Envelope {
	out := make(chan Envelope)
	go func() {
		defer close(out)
		for msg := range s.ps.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			out <- env
		}
	}()
	return out
}

func (s *Subscription) Close() error {
	return s.ps.Close()
}

// SetTyping marks userID as typing on channel for typingTTL; a fresh
// typing:start call simply resets the TTL.
func (b *Bus) SetTyping(ctx context.Context, channel string, userID int) error {
	key := typingKey(channel, userID)
	if err := b.Redis.Set(ctx, key, "1", typingTTL).Err(); err != nil {
		return fmt.Errorf("set typing indicator: %w", err)
	}
	return nil
}

// ClearTyping removes userID's typing indicator on channel immediately.
func (b *Bus) ClearTyping(ctx context.Context, channel string, userID int) error {
	if err := b.Redis.Del(ctx, typingKey(channel, userID)).Err(); err != nil {
		return fmt.Errorf("clear typing indicator: %w", err)
	}
	return nil
}

// TypingUsers SCANs the typing namespace for channel and returns every user
// id whose ephemeral key has not yet expired.
func (b *Bus) TypingUsers(ctx context.Context, channel string) ([]int, error) {
	pattern := fmt.Sprintf("%s%s:*", typingPrefix, channel)

	var users []int
	var cursor uint64
	for {
		keys, next, err := b.Redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan typing users: %w", err)
		}
		for _, key := range keys {
			idStr := key[strings.LastIndex(key, ":")+1:]
			if id, err := strconv.Atoi(idStr); err == nil {
				users = append(users, id)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return users, nil
}

func typingKey(channel string, userID int) string {
	return fmt.Sprintf("%s%s:%d", typingPrefix, channel, userID)
}
