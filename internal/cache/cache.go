// Package cache implements the tag-indexed cache layer (C5): a Redis-backed
// key/value cache where every write also records the key under each tag it
// was stored with, so InvalidateTag can sweep every entry that tag touched.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const tagKeyPrefix = "tag:"

// Cache wraps a redis.Cmdable so it works against both a real client and,
// in tests, a miniredis-backed one.
type Cache struct {
	rdb   redis.Cmdable
	group singleflight.Group
}

func New(rdb redis.Cmdable) *Cache {
	return &Cache{rdb: rdb}
}

// Get fetches key and unmarshals it into dest; it returns (false, nil) on a
// clean miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("cache unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key with ttl, and records key under every tag so
// a later InvalidateTag(tag) can find it.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration, tags ...string) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}

	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, encoded, ttl)
		for _, tag := range tags {
			pipe.SAdd(ctx, tagKeyPrefix+tag, key)
			if ttl > 0 {
				pipe.Expire(ctx, tagKeyPrefix+tag, ttl+time.Minute)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes key directly.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// InvalidateTag deletes every key ever stored under tag, then the tag's own
// membership set.
func (c *Cache) InvalidateTag(ctx context.Context, tag string) error {
	tagKey := tagKeyPrefix + tag
	members, err := c.rdb.SMembers(ctx, tagKey).Result()
	if err != nil {
		return fmt.Errorf("cache invalidate tag %s: %w", tag, err)
	}
	if len(members) == 0 {
		return nil
	}

	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, members...)
		pipe.Del(ctx, tagKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate tag %s: %w", tag, err)
	}
	return nil
}

// GetOrBuild returns the cached value for key, or calls build exactly once
// across concurrent callers (build-once guarantee), stores the result, and
// returns it.
func (c *Cache) GetOrBuild(ctx context.Context, key string, ttl time.Duration, dest any, build func() (any, []string, error)) error {
	if hit, err := c.Get(ctx, key, dest); err != nil {
		return err
	} else if hit {
		return nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, tags, err := build()
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, value, ttl, tags...); err != nil {
			return nil, err
		}
		return value, nil
	})
	if err != nil {
		return err
	}

	// Round-trip through JSON so dest is populated the same way a real
	// cache hit would populate it, regardless of which goroutine won the
	// singleflight race.
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode built value for %s: %w", key, err)
	}
	return json.Unmarshal(encoded, dest)
}

// EntityTagger is implemented by repositories that know which cache tags
// one of their entities participates in (e.g. a Session contributes
// session:{id}, session_sid:{sid}, user_sessions:{user_id}, session:list).
type EntityTagger interface {
	EntityTags() []string
}
