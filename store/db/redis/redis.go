// Package redis implements store.Driver on top of a Redis-compatible server
// using github.com/redis/go-redis.
package redis

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/hrygo/cachewarden/internal/profile"
)

// Driver is the Redis-backed store client.
type Driver struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(profile *profile.Profile) (*Driver, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         profile.RedisAddr,
		Password:     profile.RedisPassword,
		DB:           profile.RedisDB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", profile.RedisAddr)
	}

	return &Driver{client: client}, nil
}

func (d *Driver) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := d.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (d *Driver) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return d.client.Set(ctx, key, value, ttl).Err()
}

func (d *Driver) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return d.client.SetNX(ctx, key, value, ttl).Result()
}

func (d *Driver) Del(ctx context.Context, keys ...string) (int64, error) {
	return d.client.Del(ctx, keys...).Result()
}

func (d *Driver) Exists(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Driver) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.client.Expire(ctx, key, ttl).Result()
}

func (d *Driver) TTL(ctx context.Context, key string) (time.Duration, error) {
	return d.client.TTL(ctx, key).Result()
}

func (d *Driver) Keys(ctx context.Context, pattern string) ([]string, error) {
	return d.client.Keys(ctx, pattern).Result()
}

func (d *Driver) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	raws, err := d.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	values := make([]*string, len(raws))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		if s, ok := raw.(string); ok {
			values[i] = &s
		}
	}
	return values, nil
}

// MSet writes every entry with its TTL in one pipeline round trip. Plain
// Redis MSET cannot carry expirations, so this issues individual SETs.
func (d *Driver) MSet(ctx context.Context, entries map[string]string, ttl time.Duration) error {
	pipe := d.client.Pipeline()
	for key, value := range entries {
		pipe.Set(ctx, key, value, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (d *Driver) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return d.client.SAdd(ctx, key, args...).Err()
}

func (d *Driver) SMembers(ctx context.Context, key string) ([]string, error) {
	return d.client.SMembers(ctx, key).Result()
}

func (d *Driver) DBSize(ctx context.Context) (int64, error) {
	return d.client.DBSize(ctx).Result()
}

// MemoryUsed reads used_memory from INFO memory.
func (d *Driver) MemoryUsed(ctx context.Context) (int64, error) {
	info, err := d.client.Info(ctx, "memory").Result()
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(info, "\n") {
		if !strings.HasPrefix(line, "used_memory:") {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "used_memory:")), 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, "failed to parse used_memory")
		}
		return n, nil
	}
	return 0, errors.New("used_memory not found in INFO memory")
}

func (d *Driver) IdleTime(ctx context.Context, key string) (time.Duration, error) {
	return d.client.ObjectIdleTime(ctx, key).Result()
}

func (d *Driver) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *Driver) Close() error {
	return d.client.Close()
}
