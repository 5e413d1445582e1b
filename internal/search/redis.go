package search

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swen/dms/pkg/config"
)

// RedisIndex implements Index on Redis: one hash per record plus a member
// set for scanning. Queries pull candidates from the set and score them
// client-side.
type RedisIndex struct {
	rdb *redis.Client
}

// NewRedisIndex creates a Redis-backed index and verifies the connection
// with a PING.
func NewRedisIndex(cfg config.RedisConfig) (*RedisIndex, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisIndex{rdb: rdb}, nil
}

func recordKey(id string) string {
	return fmt.Sprintf("%s:doc:%s", IndexName, id)
}

func idSetKey() string {
	return IndexName + ":ids"
}

// Upsert writes the record hash and registers its ID. Re-upserting the same
// ID replaces the previous record, so redelivered events cannot duplicate
// entries.
func (i *RedisIndex) Upsert(ctx context.Context, rec Record) error {
	pipe := i.rdb.TxPipeline()
	pipe.HSet(ctx, recordKey(rec.ID), "title", rec.Title, "content", rec.Content)
	pipe.SAdd(ctx, idSetKey(), rec.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upserting record %s: %w", rec.ID, err)
	}
	return nil
}

// QueryFuzzy scans all records and returns those whose content matches the
// query tokens.
func (i *RedisIndex) QueryFuzzy(ctx context.Context, query string) ([]Record, error) {
	ids, err := i.rdb.SMembers(ctx, idSetKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("listing record ids: %w", err)
	}
	var results []Record
	for _, id := range ids {
		fields, err := i.rdb.HGetAll(ctx, recordKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("reading record %s: %w", id, err)
		}
		if len(fields) == 0 {
			continue
		}
		rec := Record{ID: id, Title: fields["title"], Content: fields["content"]}
		if Matches(rec.Content, query) {
			results = append(results, rec)
		}
	}
	return results, nil
}

// Delete removes the record hash and its set member.
func (i *RedisIndex) Delete(ctx context.Context, id string) error {
	pipe := i.rdb.TxPipeline()
	pipe.Del(ctx, recordKey(id))
	pipe.SRem(ctx, idSetKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting record %s: %w", id, err)
	}
	return nil
}

// Ping verifies the Redis connection.
func (i *RedisIndex) Ping(ctx context.Context) error {
	return i.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis connection.
func (i *RedisIndex) Close() error {
	return i.rdb.Close()
}
