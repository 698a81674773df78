package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// jobCache mirrors job rows into Redis so status polls can be answered
// without touching SQLite. The database stays authoritative; a nil
// client turns every method into a no-op.
type jobCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newJobCache(ctx context.Context, cfg Config) *jobCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Printf("Redis not available, status reads fall back to SQLite: %v", err)
		return &jobCache{ttl: cfg.SessionTTL}
	}
	log.Println("Redis connected successfully")
	return &jobCache{client: client, ttl: cfg.SessionTTL}
}

func (c *jobCache) Save(ctx context.Context, job *DownloadJob) error {
	if c.client == nil {
		return nil
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("job:%s", job.ID)
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func (c *jobCache) Get(ctx context.Context, id string) (*DownloadJob, error) {
	if c.client == nil {
		return nil, nil
	}
	val, err := c.client.Get(ctx, fmt.Sprintf("job:%s", id)).Result()
	if err != nil {
		return nil, err
	}
	var job DownloadJob
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *jobCache) Delete(ctx context.Context, ids ...string) {
	if c.client == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = fmt.Sprintf("job:%s", id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("Redis delete failed: %v", err)
	}
}

func (c *jobCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
