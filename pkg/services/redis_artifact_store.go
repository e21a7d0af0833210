package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gtm-agent-api/pkg/models"

	goredis "github.com/redis/go-redis/v9"
)

// putArtifact records the filename's first-write position, then stores the body.
var putArtifact = goredis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
  redis.call('RPUSH', KEYS[2], ARGV[1])
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// RedisArtifactStore keeps one hash per thread (field = filename, value =
// JSON artifact) and a list of filenames in first-write order.
type RedisArtifactStore struct {
	client *goredis.Client
	prefix string
}

// NewRedisArtifactStore connects and pings the server before returning.
func NewRedisArtifactStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisArtifactStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if prefix == "" {
		prefix = "gtm"
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisArtifactStore{client: client, prefix: prefix}, nil
}

func (s *RedisArtifactStore) key(threadID string) string {
	return s.prefix + ":artifacts:" + threadID
}

func (s *RedisArtifactStore) orderKey(threadID string) string {
	return s.prefix + ":artifact-order:" + threadID
}

func (s *RedisArtifactStore) Put(ctx context.Context, artifact models.Artifact) error {
	raw, err := json.Marshal(artifact)
	if err != nil {
		return err
	}
	keys := []string{s.key(artifact.ThreadID), s.orderKey(artifact.ThreadID)}
	return putArtifact.Run(ctx, s.client, keys, artifact.Filename, raw).Err()
}

func (s *RedisArtifactStore) Get(ctx context.Context, threadID, filename string) (models.Artifact, error) {
	raw, err := s.client.HGet(ctx, s.key(threadID), filename).Bytes()
	if errors.Is(err, goredis.Nil) {
		return models.Artifact{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, filename)
	}
	if err != nil {
		return models.Artifact{}, err
	}
	var a models.Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return models.Artifact{}, fmt.Errorf("decode artifact %s: %w", filename, err)
	}
	return a, nil
}

// List returns a thread's artifacts in first-write order. Overwrites keep
// their original position.
func (s *RedisArtifactStore) List(ctx context.Context, threadID string) ([]models.Artifact, error) {
	names, err := s.client.LRange(ctx, s.orderKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Artifact, 0, len(names))
	if len(names) == 0 {
		return out, nil
	}
	values, err := s.client.HMGet(ctx, s.key(threadID), names...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var a models.Artifact
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("decode artifact %s: %w", names[i], err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Clear deletes every artifact hash and order list under the store prefix.
func (s *RedisArtifactStore) Clear(ctx context.Context) error {
	var keys []string
	for _, pattern := range []string{s.prefix + ":artifacts:*", s.prefix + ":artifact-order:*"} {
		iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *RedisArtifactStore) Close() error {
	return s.client.Close()
}
