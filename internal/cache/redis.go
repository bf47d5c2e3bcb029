package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"procurement/internal/config"
	"procurement/internal/model"
)

const DefaultRedisKey = "approvals:stats"

// Redis shares the stats summary between API instances. The generation
// lives under key + ":gen" and is watched by Set.
type Redis struct {
	cli    *redis.Client
	key    string
	genKey string
	ttl    time.Duration
}

// NewRedisClient builds a client from config. It does not dial.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

func NewRedis(cli *redis.Client, key string, ttl time.Duration) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{cli: cli, key: key, genKey: key + ":gen", ttl: ttl}
}

func (r *Redis) Get(ctx context.Context) (model.ApprovalStats, bool, error) {
	var stats model.ApprovalStats

	b, err := r.cli.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return stats, false, nil
	}
	if err != nil {
		return stats, false, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	if err := json.Unmarshal(b, &stats); err != nil {
		return stats, false, fmt.Errorf("decode cached stats: %w", err)
	}
	return stats, true, nil
}

func (r *Redis) Generation(ctx context.Context) (int64, error) {
	gen, err := r.cli.Get(ctx, r.genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", r.genKey, err)
	}
	return gen, nil
}

// Set stores stats only while the generation still equals gen.
func (r *Redis) Set(ctx context.Context, gen int64, stats model.ApprovalStats) error {
	if r.ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	err = r.cli.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, r.genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, r.key, b, r.ttl)
			return nil
		})
		return err
	}, r.genKey)
	if errors.Is(err, redis.TxFailedErr) {
		// invalidated while writing
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context) error {
	_, err := r.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, r.genKey)
		p.Del(ctx, r.key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Close() error { return r.cli.Close() }
