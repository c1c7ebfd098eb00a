package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"
)

// Redis keeps snapshots under fablecore:<game>:save:<slot> and tracks
// slot names in the set fablecore:<game>:saves.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

var _ Store = (*Redis)(nil)

// NewRedis connects to redisURL (redis://host:port/db) and pings it.
func NewRedis(ctx context.Context, redisURL string, logger *slog.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return newRedisClient(ctx, redis.NewClient(opt), logger)
}

func newRedisClient(ctx context.Context, rdb *redis.Client, logger *slog.Logger) (*Redis, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger = orDefault(logger)
	logger.Info("connected to redis save store", "addr", rdb.Options().Addr)
	return &Redis{client: rdb, logger: logger}, nil
}

func saveKey(game, slot string) string { return "fablecore:" + game + ":save:" + slot }
func indexKey(game string) string      { return "fablecore:" + game + ":saves" }

func (r *Redis) Save(ctx context.Context, game, slot string, data []byte) error {
	g, err := gameKey(game)
	if err != nil {
		return err
	}
	s := slotKey(slot)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, saveKey(g, s), data, 0)
		pipe.SAdd(ctx, indexKey(g), s)
		return nil
	})
	if err != nil {
		r.logger.Error("redis save failed", "game", g, "slot", s, "error", err)
		return fmt.Errorf("redis save failed: %w", err)
	}
	r.logger.Debug("snapshot saved", "store", "redis", "game", g, "slot", s, "bytes", len(data))
	return nil
}

func (r *Redis) Load(ctx context.Context, game, slot string) ([]byte, error) {
	g, err := gameKey(game)
	if err != nil {
		return nil, err
	}
	data, err := r.client.Get(ctx, saveKey(g, slotKey(slot))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis load failed: %w", err)
	}
	return data, nil
}

func (r *Redis) List(ctx context.Context, game string) ([]string, error) {
	g, err := gameKey(game)
	if err != nil {
		return nil, err
	}
	slots, err := r.client.SMembers(ctx, indexKey(g)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list failed: %w", err)
	}
	sort.Strings(slots)
	return slots, nil
}

func (r *Redis) Delete(ctx context.Context, game, slot string) error {
	g, err := gameKey(game)
	if err != nil {
		return err
	}
	s := slotKey(slot)
	var del *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, saveKey(g, s))
		pipe.SRem(ctx, indexKey(g), s)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("failed to close redis connection", "error", err)
		return err
	}
	return nil
}
