package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"direct_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss redis key 不存在
var ErrCacheMiss = errors.New("redis: key not found")

// RedisRepository 定义接口
type RedisRepository[T any] interface {
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	Get(ctx context.Context, key string) (T, error)
}

// redisRepository 实现 RedisRepository
type redisRepository[T any] struct {
	client *redis.Client
}

// NewRedisClient init redis connection, single node when Addr is set, otherwise sentinel
func NewRedisClient(c RedisConnection) (*redis.Client, error) {
	var rdb *redis.Client
	if c.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: c.Addr,
			DB:   c.DB,
		})
	} else {
		rdb = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    c.MasterName,    // 哨兵主节点名称
			SentinelAddrs: c.SentinelAddrs, // 哨兵地址列表
			DB:            c.DB,            // Redis 数据库编号
		})
	}

	// 测试连接
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}

// NewRedisRepository init Redis repository (Set , Get)
func NewRedisRepository[T any](client *redis.Client) RedisRepository[T] {
	return &redisRepository[T]{client: client}
}

func (r *redisRepository[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisRepository[T]) Get(ctx context.Context, key string) (T, error) {
	var zeroValue T
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return zeroValue, ErrCacheMiss
	} else if err != nil {
		return zeroValue, fmt.Errorf("failed to get %s: %w", key, err)
	}

	var result T
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		logger.Log.Error("redis get", zap.String("key", key), zap.Error(err))
		return zeroValue, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	return result, nil
}
