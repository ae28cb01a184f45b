package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

const aggregateKeyPrefix = "aggregate"

type aggregateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAggregateCache создает Redis-кеш агрегатов оценок
// Пара (mean, count) сериализуется в один JSON документ и пишется одним SET,
// поэтому читатель никогда не увидит count от новой записи с mean от старой
func NewAggregateCache(client *redis.Client, ttl time.Duration) AggregateCache {
	return &aggregateCache{client: client, ttl: ttl}
}

func aggregateKey(bookID string) string {
	return fmt.Sprintf("%s:%s", aggregateKeyPrefix, bookID)
}

// Get получает агрегат из кеша; (nil, nil) при промахе
func (c *aggregateCache) Get(ctx context.Context, bookID string) (*entity.RatingAggregate, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpGet)
	defer timer.ObserveDuration()

	data, err := c.client.Get(ctx, aggregateKey(bookID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		metrics.RecordRedisError(serviceName, metrics.RedisOpGet)
		return nil, fmt.Errorf("failed to get aggregate from cache: %w", err)
	}

	var aggregate entity.RatingAggregate
	if err := json.Unmarshal(data, &aggregate); err != nil {
		return nil, fmt.Errorf("failed to unmarshal aggregate: %w", err)
	}

	return &aggregate, nil
}

// Set записывает агрегат в кеш
func (c *aggregateCache) Set(ctx context.Context, aggregate *entity.RatingAggregate) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpSet)
	defer timer.ObserveDuration()

	data, err := json.Marshal(aggregate)
	if err != nil {
		return fmt.Errorf("failed to marshal aggregate: %w", err)
	}

	if err := c.client.Set(ctx, aggregateKey(aggregate.BookID), data, c.ttl).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpSet)
		return fmt.Errorf("failed to set aggregate in cache: %w", err)
	}

	return nil
}

// Delete убирает агрегат из кеша; следующий читатель пересчитает его заново
func (c *aggregateCache) Delete(ctx context.Context, bookID string) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpDel)
	defer timer.ObserveDuration()

	if err := c.client.Del(ctx, aggregateKey(bookID)).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpDel)
		return fmt.Errorf("failed to delete aggregate from cache: %w", err)
	}
	return nil
}
