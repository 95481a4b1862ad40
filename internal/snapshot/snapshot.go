// Package snapshot mirrors the latest aggregated book and ticker into Redis so other
// processes can read them without a feed connection of their own.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tradedash/internal/depth"
	"tradedash/internal/market"
)

type Publisher interface {
	PublishBook(ctx context.Context, b depth.Book) error
	PublishTicker(ctx context.Context, symbol string, t market.Ticker) error
	Close() error
}

// Noop is used when no redis_url is configured.
type Noop struct{}

func (Noop) PublishBook(context.Context, depth.Book) error { return nil }
func (Noop) PublishTicker(context.Context, string, market.Ticker) error { return nil }
func (Noop) Close() error { return nil }

func BookKey(symbol string) string { return "book:" + strings.ToUpper(symbol) }
func TickerKey(symbol string) string { return "ticker:" + strings.ToUpper(symbol) }

type RedisPublisher struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPublisher parses a redis:// URL, overrides the password when one is given and
// pings the server before returning.
func NewRedisPublisher(ctx context.Context, url, password string, ttl time.Duration) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisPublisherWithClient(client, ttl), nil
}

func NewRedisPublisherWithClient(client *redis.Client, ttl time.Duration) *RedisPublisher {
	return &RedisPublisher{client: client, ttl: ttl}
}

func (p *RedisPublisher) PublishBook(ctx context.Context, b depth.Book) error {
	return p.set(ctx, BookKey(b.Symbol), b)
}

func (p *RedisPublisher) PublishTicker(ctx context.Context, symbol string, t market.Ticker) error {
	return p.set(ctx, TickerKey(symbol), t)
}

func (p *RedisPublisher) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := p.client.Set(ctx, key, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error { return p.client.Close() }
