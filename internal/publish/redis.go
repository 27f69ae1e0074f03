package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/i474232898/aqi-collector/internal/airquality"
)

// LatestKey holds the most recent reading; it expires with the freshness window.
const LatestKey = "aqi:latest"

// Config holds Redis connection configuration.
type Config struct {
	URL     string
	Channel string
	// TTL is applied to LatestKey so other processes never see a stale reading.
	TTL time.Duration
}

// RedisPublisher mirrors accepted readings to Redis for other processes.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	ttl     time.Duration
}

// NewRedisPublisher creates a publisher and checks the connection.
func NewRedisPublisher(ctx context.Context, cfg Config) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("redis TTL must be positive, got %s", cfg.TTL)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPublisher{rdb: rdb, channel: cfg.Channel, ttl: cfg.TTL}, nil
}

func (p *RedisPublisher) Name() string {
	return "redis"
}

// Publish stores the reading under LatestKey and announces it on the channel.
func (p *RedisPublisher) Publish(ctx context.Context, r airquality.Reading) error {
	payload, err := encodeReading(r)
	if err != nil {
		return err
	}

	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, LatestKey, payload, p.ttl)
		if p.channel != "" {
			pipe.Publish(ctx, p.channel, payload)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

// message is the wire format shared with consumers.
type message struct {
	AQIValue      int       `json:"aqi_value"`
	PrimaryFactor string    `json:"primary_factor"`
	Category      string    `json:"aqi_category"`
	CapturedAt    time.Time `json:"captured_at"`
}

func encodeReading(r airquality.Reading) ([]byte, error) {
	b, err := json.Marshal(message{
		AQIValue:      r.Value,
		PrimaryFactor: r.PrimaryFactor,
		Category:      string(r.Category),
		CapturedAt:    r.CapturedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode reading: %w", err)
	}
	return b, nil
}
