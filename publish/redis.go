package publish

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/jwolfsohn/Atlas-Sentinel/metrics"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

const DefaultChannel = "atlas:risk"

type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher sends one pub/sub message per assessment.
type RedisPublisher struct {
	client  redisPublishClient
	channel string
}

func NewRedisPublisher(client redisPublishClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, assessments []models.RiskAssessment) (int, error) {
	published := 0
	var lastErr error
	for _, a := range assessments {
		data, err := encode(a)
		if err != nil {
			log.Printf("json marshal failed for route=%s: %v", a.RouteID, err)
			metrics.PublishFailures.Inc()
			lastErr = err
			continue
		}
		if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
			log.Printf("redis publish failed for route=%s: %v", a.RouteID, err)
			metrics.PublishFailures.Inc()
			lastErr = err
			continue
		}
		metrics.AssessmentsPublished.Inc()
		published++
	}
	if lastErr != nil {
		return published, fmt.Errorf("publish to %s: %w", p.channel, lastErr)
	}
	return published, nil
}

// Close is a no-op; the redis client is owned by the caller.
func (p *RedisPublisher) Close() error { return nil }
