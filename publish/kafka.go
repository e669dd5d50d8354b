package publish

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jwolfsohn/Atlas-Sentinel/metrics"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

const DefaultTopic = "risk.scored"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 250 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// KafkaPublisher writes a batch keyed by route id so each route stays on one partition.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{writer: NewWriter(brokers, topic)}
}

func (p *KafkaPublisher) Publish(ctx context.Context, assessments []models.RiskAssessment) (int, error) {
	msgs := make([]kafka.Message, 0, len(assessments))
	for _, a := range assessments {
		body, err := encode(a)
		if err != nil {
			log.Printf("json marshal failed for route=%s: %v", a.RouteID, err)
			metrics.PublishFailures.Inc()
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(a.RouteID),
			Value: body,
			Time:  time.Now().UTC(),
		})
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		metrics.PublishFailures.Add(float64(len(msgs)))
		return 0, fmt.Errorf("kafka write: %w", err)
	}
	metrics.AssessmentsPublished.Add(float64(len(msgs)))
	return len(msgs), nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
