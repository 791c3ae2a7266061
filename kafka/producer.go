// Package kafka streams committed order events to an analytics topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"marketplace-api/models"

	"github.com/IBM/sarama"
)

type EventProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(brokers []string, topic string) (*EventProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = 5
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_1_0_0

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newEventProducer(producer, topic), nil
}

func newEventProducer(p sarama.SyncProducer, topic string) *EventProducer {
	return &EventProducer{producer: p, topic: topic}
}

// Publish writes event keyed by order id, so events of one order stay in
// one partition and keep their order.
func (p *EventProducer) Publish(ctx context.Context, event models.OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(event.OrderID, 10)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send order event: %w", err)
	}
	return nil
}

func (p *EventProducer) Close() error {
	return p.producer.Close()
}
