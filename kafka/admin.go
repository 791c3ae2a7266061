package kafka

import (
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

const retentionWeek = "604800000"

// EnsureTopicExists creates topic on the cluster if it is missing.
func EnsureTopicExists(brokers []string, topic string) error {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0

	admin, err := sarama.NewClusterAdmin(brokers, cfg)
	if err != nil {
		return fmt.Errorf("create kafka admin: %w", err)
	}
	defer func() {
		if err := admin.Close(); err != nil {
			slog.Warn("closing kafka admin", slog.String("error", err.Error()))
		}
	}()

	topics, err := admin.ListTopics()
	if err != nil {
		return fmt.Errorf("list kafka topics: %w", err)
	}
	if _, exists := topics[topic]; exists {
		return nil
	}

	retention := retentionWeek
	if err := admin.CreateTopic(topic, &sarama.TopicDetail{
		NumPartitions:     3,
		ReplicationFactor: 1,
		ConfigEntries:     map[string]*string{"retention.ms": &retention},
	}, false); err != nil {
		return fmt.Errorf("create kafka topic %s: %w", topic, err)
	}
	slog.Info("kafka topic created", slog.String("topic", topic))
	return nil
}
