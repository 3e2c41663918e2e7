package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

type ProducerConfig struct {
	Brokers      []string
	ClientID     string
	RetryMax     int
	RequiredAcks int
}

func NewProducer(cfg ProducerConfig, l logger.Logger) (sarama.SyncProducer, error) {
	saramaCfg := sarama.NewConfig()
	if cfg.ClientID != "" {
		saramaCfg.ClientID = cfg.ClientID
	}
	saramaCfg.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	saramaCfg.Producer.Retry.Max = cfg.RetryMax
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Compression = sarama.CompressionSnappy
	// Keyed by room id, so every event of a room lands on one partition.
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner

	prod, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	l.Infof(context.Background(), "Kafka producer %s connected to brokers %v", saramaCfg.ClientID, cfg.Brokers)

	return prod, nil
}
