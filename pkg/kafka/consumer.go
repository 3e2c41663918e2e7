package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	ClientID string
	// FromOldest replays retained events when the group has no committed offset.
	FromOldest bool
}

func NewConsumer(cfg ConsumerConfig, l logger.Logger) (sarama.ConsumerGroup, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_8_0_0
	if cfg.ClientID != "" {
		saramaCfg.ClientID = cfg.ClientID
	}
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	if cfg.FromOldest {
		saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	saramaCfg.Consumer.Return.Errors = true

	consGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	l.Infof(context.Background(), "Kafka consumer group %s joined brokers %v", cfg.GroupID, cfg.Brokers)

	return consGroup, nil
}
