package consumer

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/listenroom/internal/catalog"
	"github.com/vogiaan1904/listenroom/internal/delivery/kafka"
	"github.com/vogiaan1904/listenroom/internal/service"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

// errMalformed marks a message that can never be handled. It is committed so
// it does not block the partition.
var errMalformed = errors.New("malformed event")

const rejoinBackoff = 2 * time.Second

type handlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

type Consumer struct {
	consGr   sarama.ConsumerGroup
	queueSvc service.QueueService
	catalog  catalog.Store
	handlers map[string]handlerFunc
	l        logger.Logger
	wg       sync.WaitGroup
}

// NewConsumer builds a consumer for catalog events. store may be nil when no
// local catalog is configured.
func NewConsumer(
	consGr sarama.ConsumerGroup,
	queueSvc service.QueueService,
	store catalog.Store,
	l logger.Logger,
) *Consumer {
	c := &Consumer{
		consGr:   consGr,
		queueSvc: queueSvc,
		catalog:  store,
		l:        l,
	}
	c.handlers = map[string]handlerFunc{
		kafka.TopicCatalogSongRemoved: c.HandleSongRemoved,
	}
	return c
}

func (c *Consumer) topics() []string {
	topics := make([]string, 0, len(c.handlers))
	for t := range c.handlers {
		topics = append(topics, t)
	}
	slices.Sort(topics)
	return topics
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	h, ok := c.handlers[msg.Topic]
	if !ok {
		c.l.Warnf(ctx, "Unknown topic: %s", msg.Topic)
		return nil
	}
	return h(ctx, msg)
}

// Start joins the consumer group in the background. Consume returns on every
// rebalance, so the loop rejoins until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	topics := c.topics()

	c.wg.Go(func() {
		for {
			if err := c.consGr.Consume(ctx, topics, c); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.l.Errorf(ctx, "delivery.kafka.consumer.Consumer.Start: %v", err)

				select {
				case <-ctx.Done():
				case <-time.After(rejoinBackoff):
				}
			}

			if ctx.Err() != nil {
				c.l.Infof(ctx, "Consumer stopped: %v", ctx.Err())
				return
			}
		}
	})

	c.wg.Go(func() {
		for err := range c.consGr.Errors() {
			c.l.Errorf(ctx, "delivery.kafka.consumer.Consumer.Start: %v", err)
		}
	})

	c.l.Infof(ctx, "Consumer is consuming topics: %v", topics)
	return nil
}

func (c *Consumer) Close() error {
	if err := c.consGr.Close(); err != nil {
		return err
	}

	c.wg.Wait()
	return nil
}

func (c *Consumer) Setup(ss sarama.ConsumerGroupSession) error {
	c.l.Debugf(context.Background(), "Consumer group session started member_id=%s generation=%d", ss.MemberID(), ss.GenerationID())
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session ended")
	return nil
}

// ConsumeClaim leaves a message uncommitted when its handler fails for a
// reason other than errMalformed, so the next session redelivers it.
func (c *Consumer) ConsumeClaim(ss sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			ctx := c.l.WithFields(ss.Context(), "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
			err := c.processMessage(ctx, msg)
			switch {
			case err == nil:
			case errors.Is(err, errMalformed):
				c.l.Warnf(ctx, "Skipping event: %v", err)
			default:
				c.l.Errorf(ctx, "delivery.kafka.consumer.Consumer.ConsumeClaim: %v", err)
				continue
			}

			ss.MarkMessage(msg, "")

		case <-ss.Context().Done():
			return nil
		}
	}
}
