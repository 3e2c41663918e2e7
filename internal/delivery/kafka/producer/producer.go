package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	kafka "github.com/vogiaan1904/listenroom/internal/delivery/kafka"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

type Producer interface {
	PublishRoomCreated(ctx context.Context, event kafka.RoomCreatedEvent) error
	PublishRoomClosed(ctx context.Context, event kafka.RoomClosedEvent) error
	PublishParticipantJoined(ctx context.Context, event kafka.ParticipantJoinedEvent) error
	PublishParticipantLeft(ctx context.Context, event kafka.ParticipantLeftEvent) error
	PublishHostChanged(ctx context.Context, event kafka.HostChangedEvent) error
	Close() error
}

type implProducer struct {
	l    logger.Logger
	prod sarama.SyncProducer
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &implProducer{
		l:    l,
		prod: prod,
	}
}

func (p *implProducer) PublishRoomCreated(ctx context.Context, event kafka.RoomCreatedEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, kafka.TopicRoomCreated, event.RoomID, event)
}

func (p *implProducer) PublishRoomClosed(ctx context.Context, event kafka.RoomClosedEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, kafka.TopicRoomClosed, event.RoomID, event)
}

func (p *implProducer) PublishParticipantJoined(ctx context.Context, event kafka.ParticipantJoinedEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, kafka.TopicParticipantJoined, event.RoomID, event)
}

func (p *implProducer) PublishParticipantLeft(ctx context.Context, event kafka.ParticipantLeftEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, kafka.TopicParticipantLeft, event.RoomID, event)
}

func (p *implProducer) PublishHostChanged(ctx context.Context, event kafka.HostChangedEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, kafka.TopicHostChanged, event.RoomID, event)
}

func (p *implProducer) send(ctx context.Context, topic, roomID string, event any) error {
	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.producer.send: %v", err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(roomID), // Partition by room_id for ordering
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("timestamp"),
				Value: []byte(time.Now().Format(time.RFC3339)),
			},
		},
	}

	_, _, err = p.prod.SendMessage(msg)
	return err
}

func (p *implProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		return err
	}

	return nil
}

type nopProducer struct{}

// NewNopProducer is used when Kafka is disabled.
func NewNopProducer() Producer {
	return nopProducer{}
}

func (nopProducer) PublishRoomCreated(context.Context, kafka.RoomCreatedEvent) error { return nil }
func (nopProducer) PublishRoomClosed(context.Context, kafka.RoomClosedEvent) error   { return nil }
func (nopProducer) PublishParticipantJoined(context.Context, kafka.ParticipantJoinedEvent) error {
	return nil
}
func (nopProducer) PublishParticipantLeft(context.Context, kafka.ParticipantLeftEvent) error {
	return nil
}
func (nopProducer) PublishHostChanged(context.Context, kafka.HostChangedEvent) error { return nil }
func (nopProducer) Close() error                                                    { return nil }
