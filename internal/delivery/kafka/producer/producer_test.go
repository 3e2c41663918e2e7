package producer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/listenroom/internal/delivery/kafka"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

func TestPublishHostChanged(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e kafka.HostChangedEvent
		require.NoError(t, json.Unmarshal(val, &e))
		assert.Equal(t, "r1", e.RoomID)
		assert.Equal(t, "h1", e.PreviousHost)
		assert.Equal(t, "l1", e.NewHost)
		assert.Equal(t, kafka.ReasonFailover, e.Reason)
		assert.False(t, e.Timestamp.IsZero())
		return nil
	})

	p := NewProducer(mock, logger.NewNop())
	err := p.PublishHostChanged(context.Background(), kafka.HostChangedEvent{
		RoomID:       "r1",
		PreviousHost: "h1",
		NewHost:      "l1",
		Reason:       kafka.ReasonFailover,
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublishFailureIsReturned(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(assert.AnError)

	p := NewProducer(mock, logger.NewNop())
	err := p.PublishRoomClosed(context.Background(), kafka.RoomClosedEvent{RoomID: "r1", Reason: kafka.ReasonRoomEmpty})
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, p.Close())
}

func TestNopProducer(t *testing.T) {
	p := NewNopProducer()
	assert.NoError(t, p.PublishRoomCreated(context.Background(), kafka.RoomCreatedEvent{RoomID: "r1"}))
	assert.NoError(t, p.Close())
}
