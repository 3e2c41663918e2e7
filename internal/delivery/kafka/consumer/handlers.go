package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/listenroom/internal/catalog"
	"github.com/vogiaan1904/listenroom/internal/delivery/kafka"
)

// HandleSongRemoved drops a withdrawn song from the local catalog and from
// every cached room queue.
func (c *Consumer) HandleSongRemoved(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var e kafka.SongRemovedEvent
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if e.SongID == "" {
		return fmt.Errorf("%w: song_removed without song_id", errMalformed)
	}

	if c.catalog != nil {
		if err := c.catalog.DeleteSong(ctx, e.SongID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
			c.l.Errorf(ctx, "delivery.kafka.consumer.HandleSongRemoved.DeleteSong: %v", err)
			return err
		}
	}

	n, err := c.queueSvc.RemoveSongEverywhere(ctx, e.SongID)
	if err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.HandleSongRemoved: %v", err)
		return err
	}

	c.l.Infof(ctx, "Song removed song_id=%s queue_items=%d", e.SongID, n)
	return nil
}
