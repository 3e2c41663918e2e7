package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vogiaan1904/listenroom/config"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

// Sweeper is the periodic reconciliation task. Each tick visits every stored
// room, loading its cache entry if needed: stale participants run the leave
// path, then a playing room whose persisted position is old gets flushed and
// re-broadcast.
type Sweeper interface {
	Start(ctx context.Context) error
	Stop() error
	// Tick runs one sweep synchronously.
	Tick(ctx context.Context)
	GetStatus() SweeperStatus
}

type SweeperStatus struct {
	IsRunning    bool      `json:"is_running"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	LastSweep    time.Time `json:"last_sweep,omitempty"`
	RoomsActive  int       `json:"rooms_active"`
	TotalFlushed int64     `json:"total_flushed"`
	TotalEvicted int64     `json:"total_evicted"`
	ErrorCount   int64     `json:"error_count"`
}

type sweeper struct {
	roomSvc     RoomService
	playbackSvc PlaybackService
	registry    *Registry
	clock       clock.Clock
	logger      logger.Logger

	interval        time.Duration
	shutdownTimeout time.Duration

	mu        sync.RWMutex
	isRunning bool
	startedAt time.Time
	stopCh    chan struct{}
	ticker    *clock.Ticker
	wg        sync.WaitGroup

	lastSweep    time.Time
	totalFlushed int64
	totalEvicted int64
	errorCount   int64
}

func NewSweeper(
	roomSvc RoomService,
	playbackSvc PlaybackService,
	registry *Registry,
	clk clock.Clock,
	l logger.Logger,
	cfg config.RoomConfig,
) Sweeper {
	if clk == nil {
		clk = clock.New()
	}
	return &sweeper{
		roomSvc:         roomSvc,
		playbackSvc:     playbackSvc,
		registry:        registry,
		clock:           clk,
		logger:          l,
		interval:        cfg.SweepInterval,
		shutdownTimeout: 10 * time.Second,
	}
}

func (sw *sweeper) Start(ctx context.Context) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.isRunning {
		return errors.New("sweeper is already running")
	}

	sw.isRunning = true
	sw.startedAt = sw.clock.Now()
	sw.stopCh = make(chan struct{})
	sw.ticker = sw.clock.Ticker(sw.interval)

	sw.wg.Add(1)
	go sw.loop(ctx, sw.ticker, sw.stopCh)

	sw.logger.Infof(ctx, "Sweeper started interval=%s", sw.interval)
	return nil
}

func (sw *sweeper) Stop() error {
	sw.mu.Lock()
	if !sw.isRunning {
		sw.mu.Unlock()
		return errors.New("sweeper is not running")
	}

	close(sw.stopCh)
	sw.ticker.Stop()
	sw.isRunning = false
	sw.mu.Unlock()

	done := make(chan struct{})
	go func() {
		sw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		sw.logger.Info(context.Background(), "Sweeper stopped gracefully")
	case <-time.After(sw.shutdownTimeout):
		sw.logger.Warn(context.Background(), "Sweeper shutdown timeout exceeded")
	}

	return nil
}

func (sw *sweeper) loop(ctx context.Context, ticker *clock.Ticker, stopCh chan struct{}) {
	defer sw.wg.Done()

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info(ctx, "Sweeper stopped due to context cancellation")
			return
		case <-stopCh:
			return
		case <-ticker.C:
			sw.Tick(ctx)
		}
	}
}

func (sw *sweeper) Tick(ctx context.Context) {
	var flushed, evicted, failed int64

	roomIDs, err := sw.registry.Rooms(ctx)
	if err != nil {
		failed++
		sw.logger.Errorf(ctx, "service.sweeper.Tick.Rooms: %v", err)
	}

	for _, roomID := range roomIDs {
		rctx := sw.logger.WithFields(ctx, "room_id", roomID)

		n, err := sw.roomSvc.SweepStale(rctx, roomID)
		evicted += int64(n)
		if err != nil {
			if !roomGone(err) {
				failed++
				sw.logger.Errorf(rctx, "service.sweeper.Tick.SweepStale: %v", err)
			}
			continue
		}

		ok, err := sw.playbackSvc.Reconcile(rctx, roomID)
		if err != nil {
			if !roomGone(err) {
				failed++
				sw.logger.Errorf(rctx, "service.sweeper.Tick.Reconcile: %v", err)
			}
			continue
		}
		if ok {
			flushed++
		}
	}

	sw.mu.Lock()
	sw.lastSweep = sw.clock.Now()
	sw.totalFlushed += flushed
	sw.totalEvicted += evicted
	sw.errorCount += failed
	sw.mu.Unlock()
}

func (sw *sweeper) GetStatus() SweeperStatus {
	sw.mu.RLock()
	defer sw.mu.RUnlock()

	return SweeperStatus{
		IsRunning:    sw.isRunning,
		StartedAt:    sw.startedAt,
		LastSweep:    sw.lastSweep,
		RoomsActive:  sw.registry.Len(),
		TotalFlushed: sw.totalFlushed,
		TotalEvicted: sw.totalEvicted,
		ErrorCount:   sw.errorCount,
	}
}

// roomGone reports a room destroyed between listing and visiting it.
func roomGone(err error) bool {
	k := Kind(err)
	return k == KindConcurrency || errors.Is(err, ErrRoomNotFound)
}
