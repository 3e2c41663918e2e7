package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/vogiaan1904/listenroom/config"
	"github.com/vogiaan1904/listenroom/internal/auth"
	"github.com/vogiaan1904/listenroom/internal/catalog"
	grpcSvc "github.com/vogiaan1904/listenroom/internal/delivery/grpc"
	httpSvc "github.com/vogiaan1904/listenroom/internal/delivery/http"
	"github.com/vogiaan1904/listenroom/internal/delivery/kafka/consumer"
	"github.com/vogiaan1904/listenroom/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/listenroom/internal/delivery/ws"
	"github.com/vogiaan1904/listenroom/internal/infra/redis"
	repo "github.com/vogiaan1904/listenroom/internal/repository/redis"
	"github.com/vogiaan1904/listenroom/internal/service"
	pkgKafka "github.com/vogiaan1904/listenroom/pkg/kafka"
	pkgLog "github.com/vogiaan1904/listenroom/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisCli, err := redis.Connect(ctx, cfg.Redis, l)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer redis.Disconnect(context.Background(), redisCli, l)

	roomRepo := repo.NewRedisRoomRepository(redisCli, l)
	partRepo := repo.NewRedisParticipantRepository(redisCli, l)
	qRepo := repo.NewRedisQueueRepository(redisCli, l)

	// Song catalog
	var store catalog.Store
	if cfg.Catalog.DSN != "" {
		store, err = catalog.Open(cfg.Catalog.DSN, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to open catalog: %v", err)
		}
		defer store.Close()
	}

	// Lifecycle producer
	prod := producer.NewNopProducer()
	if cfg.Kafka.Enabled {
		kSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			ClientID:     cfg.Kafka.ClientID,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		}, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		prod = producer.NewProducer(kSyncProd, l)
	}
	defer prod.Close()

	wsLog := l.Named("ws")
	hub := ws.NewHub(wsLog)
	registry := service.NewRegistry(roomRepo)
	deps := service.Deps{
		Rooms:        roomRepo,
		Participants: partRepo,
		Queue:        qRepo,
		Registry:     registry,
		Publisher:    hub,
		Producer:     prod,
		Catalog:      store,
		Logger:       l,
		Config:       cfg.Room,
	}

	// Initialize services
	roomSvc := service.NewRoomService(deps)
	playbackSvc := service.NewPlaybackService(deps)
	queueSvc := service.NewQueueService(deps)
	sweeper := service.NewSweeper(roomSvc, playbackSvc, registry, nil, l.Named("sweeper"), cfg.Room)

	// HTTP + websocket
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	dispatcher := ws.NewDispatcher(roomSvc, playbackSvc, queueSvc, wsLog)
	wsSrv := ws.NewServer(hub, dispatcher, cfg.Server.AllowOrigins, wsLog)
	verifier := auth.NewVerifier(cfg.JWT, l)
	httpSvc.NewHandler(roomSvc, queueSvc, store, verifier, wsSrv, l).Register(router)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// gRPC health
	health := grpcSvc.NewHealthReporter(sweeper, l)
	gRpcSrv := grpc.NewServer()
	health.Register(gRpcSrv)

	lnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRpcPort))
	if err != nil {
		l.Fatalf(ctx, "gRPC server failed to listen: %v", err)
	}

	if err := sweeper.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start sweeper: %v", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Infof(gCtx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		l.Infof(gCtx, "gRPC server is listening on port: %d", cfg.Server.GRpcPort)
		if err := gRpcSrv.Serve(lnr); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		health.Run(gCtx, cfg.Room.SweepInterval)
		return nil
	})

	// Catalog events
	if cfg.Kafka.Enabled {
		kConsGr, err := pkgKafka.NewConsumer(pkgKafka.ConsumerConfig{
			Brokers:    cfg.Kafka.Brokers,
			GroupID:    cfg.Kafka.ConsumerGroupID,
			ClientID:   cfg.Kafka.ClientID,
			FromOldest: cfg.Kafka.ConsumerFromOldest,
		}, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka consumer: %v", err)
		}
		cons := consumer.NewConsumer(kConsGr, queueSvc, store, l.Named("kafka"))
		if err := cons.Start(gCtx); err != nil {
			l.Fatalf(ctx, "Failed to start Kafka consumer: %v", err)
		}
		g.Go(func() error {
			<-gCtx.Done()
			return cons.Close()
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		l.Info(context.Background(), "Server shutting down...")

		if err := sweeper.Stop(); err != nil {
			l.Warnf(context.Background(), "Failed to stop sweeper: %v", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		wsSrv.Shutdown()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			l.Warnf(shutdownCtx, "HTTP shutdown: %v", err)
		}
		gRpcSrv.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		l.Errorf(context.Background(), "Server exited with error: %v", err)
		return
	}

	l.Info(context.Background(), "Server exited")
}
