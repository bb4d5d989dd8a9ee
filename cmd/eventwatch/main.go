package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	vmetrics "github.com/VictoriaMetrics/metrics"
	"github.com/flashbots/go-utils/cli"
	"github.com/flashbots/mev-share-client/metrics"
	"github.com/flashbots/mev-share-client/mevshare"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version = "dev" // is set during build process

	// Default values
	defaultDebug         = os.Getenv("DEBUG") == "1"
	defaultLogProd       = os.Getenv("LOG_PROD") == "1"
	defaultLogService    = os.Getenv("LOG_SERVICE")
	defaultMetricsPort   = cli.GetEnv("METRICS_PORT", "8088")
	defaultStream        = cli.GetEnv("STREAM_ENDPOINT", mevshare.NetworkMainnet.StreamURL)
	defaultChannelName   = cli.GetEnv("REDIS_CHANNEL_NAME", "hints")
	defaultRedisEndpoint = cli.GetEnv("REDIS_ENDPOINT", "redis://localhost:6379")
	defaultPostgresDSN   = cli.GetEnv("POSTGRES_DSN", "")

	// Flags
	debugPtr       = flag.Bool("debug", defaultDebug, "print debug output")
	logProdPtr     = flag.Bool("log-prod", defaultLogProd, "log in production mode (json)")
	logServicePtr  = flag.String("log-service", defaultLogService, "'service' tag to logs")
	metricsPortPtr = flag.String("metrics-port", defaultMetricsPort, "metrics port to listen on")
	streamPtr      = flag.String("stream", defaultStream, "mev-share stream endpoint")
	channelPtr     = flag.String("channel", defaultChannelName, "redis pub/sub channel name string")
	redisPtr       = flag.String("redis", defaultRedisEndpoint, "redis url string")
	postgresDSNPtr = flag.String("postgres-dsn", defaultPostgresDSN, "postgres dsn to archive events (empty = no archive)")
)

func main() {
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	if *logProdPtr {
		atom := zap.NewAtomicLevel()
		if *debugPtr {
			atom.SetLevel(zap.DebugLevel)
		}

		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		logger = zap.New(zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.Lock(os.Stdout),
			atom,
		))
	}
	defer func() { _ = logger.Sync() }()
	if *logServicePtr != "" {
		logger = logger.With(zap.String("service", *logServicePtr))
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	logger.Info("Starting event watcher", zap.String("version", version))

	redisOpts, err := redis.ParseURL(*redisPtr)
	if err != nil {
		logger.Fatal("Failed to parse redis url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	eventBackend := mevshare.NewRedisEventBackend(redisClient, *channelPtr)

	var store *mevshare.EventStore
	if *postgresDSNPtr != "" {
		store, err = mevshare.NewEventStore(*postgresDSNPtr)
		if err != nil {
			logger.Fatal("Failed to create postgres event store", zap.Error(err))
		}
		defer func() { _ = store.Close() }()
	}

	stream, err := mevshare.SubscribeEvents(ctx, *streamPtr, logger)
	if err != nil {
		logger.Fatal("Failed to subscribe to event stream", zap.Error(err))
	}

	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		vmetrics.WritePrometheus(w, true)
	})
	go func() {
		metricsServer := &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%s", *metricsPortPtr),
			ReadHeaderTimeout: 5 * time.Second,
			Handler:           metricsMux,
		}

		err := metricsServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start metrics server", zap.Error(err))
		}
	}()

	go func() {
		notifier := make(chan os.Signal, 1)
		signal.Notify(notifier, os.Interrupt, syscall.SIGTERM)
		<-notifier
		logger.Info("Shutting down...")
		ctxCancel()
		stream.Close()
	}()

	for item := range stream.C() {
		if item.Err != nil {
			metrics.IncStreamEventsDropped()
			logger.Warn("Stream delivery failed", zap.Error(item.Err))
			continue
		}
		event := item.Event
		metrics.IncStreamEventsReceived()
		logger.Debug("Event received",
			zap.String("hash", event.Hash.Hex()), zap.Int("txs", len(event.Txs)))

		if err := eventBackend.PublishEvent(ctx, event); err != nil {
			logger.Error("Failed to publish event", zap.Error(err))
		}
		if store != nil {
			if err := store.SaveEvent(ctx, event); err != nil {
				logger.Error("Failed to archive event", zap.Error(err))
			}
		}
	}
	logger.Info("Stream closed")
}
