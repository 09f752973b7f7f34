package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"forge/internal/broker"
	"forge/internal/logging"
	"forge/internal/partitionlog"
	"forge/internal/protocol"
	"forge/internal/resourcecache"
	"forge/internal/retention"
)

func main() {
	logger, err := logging.New(zapcore.InfoLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	protocol.SetLogger(logger)

	cfg := broker.Config{
		ListenAddr: envOr("BROKER_LISTEN_ADDR", ":9092"),
		BaseDir:    envOr("BROKER_DATA_DIR", "./data"),
		Topic:      envOr("BROKER_TOPIC", "events"),
		Partition:  0,
		PartitionLog: partitionlog.Config{
			MaxSegmentSize: 10 * 1024 * 1024,        // 10MB per segment
			RetentionBytes: 0,                       // unlimited
			RetentionMs:    7 * 24 * 60 * 60 * 1000, // 7 days
		},
		CacheCapacity: 50,
	}

	logger.Info("initializing resource cache", zap.Int("capacity", cfg.CacheCapacity))
	resCache := resourcecache.New(cfg.CacheCapacity)
	defer resCache.Close()

	logger.Info("starting broker", zap.String("topic", cfg.Topic), zap.Int32("partition", cfg.Partition))
	brk, err := broker.NewBroker(cfg, resCache, logger)
	if err != nil {
		logger.Fatal("failed to initialize broker", zap.Error(err))
	}

	cleaner := retention.New(retention.CleanerConfig{
		RetentionCheckIntervalMs: 5 * 60 * 1000, // 5 minutes
	}, logger)
	cleaner.Register(brk.PartitionLog())
	cleaner.Start()
	defer cleaner.Stop()

	go func() {
		if err := brk.Start(); err != nil {
			logger.Fatal("broker failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down broker")
	brk.Stop()
	logger.Info("broker stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
