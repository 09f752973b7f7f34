package broker

import (
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"forge/internal/partitionlog"
	"forge/internal/protocol"
	"forge/internal/resourcecache"
)

// Broker accepts TCP connections and serves Produce/Fetch requests against
// one topic-partition, resolved once at construction through a shared
// resource cache that bounds how many partition logs stay open concurrently.
type Broker struct {
	Config Config
	cache  *resourcecache.Cache
	logger *zap.Logger

	log *partitionlog.PartitionLog // resolved once at construction

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewBroker resolves cfg.Topic/cfg.Partition through cache (loading it with
// partitionlog.OpenWithLogger on a miss) and returns a Broker ready to
// Start. logger may be nil.
func NewBroker(cfg Config, cache *resourcecache.Cache, logger *zap.Logger) (*Broker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	key := partitionKey(cfg.Topic, cfg.Partition)
	dir := fmt.Sprintf("%s/%s-%d", cfg.BaseDir, cfg.Topic, cfg.Partition)

	log, err := cache.GetOrLoad(key, func() (*partitionlog.PartitionLog, error) {
		return partitionlog.OpenWithLogger(dir, cfg.PartitionLog, logger)
	})
	if err != nil {
		return nil, fmt.Errorf("broker: load partition %s: %w", key, err)
	}

	return &Broker{
		Config: cfg,
		cache:  cache,
		logger: logger,
		log:    log,
		quit:   make(chan struct{}),
	}, nil
}

func partitionKey(topic string, partition int32) string {
	return fmt.Sprintf("%s-%d", topic, partition)
}

// PartitionLog returns the partition log this broker serves, for callers
// (the retention scheduler) that need to register it directly.
func (b *Broker) PartitionLog() *partitionlog.PartitionLog {
	return b.log
}

func (b *Broker) Start() error {

	ln, err := net.Listen("tcp", b.Config.ListenAddr)
	if err != nil {
		return err
	}

	b.logger.Info("broker listening", zap.String("addr", b.Config.ListenAddr))

	go func() {
		<-b.quit
		b.logger.Info("broker stopping, closing listener")
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-b.quit:
				return nil
			default:
				b.logger.Warn("accept error", zap.Error(err))
				continue
			}
		}

		b.wg.Add(1)
		go b.handleConnection(conn)
	}
}

func (b *Broker) Stop() {
	close(b.quit)
	b.wg.Wait()
}

func (b *Broker) handleConnection(conn net.Conn) {
	defer func() {
		conn.Close()
		b.wg.Done()
	}()

	for {
		req, err := protocol.ReadRequest(conn)
		if err != nil {
			if err != io.EOF {
				b.logger.Warn("connection closed with error", zap.Error(err))
			}
			return
		}

		err = func() error {
			defer req.Release()

			respBody, handleErr := b.handleRequest(req)
			if handleErr != nil {
				b.logger.Warn("handler error", zap.Error(handleErr))
				return handleErr
			}

			return protocol.SendResponse(conn, req.Header.CorrelationID, respBody)
		}()

		if err != nil {
			return
		}
	}
}
