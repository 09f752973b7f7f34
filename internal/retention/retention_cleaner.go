// Package retention runs a ticker-driven sweep that periodically calls
// EnforceRetention on every registered PartitionLog, the external caller
// spec.md's enforce_retention operation assumes exists.
package retention

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"forge/internal/partitionlog"
)

// CleanerConfig controls how often the sweep runs.
type CleanerConfig struct {
	RetentionCheckIntervalMs int64
}

// Cleaner periodically invokes EnforceRetention on a registered set of
// partition logs until Stop is called.
type Cleaner struct {
	mu         sync.Mutex
	partitions []*partitionlog.PartitionLog
	config     CleanerConfig
	logger     *zap.Logger
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// New builds a Cleaner; logger may be nil, defaulting to a silent logger.
func New(config CleanerConfig, logger *zap.Logger) *Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleaner{
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Register adds p to the set of partition logs swept on every tick.
func (c *Cleaner) Register(p *partitionlog.PartitionLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partitions = append(c.partitions, p)
}

// Start begins the background sweep loop.
func (c *Cleaner) Start() {
	c.wg.Add(1)
	go c.run()
}

func (c *Cleaner) run() {
	defer c.wg.Done()

	interval := time.Duration(c.config.RetentionCheckIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cleaner) sweep() {
	c.mu.Lock()
	partitions := make([]*partitionlog.PartitionLog, len(c.partitions))
	copy(partitions, c.partitions)
	c.mu.Unlock()

	for _, p := range partitions {
		if err := p.EnforceRetention(); err != nil {
			c.logger.Warn("retention sweep failed for partition", zap.Error(err))
		}
	}
}

// Stop ends the sweep loop and waits for it to exit.
func (c *Cleaner) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}
