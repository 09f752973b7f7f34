package partitionlog

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"forge/internal/batch"
	"forge/internal/fsutil"
	"forge/internal/segment"
)

// PartitionLog is the ordered collection of segments backing one
// topic-partition. Every segment it holds stays open for the PartitionLog's
// lifetime; the last segment in the slice is always the active, writable
// one. Every exported method is protected by a single coarse mutex: this
// type is not internally concurrent, by design.
type PartitionLog struct {
	mu sync.Mutex

	dir    string
	config Config
	logger *zap.Logger
	lock   *fsutil.DirLock

	segments []*segment.Segment // ascending base offset; last is active
}

// Open opens (or creates, if dir is empty or missing) a partition log at
// dir. If dir already contains segment files, they are recovered and opened
// in ascending base-offset order with the highest becoming active.
func Open(dir string, maxSegmentSize uint32, retentionBytes, retentionMs uint64) (*PartitionLog, error) {
	return OpenWithLogger(dir, Config{
		MaxSegmentSize: maxSegmentSize,
		RetentionBytes: retentionBytes,
		RetentionMs:    retentionMs,
	}, zap.NewNop())
}

// OpenWithLogger is Open with an explicit structured logger, used by
// components (the broker bootstrap, tests that want visibility) that inject
// one rather than accepting the silent default.
func OpenWithLogger(dir string, config Config, logger *zap.Logger) (*PartitionLog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("partitionlog: create directory: %w", err)
	}

	lock, err := fsutil.LockDir(dir)
	if err != nil {
		return nil, err
	}

	baseOffsets, err := scanSegmentBaseOffsets(dir)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	p := &PartitionLog{
		dir:    dir,
		config: config,
		logger: logger,
		lock:   lock,
	}

	if len(baseOffsets) == 0 {
		baseOffsets = []int64{0}
	}
	for _, base := range baseOffsets {
		seg, err := segment.Open(dir, base, logger)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("partitionlog: open segment %d: %w", base, err)
		}
		p.segments = append(p.segments, seg)
	}

	return p, nil
}

func scanSegmentBaseOffsets(dir string) ([]int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("partitionlog: list directory: %w", err)
	}

	var bases []int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".log") {
			continue
		}
		base, err := strconv.ParseInt(strings.TrimSuffix(name, ".log"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("partitionlog: invalid segment filename %q: %w", name, err)
		}
		bases = append(bases, base)
	}
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
	return bases, nil
}

func (p *PartitionLog) active() *segment.Segment {
	return p.segments[len(p.segments)-1]
}

// Append assigns the next offset to encoded (stamping it into the batch's
// base-offset field) and writes it to the active segment, then rolls to a new
// segment if that append brought the active one to its size threshold. A batch
// larger than MaxSegmentSize is never split; it always lands wholly in the
// segment it was appended to, even if that leaves the segment oversized.
func (p *PartitionLog) Append(encoded []byte) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(encoded) < 8 {
		return 0, fmt.Errorf("partitionlog: batch too short to stamp an offset: %d bytes", len(encoded))
	}

	currentOffset := p.active().NextOffset()
	binary.BigEndian.PutUint64(encoded[0:8], uint64(currentOffset))

	next, err := p.active().Append(encoded)
	if err != nil {
		return 0, fmt.Errorf("partitionlog: append to active segment: %w", err)
	}

	if p.config.MaxSegmentSize > 0 && uint32(p.active().Size()) >= p.config.MaxSegmentSize {
		if err := p.roll(next); err != nil {
			return 0, err
		}
	}

	return currentOffset, nil
}

func (p *PartitionLog) roll(nextOffset int64) error {
	oldBase := p.active().BaseOffset()
	newSeg, err := segment.Open(p.dir, nextOffset, p.logger)
	if err != nil {
		return fmt.Errorf("partitionlog: roll to new segment at %d: %w", nextOffset, err)
	}
	p.segments = append(p.segments, newSeg)
	p.logger.Info("rolled segment", zap.Int64("old_base_offset", oldBase), zap.Int64("new_base_offset", nextOffset))
	return nil
}

// findSegmentIndex returns the index of the segment whose base offset is the
// greatest one <= offset, or -1 if offset precedes every segment.
func (p *PartitionLog) findSegmentIndex(offset int64) int {
	idx := sort.Search(len(p.segments), func(i int) bool {
		return p.segments[i].BaseOffset() > offset
	}) - 1
	return idx
}

// Read returns the batch containing offset, or (nil, nil) if offset is
// beyond the last appended batch (no new data yet). It returns
// ErrOffsetOutOfRange if offset precedes the oldest segment's base offset
// (already removed by retention, or never valid).
func (p *PartitionLog) Read(offset int64) (*batch.RecordBatch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if offset < p.segments[0].BaseOffset() {
		return nil, ErrOffsetOutOfRange
	}
	if offset >= p.active().NextOffset() {
		return nil, nil
	}

	idx := p.findSegmentIndex(offset)
	if idx < 0 {
		idx = 0
	}
	return p.segments[idx].Read(offset)
}

// ReadSequential accumulates batches starting at offset across as many
// segments as needed until maxBytes is reached or data runs out. truncated
// reports whether a decode error inside some segment stopped accumulation
// early rather than a clean boundary.
func (p *PartitionLog) ReadSequential(offset int64, maxBytes int) ([]*batch.RecordBatch, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if offset < p.segments[0].BaseOffset() {
		return nil, false, ErrOffsetOutOfRange
	}
	if offset >= p.active().NextOffset() {
		return nil, false, nil
	}

	idx := p.findSegmentIndex(offset)
	if idx < 0 {
		idx = 0
	}

	var batches []*batch.RecordBatch
	consumed := 0
	for ; idx < len(p.segments); idx++ {
		remaining := maxBytes - consumed
		if remaining <= 0 {
			break
		}
		segBatches, truncated, err := p.segments[idx].ReadSequential(offset, remaining)
		if err != nil {
			return batches, false, fmt.Errorf("partitionlog: read segment %d: %w", p.segments[idx].BaseOffset(), err)
		}
		for _, b := range segBatches {
			batches = append(batches, b)
			consumed += encodedLength(b)
		}
		if truncated {
			return batches, true, nil
		}
		if len(segBatches) > 0 {
			offset = segBatches[len(segBatches)-1].BaseOffset + int64(segBatches[len(segBatches)-1].RecordsCount)
		}
	}
	return batches, false, nil
}

func encodedLength(b *batch.RecordBatch) int {
	return batch.HeaderSize + int(b.BatchLength)
}

// RemoveSegment deletes the segment at index i from disk and from the
// in-memory slice. It refuses to remove the last remaining segment (always
// the active one) or an out-of-range index.
func (p *PartitionLog) RemoveSegment(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeSegmentLocked(i)
}

func (p *PartitionLog) removeSegmentLocked(i int) error {
	if len(p.segments) <= 1 {
		return ErrCannotRemoveLastSegment
	}
	if i < 0 || i >= len(p.segments) {
		return ErrSegmentIndexOutOfRange
	}
	seg := p.segments[i]
	if err := seg.Delete(); err != nil {
		return fmt.Errorf("partitionlog: delete segment %d: %w", seg.BaseOffset(), err)
	}
	p.segments = append(p.segments[:i], p.segments[i+1:]...)
	return nil
}

// EnforceRetention removes the oldest segments while the byte-size or
// time-based retention thresholds are exceeded, always keeping at least one
// segment (the active one is never removed).
func (p *PartitionLog) EnforceRetention() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enforceRetentionByBytes(); err != nil {
		return err
	}
	return p.enforceRetentionByTime()
}

func (p *PartitionLog) enforceRetentionByBytes() error {
	if p.config.RetentionBytes == 0 {
		return nil
	}
	for len(p.segments) > 1 && p.totalSizeLocked() > p.config.RetentionBytes {
		removed := p.segments[0].BaseOffset()
		if err := p.removeSegmentLocked(0); err != nil {
			return err
		}
		p.logger.Info("removed segment for byte retention", zap.Int64("base_offset", removed))
	}
	return nil
}

func (p *PartitionLog) enforceRetentionByTime() error {
	if p.config.RetentionMs == 0 {
		return nil
	}
	maxAge := time.Duration(p.config.RetentionMs) * time.Millisecond
	for len(p.segments) > 1 {
		oldest := p.segments[0]
		expired, err := p.segmentExpired(oldest, maxAge)
		if err != nil {
			p.logger.Warn("retention time check failed, skipping", zap.Int64("base_offset", oldest.BaseOffset()), zap.Error(err))
			return nil
		}
		if !expired {
			return nil
		}
		removed := oldest.BaseOffset()
		if err := p.removeSegmentLocked(0); err != nil {
			return err
		}
		p.logger.Info("removed segment for time retention", zap.Int64("base_offset", removed))
	}
	return nil
}

func (p *PartitionLog) segmentExpired(seg *segment.Segment, maxAge time.Duration) (bool, error) {
	path := fsutil.SegmentPath(p.dir, seg.BaseOffset(), "log")
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return time.Since(info.ModTime()) > maxAge, nil
}

func (p *PartitionLog) totalSizeLocked() uint64 {
	var total uint64
	for _, seg := range p.segments {
		total += uint64(seg.Size())
	}
	return total
}

// Close closes every segment's file descriptors and releases the
// directory lock, without deleting anything.
func (p *PartitionLog) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	for _, seg := range p.segments {
		if err := seg.Close(); err != nil && first == nil {
			first = err
		}
	}
	if p.lock != nil {
		if err := p.lock.Unlock(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Flush fsyncs every open segment, making the most recent appends durable
// even when the latest append triggered a roll and so lives in the segment
// before the active one.
func (p *PartitionLog) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, seg := range p.segments {
		if err := seg.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// SegmentCount returns the number of segments currently open, for callers
// (retention sweeps, tests) that need to observe rollover/eviction progress.
func (p *PartitionLog) SegmentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.segments)
}
