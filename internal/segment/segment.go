// Package segment implements a single segment of a partition's log: a
// companion triple of .log, .index, and .timeindex files holding a
// contiguous, strictly increasing run of record batches starting at a
// base offset.
package segment

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"

	"forge/internal/batch"
	"forge/internal/fsutil"
)

// batchHeaderProbeSize is the number of leading bytes needed to learn a
// batch's declared length before reading the rest of it: base_offset(8) +
// batch_length(4) + partition_leader_epoch(4) + magic(1) + crc(4).
const batchHeaderProbeSize = batch.HeaderSize + 4 + 1 + 4

// Segment is one contiguous span of a partition's log, backed by three
// files keyed by its base offset. It does not decide when to roll; that is
// PartitionLog's responsibility.
type Segment struct {
	dir        string
	baseOffset int64

	logFile *os.File
	offsets *offsetIndex
	times   *timeIndex

	size             int64
	nextOffset       int64
	largestTimestamp int64

	logger *zap.Logger
}

// Open opens or creates the segment at baseOffset under dir, recovering from
// any partially written trailing batch left by a prior crash.
func Open(dir string, baseOffset int64, logger *zap.Logger) (*Segment, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	logFile, err := fsutil.OpenReadWrite(fsutil.SegmentPath(dir, baseOffset, "log"))
	if err != nil {
		return nil, fmt.Errorf("segment: open log file: %w", err)
	}
	indexFile, err := fsutil.OpenReadWrite(fsutil.SegmentPath(dir, baseOffset, "index"))
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("segment: open index file: %w", err)
	}
	timeIndexFile, err := fsutil.OpenReadWrite(fsutil.SegmentPath(dir, baseOffset, "timeindex"))
	if err != nil {
		logFile.Close()
		indexFile.Close()
		return nil, fmt.Errorf("segment: open timeindex file: %w", err)
	}

	offsets, err := openOffsetIndex(indexFile)
	if err != nil {
		logFile.Close()
		indexFile.Close()
		timeIndexFile.Close()
		return nil, err
	}
	times, err := openTimeIndex(timeIndexFile)
	if err != nil {
		logFile.Close()
		indexFile.Close()
		timeIndexFile.Close()
		return nil, err
	}

	s := &Segment{
		dir:        dir,
		baseOffset: baseOffset,
		logFile:    logFile,
		offsets:    offsets,
		times:      times,
		nextOffset: baseOffset,
		logger:     logger.With(zap.Int64("base_offset", baseOffset)),
	}

	if err := s.recover(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Append writes an already-encoded RecordBatch to the end of the segment and
// indexes it. The caller is responsible for having stamped the correct base
// offset into encoded before calling Append (PartitionLog owns offset
// assignment); Append trusts and validates that stamp via batch.Decode.
func (s *Segment) Append(encoded []byte) (nextOffset int64, err error) {
	b, n, err := batch.Decode(encoded)
	if err != nil {
		return 0, fmt.Errorf("segment: decode batch before append: %w", err)
	}
	if n != len(encoded) {
		return 0, fmt.Errorf("segment: batch decode consumed %d of %d bytes", n, len(encoded))
	}

	delta := b.BaseOffset - s.baseOffset
	if delta < 0 || delta > math.MaxInt32 {
		return 0, ErrOffsetOverflow
	}
	relOffset := int32(delta)

	pos := s.size
	if _, err := s.logFile.WriteAt(encoded, pos); err != nil {
		return 0, fmt.Errorf("segment: write log: %w", err)
	}

	if err := s.offsets.append(relOffset, uint32(pos)); err != nil {
		return 0, fmt.Errorf("segment: write offset index: %w", err)
	}
	if err := s.times.append(b.BaseTimestamp, relOffset); err != nil {
		return 0, fmt.Errorf("segment: write time index: %w", err)
	}

	s.size += int64(len(encoded))
	if b.MaxTimestamp > s.largestTimestamp {
		s.largestTimestamp = b.MaxTimestamp
	}
	s.nextOffset = b.BaseOffset + int64(b.RecordsCount)

	s.logger.Debug("appended batch",
		zap.Int64("batch_base_offset", b.BaseOffset),
		zap.Int32("records_count", b.RecordsCount),
		zap.Int64("physical_position", pos),
	)
	return s.nextOffset, nil
}

// Read returns the batch containing offset, or (nil, nil) if no batch in
// this segment actually contains it (offset precedes the batch the index
// search lands on, or follows every batch this segment holds).
func (s *Segment) Read(offset int64) (*batch.RecordBatch, error) {
	if offset < s.baseOffset {
		return nil, ErrOffsetOutOfRange
	}

	pos, err := s.offsets.lookup(int32(offset - s.baseOffset))
	if err != nil {
		return nil, fmt.Errorf("segment: offset index lookup: %w", err)
	}

	for int64(pos) < s.size {
		b, n, err := s.readBatchAt(int64(pos))
		if err != nil {
			return nil, err
		}
		if offset < b.BaseOffset+int64(b.RecordsCount) {
			if offset < b.BaseOffset {
				return nil, nil
			}
			return &b, nil
		}
		pos += uint32(n)
	}
	return nil, nil
}

// ReadSequential accumulates whole batches starting at offset until adding
// another would exceed maxBytes, always including at least one batch (even
// an oversized one) so a caller never gets zero progress. truncated reports
// whether decoding stopped early due to a corrupt/undecodable trailing
// batch rather than a clean maxBytes or end-of-segment boundary.
func (s *Segment) ReadSequential(offset int64, maxBytes int) (batches []*batch.RecordBatch, truncated bool, err error) {
	if offset < s.baseOffset {
		return nil, false, ErrOffsetOutOfRange
	}

	pos, err := s.offsets.lookup(int32(offset - s.baseOffset))
	if err != nil {
		return nil, false, fmt.Errorf("segment: offset index lookup: %w", err)
	}

	consumed := 0
	for int64(pos) < s.size {
		b, n, err := s.readBatchAt(int64(pos))
		if err != nil {
			s.logger.Warn("sequential read stopped on decode error",
				zap.Int64("byte_offset", int64(pos)), zap.Error(err))
			return batches, true, nil
		}
		if b.BaseOffset+int64(b.RecordsCount) <= offset {
			pos += uint32(n)
			continue
		}
		if consumed > 0 && consumed+n > maxBytes {
			break
		}
		batches = append(batches, &b)
		consumed += n
		pos += uint32(n)
		if consumed >= maxBytes {
			break
		}
	}
	return batches, false, nil
}

// readBatchAt reads one complete batch starting at the given physical
// position, returning the batch and its encoded length in bytes.
func (s *Segment) readBatchAt(pos int64) (batch.RecordBatch, int, error) {
	probe := make([]byte, batchHeaderProbeSize)
	if _, err := s.logFile.ReadAt(probe, pos); err != nil {
		return batch.RecordBatch{}, 0, fmt.Errorf("segment: read batch header at %d: %w", pos, err)
	}
	batchLength := int32(binary.BigEndian.Uint32(probe[batch.LengthFieldOffset : batch.LengthFieldOffset+4]))
	total := batch.HeaderSize + int(batchLength)
	if total < batchHeaderProbeSize || int64(total) > s.size-pos {
		return batch.RecordBatch{}, 0, ErrInsufficientData
	}

	full := make([]byte, total)
	if _, err := s.logFile.ReadAt(full, pos); err != nil {
		return batch.RecordBatch{}, 0, fmt.Errorf("segment: read batch body at %d: %w", pos, err)
	}
	b, n, err := batch.Decode(full)
	if err != nil {
		return batch.RecordBatch{}, 0, err
	}
	return b, n, nil
}

// recover scans the log from the start, validating each batch's CRC and
// framing, and truncates the log (and, if necessary, the index files) at
// the last valid batch boundary. This repairs a crash that left a partial
// batch at the tail, or left index files shorter or longer than the log
// they describe.
func (s *Segment) recover() error {
	info, err := s.logFile.Stat()
	if err != nil {
		return fmt.Errorf("segment: stat log file: %w", err)
	}
	physicalSize := info.Size()

	var pos int64
	nextOffset := s.baseOffset
	var largestTimestamp int64
	var validOffsetEntries, validTimeEntries int64

	for pos < physicalSize {
		probe := make([]byte, batchHeaderProbeSize)
		if physicalSize-pos < batchHeaderProbeSize {
			break
		}
		if _, err := s.logFile.ReadAt(probe, pos); err != nil {
			break
		}
		batchLength := int32(binary.BigEndian.Uint32(probe[batch.LengthFieldOffset : batch.LengthFieldOffset+4]))
		total := int64(batch.HeaderSize) + int64(batchLength)
		if total < batchHeaderProbeSize || pos+total > physicalSize {
			break
		}

		full := make([]byte, total)
		if _, err := s.logFile.ReadAt(full, pos); err != nil {
			break
		}
		b, n, err := batch.Decode(full)
		if err != nil || int64(n) != total {
			break
		}

		nextOffset = b.BaseOffset + int64(b.RecordsCount)
		if b.MaxTimestamp > largestTimestamp {
			largestTimestamp = b.MaxTimestamp
		}
		validOffsetEntries++
		validTimeEntries++
		pos += total
	}

	if pos != physicalSize {
		s.logger.Warn("truncating corrupt segment tail",
			zap.Int64("valid_size", pos), zap.Int64("physical_size", physicalSize))
		if err := s.logFile.Truncate(pos); err != nil {
			return fmt.Errorf("segment: truncate log file: %w", err)
		}
	}

	// rebuildIndexes reads batches through readBatchAt, which bounds reads
	// by s.size, so the recovered size must be in place first.
	s.size = pos

	switch {
	case s.offsets.entries < validOffsetEntries || s.times.entries < validTimeEntries:
		if err := s.rebuildIndexes(pos); err != nil {
			return err
		}
	default:
		if s.offsets.entries > validOffsetEntries {
			if err := s.offsets.truncate(validOffsetEntries); err != nil {
				return fmt.Errorf("segment: truncate offset index: %w", err)
			}
		}
		if s.times.entries > validTimeEntries {
			if err := s.times.truncate(validTimeEntries); err != nil {
				return fmt.Errorf("segment: truncate time index: %w", err)
			}
		}
	}

	s.nextOffset = nextOffset
	s.largestTimestamp = largestTimestamp
	return nil
}

// rebuildIndexes replays the log from the start and regenerates both index
// files, used when a segment's index is shorter than its recovered log
// implies (e.g. the index file itself was lost or truncated independently).
func (s *Segment) rebuildIndexes(validSize int64) error {
	if err := s.offsets.truncate(0); err != nil {
		return err
	}
	if err := s.times.truncate(0); err != nil {
		return err
	}

	var pos int64
	for pos < validSize {
		b, n, err := s.readBatchAt(pos)
		if err != nil {
			return fmt.Errorf("segment: rebuild index: %w", err)
		}
		delta := b.BaseOffset - s.baseOffset
		if delta < 0 || delta > math.MaxInt32 {
			return fmt.Errorf("segment: rebuild index: %w", ErrOffsetOverflow)
		}
		relOffset := int32(delta)
		if err := s.offsets.append(relOffset, uint32(pos)); err != nil {
			return err
		}
		if err := s.times.append(b.BaseTimestamp, relOffset); err != nil {
			return err
		}
		pos += int64(n)
	}
	return nil
}

// Flush fsyncs the log and both index files, making every append so far
// durable against a process crash (though not against an OS-level power
// loss without a hardware write barrier).
func (s *Segment) Flush() error {
	if err := s.logFile.Sync(); err != nil {
		return fmt.Errorf("segment: sync log file: %w", err)
	}
	if err := s.offsets.sync(); err != nil {
		return fmt.Errorf("segment: sync offset index: %w", err)
	}
	if err := s.times.sync(); err != nil {
		return fmt.Errorf("segment: sync time index: %w", err)
	}
	return nil
}

// Close releases the segment's file descriptors without deleting anything.
func (s *Segment) Close() error {
	err1 := s.logFile.Close()
	err2 := s.offsets.close()
	err3 := s.times.close()
	if err1 != nil {
		return err1
	}
	if err2 != nil {
		return err2
	}
	return err3
}

// Delete closes and removes all three of the segment's files.
func (s *Segment) Delete() error {
	if err := s.Close(); err != nil {
		return err
	}
	return fsutil.RemoveSegmentFiles(s.dir, s.baseOffset)
}

// BaseOffset returns the offset of the first batch this segment can hold.
func (s *Segment) BaseOffset() int64 { return s.baseOffset }

// NextOffset returns the offset the next appended batch would receive.
func (s *Segment) NextOffset() int64 { return s.nextOffset }

// Size returns the current physical size of the segment's log file.
func (s *Segment) Size() int64 { return s.size }

// LargestTimestamp returns the greatest max-timestamp among batches appended
// to this segment so far.
func (s *Segment) LargestTimestamp() int64 { return s.largestTimestamp }
