package segment

import (
	"encoding/binary"
	"fmt"
	"os"
)

// timeIndexEntrySize is the encoded width of one TimeIndexEntry: a timestamp
// (i64) and a relative offset (i32).
const timeIndexEntrySize = 12

type timeIndexEntry struct {
	timestamp      int64
	relativeOffset int32
}

func encodeTimeIndexEntry(e timeIndexEntry) [timeIndexEntrySize]byte {
	var buf [timeIndexEntrySize]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(e.timestamp))
	binary.BigEndian.PutUint32(buf[8:12], uint32(e.relativeOffset))
	return buf
}

// timeIndex is the sparse time-to-offset companion file for a segment,
// mirroring offsetIndex but keyed on each appended batch's base timestamp.
type timeIndex struct {
	f       *os.File
	entries int64
}

func openTimeIndex(f *os.File) (*timeIndex, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size%timeIndexEntrySize != 0 {
		return nil, fmt.Errorf("segment: time index size %d is not a multiple of entry size %d", size, timeIndexEntrySize)
	}
	return &timeIndex{f: f, entries: size / timeIndexEntrySize}, nil
}

func (idx *timeIndex) append(timestamp int64, relativeOffset int32) error {
	buf := encodeTimeIndexEntry(timeIndexEntry{timestamp, relativeOffset})
	if _, err := idx.f.WriteAt(buf[:], idx.entries*timeIndexEntrySize); err != nil {
		return err
	}
	idx.entries++
	return nil
}

func (idx *timeIndex) truncate(entries int64) error {
	if err := idx.f.Truncate(entries * timeIndexEntrySize); err != nil {
		return err
	}
	idx.entries = entries
	return nil
}

func (idx *timeIndex) sync() error {
	return idx.f.Sync()
}

func (idx *timeIndex) close() error {
	return idx.f.Close()
}
