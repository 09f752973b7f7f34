package segment

import (
	"encoding/binary"
	"fmt"
	"os"
)

// offsetIndexEntrySize is the encoded width of one IndexEntry: a relative
// offset (i32) and a physical byte position within the log file (u32).
const offsetIndexEntrySize = 8

// offsetIndexEntry is one sparse mapping from a batch's offset, relative to
// its segment's base offset, to that batch's byte position in the .log file.
type offsetIndexEntry struct {
	relativeOffset  int32
	physicalPosition uint32
}

func encodeOffsetIndexEntry(e offsetIndexEntry) [offsetIndexEntrySize]byte {
	var buf [offsetIndexEntrySize]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(e.relativeOffset))
	binary.BigEndian.PutUint32(buf[4:8], e.physicalPosition)
	return buf
}

func decodeOffsetIndexEntry(buf []byte) offsetIndexEntry {
	return offsetIndexEntry{
		relativeOffset:   int32(binary.BigEndian.Uint32(buf[0:4])),
		physicalPosition: binary.BigEndian.Uint32(buf[4:8]),
	}
}

// offsetIndex is the sparse, binary-searchable offset index companion file
// for a segment. Entries are appended in strictly increasing relative-offset
// order, one per batch appended to the segment.
type offsetIndex struct {
	f       *os.File
	entries int64
}

func openOffsetIndex(f *os.File) (*offsetIndex, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size%offsetIndexEntrySize != 0 {
		return nil, fmt.Errorf("segment: offset index size %d is not a multiple of entry size %d", size, offsetIndexEntrySize)
	}
	return &offsetIndex{f: f, entries: size / offsetIndexEntrySize}, nil
}

func (idx *offsetIndex) append(relativeOffset int32, physicalPosition uint32) error {
	buf := encodeOffsetIndexEntry(offsetIndexEntry{relativeOffset, physicalPosition})
	if _, err := idx.f.WriteAt(buf[:], idx.entries*offsetIndexEntrySize); err != nil {
		return err
	}
	idx.entries++
	return nil
}

// lookup returns the physical position of the entry with the greatest
// relativeOffset <= target, or 0 if target precedes every indexed entry (the
// caller is expected to scan forward from the start of the log in that case).
func (idx *offsetIndex) lookup(target int32) (uint32, error) {
	if idx.entries == 0 {
		return 0, nil
	}
	lo, hi := int64(0), idx.entries-1
	var best uint32
	found := false
	var buf [offsetIndexEntrySize]byte
	for lo <= hi {
		mid := lo + (hi-lo)/2
		if _, err := idx.f.ReadAt(buf[:], mid*offsetIndexEntrySize); err != nil {
			return 0, err
		}
		e := decodeOffsetIndexEntry(buf[:])
		if e.relativeOffset <= target {
			best = e.physicalPosition
			found = true
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if !found {
		return 0, nil
	}
	return best, nil
}

func (idx *offsetIndex) truncate(entries int64) error {
	if err := idx.f.Truncate(entries * offsetIndexEntrySize); err != nil {
		return err
	}
	idx.entries = entries
	return nil
}

func (idx *offsetIndex) sync() error {
	return idx.f.Sync()
}

func (idx *offsetIndex) close() error {
	return idx.f.Close()
}
