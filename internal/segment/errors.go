package segment

import "errors"

var (
	// ErrOffsetOutOfRange is returned when a requested offset precedes a
	// segment's base offset. An offset beyond every batch the segment holds
	// is not an error: Read returns (nil, nil) for it.
	ErrOffsetOutOfRange = errors.New("segment: offset out of range")
	// ErrInsufficientData is returned when the log file ends mid-batch in a
	// way recovery could not repair (should not occur after Open succeeds).
	ErrInsufficientData = errors.New("segment: insufficient data")
	// ErrOffsetOverflow is returned when a batch's offset relative to its
	// segment's base offset does not fit in an i32.
	ErrOffsetOverflow = errors.New("segment: offset overflow")
)
