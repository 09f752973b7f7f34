// Package partitionlog implements PartitionLog: the ordered, strictly
// increasing-base-offset collection of segments backing one topic-partition,
// with segment rollover, offset/sequential reads, and retention enforcement.
package partitionlog

import "errors"

var (
	// ErrOffsetOutOfRange is returned when a requested offset precedes the
	// oldest segment's base offset.
	ErrOffsetOutOfRange = errors.New("partitionlog: offset out of range")
	// ErrCannotRemoveLastSegment is returned by RemoveSegment when asked to
	// remove the sole remaining segment, which is always the active one.
	ErrCannotRemoveLastSegment = errors.New("partitionlog: cannot remove the only remaining segment")
	// ErrSegmentIndexOutOfRange is returned by RemoveSegment for an index
	// outside the current segment slice.
	ErrSegmentIndexOutOfRange = errors.New("partitionlog: segment index out of range")
)
