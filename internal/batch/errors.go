// Package batch implements the RecordBatch envelope: the self-describing,
// CRC-protected container that segments store one per append and that wraps
// a run of records sharing a base offset and base timestamp.
package batch

import "errors"

var (
	// ErrUnsupportedMagic is returned when the magic byte is not 2, the only
	// batch version this engine understands.
	ErrUnsupportedMagic = errors.New("batch: unsupported magic byte")
	// ErrCRCMismatch is returned when the stored CRC does not match the CRC
	// computed over the decoded payload.
	ErrCRCMismatch = errors.New("batch: crc mismatch")
	// ErrTruncated is returned when buf ends before a complete batch can be read.
	ErrTruncated = errors.New("batch: truncated input")
)
