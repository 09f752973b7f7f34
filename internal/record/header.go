// Package record implements the individual record format nested inside a
// batch payload: a varint-framed record carrying an optional key, an
// optional value, and an ordered list of headers.
package record

import (
	"errors"
	"unicode/utf8"

	"forge/internal/wire"
)

// ErrInvalidHeaderKey is returned when a header's key length is negative or
// its bytes are not valid UTF-8.
var ErrInvalidHeaderKey = errors.New("record: invalid header key")

// Header is a single key/value pair attached to a record. The key is always
// present and UTF-8; the value may be nil (a header with no value is
// distinct from one with an empty value).
type Header struct {
	Key   string
	Value []byte
}

func encodeHeader(dst []byte, h Header) []byte {
	dst = wire.PutVarint(dst, int32(len(h.Key)))
	dst = append(dst, h.Key...)
	dst = wire.PutNullableBytes(dst, h.Value)
	return dst
}

func decodeHeader(buf []byte) (Header, int, error) {
	keyLen, n, err := wire.Varint(buf)
	if err != nil {
		return Header{}, 0, err
	}
	if keyLen < 0 {
		return Header{}, 0, ErrInvalidHeaderKey
	}
	offset := n
	end := offset + int(keyLen)
	if len(buf) < end {
		return Header{}, 0, wire.ErrTruncated
	}
	keyBytes := buf[offset:end]
	if !utf8.Valid(keyBytes) {
		return Header{}, 0, ErrInvalidHeaderKey
	}
	key := string(keyBytes)
	offset = end

	value, n, err := wire.NullableBytes(buf[offset:])
	if err != nil {
		return Header{}, 0, err
	}
	offset += n

	return Header{Key: key, Value: value}, offset, nil
}
