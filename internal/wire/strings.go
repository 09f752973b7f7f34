package wire

import (
	"encoding/binary"
	"unicode/utf8"
)

// PutString appends an i16-length-prefixed string.
func PutString(dst []byte, s string) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(int16(len(s))))
	return append(dst, s...)
}

// String decodes an i16-length-prefixed string. A negative length decodes to
// the empty string with no null/empty distinction, per the wire format.
func String(buf []byte) (string, int, error) {
	if len(buf) < 2 {
		return "", 0, ErrTruncated
	}
	n := int16(binary.BigEndian.Uint16(buf))
	if n < 0 {
		return "", 2, nil
	}
	end := 2 + int(n)
	if len(buf) < end {
		return "", 0, ErrTruncated
	}
	s := buf[2:end]
	if !utf8.Valid(s) {
		return "", 0, ErrBadEncoding
	}
	return string(s), end, nil
}

// PutCompactString appends an unsigned-varint-prefixed string using the
// off-by-one null convention: n == 0 means empty/null, otherwise n-1 is the length.
func PutCompactString(dst []byte, s string) []byte {
	dst = PutUnsignedVarint(dst, uint32(len(s))+1)
	return append(dst, s...)
}

// CompactString decodes a compact string. n == 0 decodes to "".
func CompactString(buf []byte) (string, int, error) {
	n, consumed, err := UnsignedVarint(buf)
	if err != nil {
		return "", 0, err
	}
	if n == 0 {
		return "", consumed, nil
	}
	length := int(n - 1)
	end := consumed + length
	if len(buf) < end {
		return "", 0, ErrTruncated
	}
	s := buf[consumed:end]
	if !utf8.Valid(s) {
		return "", 0, ErrBadEncoding
	}
	return string(s), end, nil
}

// PutCompactBytes appends an unsigned-varint-prefixed byte sequence with the
// same off-by-one null convention as PutCompactString.
func PutCompactBytes(dst []byte, b []byte) []byte {
	dst = PutUnsignedVarint(dst, uint32(len(b))+1)
	return append(dst, b...)
}

// CompactBytes decodes a compact byte sequence. n == 0 decodes to an empty (non-nil) slice.
func CompactBytes(buf []byte) ([]byte, int, error) {
	n, consumed, err := UnsignedVarint(buf)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return []byte{}, consumed, nil
	}
	length := int(n - 1)
	end := consumed + length
	if len(buf) < end {
		return nil, 0, ErrTruncated
	}
	return buf[consumed:end], end, nil
}

// PutNullableBytes appends a signed-varint-length-prefixed byte sequence; a
// nil slice is encoded as length -1 (null).
func PutNullableBytes(dst []byte, b []byte) []byte {
	if b == nil {
		return PutVarint(dst, -1)
	}
	dst = PutVarint(dst, int32(len(b)))
	return append(dst, b...)
}

// NullableBytes decodes a signed-varint-length-prefixed byte sequence. A
// negative length decodes to nil, preserving the null/empty/present distinction.
func NullableBytes(buf []byte) ([]byte, int, error) {
	length, consumed, err := Varint(buf)
	if err != nil {
		return nil, 0, err
	}
	if length < 0 {
		return nil, consumed, nil
	}
	end := consumed + int(length)
	if len(buf) < end {
		return nil, 0, ErrTruncated
	}
	return buf[consumed:end], end, nil
}
