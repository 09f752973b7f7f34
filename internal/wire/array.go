package wire

// PutCompactArrayLen appends a compact array's unsigned-varint length header
// (off-by-one null convention: 0 means null/empty). Callers encode elements
// themselves immediately after.
func PutCompactArrayLen(dst []byte, n int) []byte {
	return PutUnsignedVarint(dst, uint32(n)+1)
}

// CompactArrayLen decodes a compact array's length header, returning the
// element count (0 for null/empty) and bytes consumed. Callers decode
// elements themselves starting at the returned offset.
func CompactArrayLen(buf []byte) (int, int, error) {
	n, consumed, err := UnsignedVarint(buf)
	if err != nil {
		return 0, 0, err
	}
	if n == 0 {
		return 0, consumed, nil
	}
	return int(n - 1), consumed, nil
}
