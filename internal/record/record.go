package record

import "forge/internal/wire"

// Record is a single message inside a batch. OffsetDelta and TimestampDelta
// are relative to the enclosing batch's base offset and base timestamp;
// callers resolve absolute values once the enclosing batch is known.
type Record struct {
	Attributes     int8
	TimestampDelta int64
	OffsetDelta    int32
	Key            []byte
	Value          []byte
	Headers        []Header
}

// Encode appends the wire representation of r to dst: a varint self-length
// followed by the record body, matching the layout decoders expect to find
// inside a batch payload.
func Encode(dst []byte, r Record) []byte {
	body := encodeBody(nil, r)
	dst = wire.PutVarint(dst, int32(len(body)))
	return append(dst, body...)
}

func encodeBody(dst []byte, r Record) []byte {
	dst = append(dst, byte(r.Attributes))
	dst = wire.PutVarlong(dst, r.TimestampDelta)
	dst = wire.PutVarint(dst, r.OffsetDelta)
	dst = wire.PutNullableBytes(dst, r.Key)
	dst = wire.PutNullableBytes(dst, r.Value)
	dst = wire.PutVarint(dst, int32(len(r.Headers)))
	for _, h := range r.Headers {
		dst = encodeHeader(dst, h)
	}
	return dst
}

// Decode reads one length-framed record from the start of buf, returning the
// record and the number of bytes consumed (including the length prefix).
func Decode(buf []byte) (Record, int, error) {
	length, n, err := wire.Varint(buf)
	if err != nil {
		return Record{}, 0, err
	}
	if length < 0 {
		return Record{}, 0, wire.ErrTruncated
	}
	offset := n
	end := offset + int(length)
	if len(buf) < end {
		return Record{}, 0, wire.ErrTruncated
	}

	r, err := decodeBody(buf[offset:end])
	if err != nil {
		return Record{}, 0, err
	}
	return r, end, nil
}

func decodeBody(buf []byte) (Record, error) {
	if len(buf) < 1 {
		return Record{}, wire.ErrTruncated
	}
	var r Record
	r.Attributes = int8(buf[0])
	offset := 1

	tsDelta, n, err := wire.Varlong(buf[offset:])
	if err != nil {
		return Record{}, err
	}
	r.TimestampDelta = tsDelta
	offset += n

	offDelta, n, err := wire.Varint(buf[offset:])
	if err != nil {
		return Record{}, err
	}
	r.OffsetDelta = offDelta
	offset += n

	key, n, err := wire.NullableBytes(buf[offset:])
	if err != nil {
		return Record{}, err
	}
	r.Key = key
	offset += n

	value, n, err := wire.NullableBytes(buf[offset:])
	if err != nil {
		return Record{}, err
	}
	r.Value = value
	offset += n

	headersCount, n, err := wire.Varint(buf[offset:])
	if err != nil {
		return Record{}, err
	}
	offset += n

	if headersCount > 0 {
		r.Headers = make([]Header, 0, headersCount)
	}
	for i := int32(0); i < headersCount; i++ {
		h, n, err := decodeHeader(buf[offset:])
		if err != nil {
			return Record{}, err
		}
		offset += n
		r.Headers = append(r.Headers, h)
	}

	return r, nil
}
