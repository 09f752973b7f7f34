package batch

import (
	"encoding/binary"
	"hash/crc32"

	"forge/internal/record"
	"forge/internal/wire"
)

// SupportedMagic is the only record batch version this engine decodes.
const SupportedMagic int8 = 2

const (
	partitionLeaderEpochSize = 4
	magicSize                = 1
	crcSize                  = 4
	// headerCoreSize is the span between batch_length and the CRC-covered
	// payload: partition leader epoch, magic byte, and the CRC field itself.
	// batch_length counts these bytes; the CRC does not cover them.
	headerCoreSize = partitionLeaderEpochSize + magicSize + crcSize

	// HeaderSize is the fixed-width prefix that batch_length does not count:
	// base offset (i64) followed by batch_length (i32).
	HeaderSize = 8 + 4
	// LengthFieldOffset is the byte offset of the batch_length field from the
	// start of the encoded batch, used by callers that read the declared
	// length from a raw header before decoding the rest of the batch.
	LengthFieldOffset = 8
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// RecordBatch is the on-disk/on-wire envelope around a run of records that
// share a base offset and base timestamp.
type RecordBatch struct {
	BaseOffset           int64
	BatchLength          int32
	PartitionLeaderEpoch int32
	Magic                int8
	CRC                  uint32
	Attributes           int16
	LastOffsetDelta      int32
	BaseTimestamp        int64
	MaxTimestamp         int64
	ProducerID           int64
	ProducerEpoch        int16
	BaseSequence         int32
	RecordsCount         int32
	Records              []record.Record
}

// Encode serializes b and returns the full wire representation, with
// BatchLength and CRC computed fresh from the payload rather than taken from
// b's fields.
func Encode(dst []byte, b RecordBatch) []byte {
	var payload []byte
	payload = wire.BigEndian.AppendUint16(payload, uint16(b.Attributes))
	payload = wire.BigEndian.AppendUint32(payload, uint32(b.LastOffsetDelta))
	payload = wire.BigEndian.AppendUint64(payload, uint64(b.BaseTimestamp))
	payload = wire.BigEndian.AppendUint64(payload, uint64(b.MaxTimestamp))
	payload = wire.BigEndian.AppendUint64(payload, uint64(b.ProducerID))
	payload = wire.BigEndian.AppendUint16(payload, uint16(b.ProducerEpoch))
	payload = wire.BigEndian.AppendUint32(payload, uint32(b.BaseSequence))
	payload = wire.BigEndian.AppendUint32(payload, uint32(b.RecordsCount))
	for _, r := range b.Records {
		payload = record.Encode(payload, r)
	}

	batchLength := int32(headerCoreSize + len(payload))
	crc := crc32.Checksum(payload, crcTable)

	dst = wire.BigEndian.AppendUint64(dst, uint64(b.BaseOffset))
	dst = wire.BigEndian.AppendUint32(dst, uint32(batchLength))
	dst = wire.BigEndian.AppendUint32(dst, uint32(b.PartitionLeaderEpoch))
	dst = append(dst, byte(b.Magic))
	dst = wire.BigEndian.AppendUint32(dst, crc)
	dst = append(dst, payload...)
	return dst
}

// Decode reads one complete batch from the start of buf, validating the
// magic byte and CRC. The returned batch's Records share the exact slices
// the caller's buf held for Key/Value where those were non-nil (no extra
// copy beyond what record.Decode itself performs).
func Decode(buf []byte) (RecordBatch, int, error) {
	if len(buf) < HeaderSize+headerCoreSize {
		return RecordBatch{}, 0, ErrTruncated
	}

	var b RecordBatch
	b.BaseOffset = int64(binary.BigEndian.Uint64(buf[0:8]))
	b.BatchLength = int32(binary.BigEndian.Uint32(buf[8:12]))
	b.PartitionLeaderEpoch = int32(binary.BigEndian.Uint32(buf[12:16]))
	b.Magic = int8(buf[16])
	b.CRC = binary.BigEndian.Uint32(buf[17:21])

	if b.Magic != SupportedMagic {
		return RecordBatch{}, 0, ErrUnsupportedMagic
	}

	payloadLen := int(b.BatchLength) - headerCoreSize
	if payloadLen < 0 {
		return RecordBatch{}, 0, ErrTruncated
	}
	total := HeaderSize + headerCoreSize + payloadLen
	if len(buf) < total {
		return RecordBatch{}, 0, ErrTruncated
	}
	payload := buf[HeaderSize+headerCoreSize : total]

	if crc32.Checksum(payload, crcTable) != b.CRC {
		return RecordBatch{}, 0, ErrCRCMismatch
	}

	offset := 0
	b.Attributes = int16(binary.BigEndian.Uint16(payload[offset:]))
	offset += 2
	b.LastOffsetDelta = int32(binary.BigEndian.Uint32(payload[offset:]))
	offset += 4
	b.BaseTimestamp = int64(binary.BigEndian.Uint64(payload[offset:]))
	offset += 8
	b.MaxTimestamp = int64(binary.BigEndian.Uint64(payload[offset:]))
	offset += 8
	b.ProducerID = int64(binary.BigEndian.Uint64(payload[offset:]))
	offset += 8
	b.ProducerEpoch = int16(binary.BigEndian.Uint16(payload[offset:]))
	offset += 2
	b.BaseSequence = int32(binary.BigEndian.Uint32(payload[offset:]))
	offset += 4
	b.RecordsCount = int32(binary.BigEndian.Uint32(payload[offset:]))
	offset += 4

	if b.RecordsCount > 0 {
		b.Records = make([]record.Record, 0, b.RecordsCount)
	}
	for i := int32(0); i < b.RecordsCount; i++ {
		r, n, err := record.Decode(payload[offset:])
		if err != nil {
			return RecordBatch{}, 0, err
		}
		offset += n
		b.Records = append(b.Records, r)
	}

	return b, total, nil
}
