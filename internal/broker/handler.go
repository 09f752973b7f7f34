package broker

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"forge/internal/batch"
	"forge/internal/protocol"
)

const (
	PRODUCE_RESPONSE_BODY_SIZE = 8 // offset

	FETCH_REQUEST_BODY_SIZE = 12 // offset(8) + max_bytes(4)
)

func (b *Broker) handleRequest(req *protocol.Request) ([]byte, error) {
	switch req.Header.ApiKey {
	case protocol.ApiKeyProduce:
		return b.handleProduce(req)
	case protocol.ApiKeyFetch:
		return b.handleFetch(req)
	default:
		return nil, fmt.Errorf("unknown api key: %d", req.Header.ApiKey)
	}
}

// handleProduce treats req.Body as one already-encoded RecordBatch. The
// batch's base_offset field is overwritten by PartitionLog.Append with the
// offset actually assigned, so a caller-supplied value there is ignored.
func (b *Broker) handleProduce(req *protocol.Request) ([]byte, error) {
	offset, err := b.log.Append(req.Body)
	if err != nil {
		return nil, err
	}

	resp := make([]byte, PRODUCE_RESPONSE_BODY_SIZE)
	binary.BigEndian.PutUint64(resp, uint64(offset))

	return resp, nil
}

// handleFetch reads batches starting at the requested offset, re-encoding
// each one back to wire bytes and concatenating them into the response
// body. An out-of-range offset produces an empty body rather than an error
// response, matching a consumer polling past the log's current end.
func (b *Broker) handleFetch(req *protocol.Request) ([]byte, error) {

	if len(req.Body) < FETCH_REQUEST_BODY_SIZE {
		return nil, fmt.Errorf("invalid fetch body size")
	}

	fetchOffset := int64(binary.BigEndian.Uint64(req.Body[0:8]))
	maxBytes := int32(binary.BigEndian.Uint32(req.Body[8:12]))

	batches, _, err := b.log.ReadSequential(fetchOffset, int(maxBytes))
	if err != nil {
		b.logger.Warn("fetch read error", zap.Int64("offset", fetchOffset), zap.Error(err))
		return []byte{}, nil
	}

	if len(batches) == 0 {
		return []byte{}, nil
	}

	var resp []byte
	for _, rb := range batches {
		resp = batch.Encode(resp, *rb)
	}
	return resp, nil
}
