package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"forge/internal/wire"
)

const (
	MAX_REQUEST_SIZE = 100 * 1024 * 1024

	// FIXED_REQUEST_HEADER_SIZE is the fixed portion of a Kafka RequestHeader v1.
	FIXED_REQUEST_HEADER_SIZE   = REQUEST_API_KEY_SIZE + REQUEST_API_VERSION_SIZE + REQUEST_CORRELATION_ID_SIZE
	REQUEST_API_KEY_SIZE        = 2
	REQUEST_API_VERSION_SIZE    = 2
	REQUEST_CORRELATION_ID_SIZE = 4
	REQUEST_CLIENT_ID_SIZE      = 2
)

const (
	ApiKeyProduce = 0
	ApiKeyFetch   = 1
)

// RequestHeader is the Kafka RequestHeader v1 shape this broker understands.
type RequestHeader struct {
	ApiKey        int16
	ApiVersion    int16
	CorrelationID int32
	ClientID      string // parsed and kept, not otherwise used
}

type Request struct {
	Size      int32 // not part of the header itself; the framing prefix
	Header    RequestHeader
	Body      []byte
	rawBuffer *[]byte // backing buffer, returned to the pool by Release
}

// Release returns the request's backing buffer to the pool. Must be called
// once the caller is done reading Body.
func (r *Request) Release() {
	if r.rawBuffer != nil {
		PutBuffer(r.rawBuffer)
		r.rawBuffer = nil
	}
}

func ReadRequest(r io.Reader) (*Request, error) {

	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return nil, err
	}
	size := int32(binary.BigEndian.Uint32(sizeBuf[:]))

	if size <= 0 || size > MAX_REQUEST_SIZE {
		return nil, ErrInvalidRequestSize
	}

	bufPtr := GetBufferWithCapacity(int(size))
	packet := *bufPtr

	if _, err := io.ReadFull(r, packet); err != nil {
		PutBuffer(bufPtr)
		return nil, err
	}

	if len(packet) < FIXED_REQUEST_HEADER_SIZE+REQUEST_CLIENT_ID_SIZE {
		PutBuffer(bufPtr)
		return nil, ErrPacketTooShort
	}

	offset := 0
	apiKey := int16(binary.BigEndian.Uint16(packet[offset:]))
	offset += REQUEST_API_KEY_SIZE
	apiVersion := int16(binary.BigEndian.Uint16(packet[offset:]))
	offset += REQUEST_API_VERSION_SIZE
	correlationID := int32(binary.BigEndian.Uint32(packet[offset:]))
	offset += REQUEST_CORRELATION_ID_SIZE

	// ClientID is the same i16-length-prefixed string primitive spec.md
	// §4.1 defines; a negative length decodes to "" with no null distinction.
	clientID, n, err := wire.String(packet[offset:])
	if err != nil {
		PutBuffer(bufPtr)
		if errors.Is(err, wire.ErrTruncated) {
			return nil, ErrPacketTooShort
		}
		return nil, fmt.Errorf("protocol: decode client id: %w", err)
	}
	offset += n

	header := RequestHeader{
		ApiKey:        apiKey,
		ApiVersion:    apiVersion,
		CorrelationID: correlationID,
		ClientID:      clientID,
	}

	return &Request{
		Size:      size,
		Header:    header,
		Body:      packet[offset:], // body starts where the client ID ends
		rawBuffer: bufPtr,
	}, nil
}
