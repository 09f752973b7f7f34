package protocol

import (
	"encoding/binary"
	"io"
)

// Response framing: [Size(4)] + [CorrelationID(4)] + [Body...].
const (
	RESPONSE_HEADER_SIZE = CORRELATION_ID_SIZE
	CORRELATION_ID_SIZE  = 4

	FRAMING_SIZE = 4
)

// SendResponse writes the framed response header and body to w. The header
// is built on a stack array to avoid a heap allocation per response; body is
// written directly to w rather than copied into the header buffer.
func SendResponse(w io.Writer, correlationID int32, body []byte) error {

	payloadSize := RESPONSE_HEADER_SIZE + len(body)

	var headerBuf [FRAMING_SIZE + RESPONSE_HEADER_SIZE]byte

	var offset = 0

	binary.BigEndian.PutUint32(headerBuf[offset:offset+FRAMING_SIZE], uint32(payloadSize))
	offset += FRAMING_SIZE

	binary.BigEndian.PutUint32(headerBuf[offset:offset+CORRELATION_ID_SIZE], uint32(correlationID))
	offset += CORRELATION_ID_SIZE

	if _, err := w.Write(headerBuf[:]); err != nil {
		return err
	}

	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}

	return nil
}
