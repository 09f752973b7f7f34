// Package protocol implements the minimal request/response framing the
// broker speaks: a 4-byte length-prefixed frame wrapping a fixed
// Kafka-style request header, and a symmetric response frame.
package protocol

import "errors"

var (
	ErrInvalidRequestSize = errors.New("protocol: invalid request size")
	ErrPacketTooShort     = errors.New("protocol: packet too short")
)
