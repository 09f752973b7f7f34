package wire

import "encoding/binary"

// BigEndian is the on-disk byte order for every fixed-width integer field in
// this format, matching the Kafka wire convention the batch envelope follows.
var BigEndian = binary.BigEndian
