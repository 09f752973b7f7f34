package broker

import "forge/internal/partitionlog"

// Config is assembled by cmd/broker, either with defaults or values read
// from the environment. No CLI/env parsing framework is pulled in here; the
// bootstrap layer stays a plain struct literal.
type Config struct {
	ListenAddr string
	BaseDir    string

	// Topic and Partition identify the single topic-partition this broker
	// instance serves. They key the entry in the resource cache.
	Topic     string
	Partition int32

	PartitionLog partitionlog.Config

	// CacheCapacity bounds the number of open PartitionLog instances the
	// resource cache holds. 0 uses the cache's own default.
	CacheCapacity int
}
