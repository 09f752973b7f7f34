package protocol

import (
	"sync"

	"go.uber.org/zap"
)

type PoolConfig struct {
	MaxPoolSize int
}

var DefaultPoolConfig = PoolConfig{
	MaxPoolSize: 1024 * 64,
}

var BytePool = sync.Pool{
	New: func() any {
		b := make([]byte, 4096)
		return &b
	},
}

// poolLogger is package-level because BytePool itself is; components that
// care about reallocation/discard events should call SetLogger once at
// startup rather than threading a logger through every buffer call.
var poolLogger = zap.NewNop()

// SetLogger points buffer pool diagnostics at logger instead of discarding them.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		poolLogger = logger
	}
}

func GetBufferWithCapacity(capacity int) *[]byte {
	ptr := BytePool.Get().(*[]byte)

	if cap(*ptr) < capacity {
		poolLogger.Debug("reallocating pooled buffer", zap.Int("capacity", capacity))
		b := make([]byte, capacity)
		return &b
	}

	*ptr = (*ptr)[:capacity]
	return ptr
}

func PutBuffer(ptr *[]byte) {
	if len(*ptr) > DefaultPoolConfig.MaxPoolSize {
		poolLogger.Debug("discarding oversized pooled buffer", zap.Int("length", len(*ptr)))
		return
	}

	BytePool.Put(ptr)
}
