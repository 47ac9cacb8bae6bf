package repository

import (
	"fmt"
	"time"

	"github.com/okian/huecast/pkg/metrics"
)

// Backend names accepted by NewStore.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// NewStore builds a store for kind. path is used by the sqlite backend.
func NewStore(kind, path string, opts ...Option) (Store, error) {
	switch kind {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		if path == "" {
			return nil, ErrPathRequired
		}
		return NewSQLiteStore(path, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, kind)
	}
}

func recordLatency(op string, d time.Duration) {
	metrics.RecordStoreLatency(op, float64(d.Microseconds())/1000)
}
