package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/huecast/internal/domain/model"
	"github.com/okian/huecast/pkg/metrics"
)

// treap node keyed by sample instant in unix nanoseconds
type node struct {
	key   int64
	state model.LightState
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// upsert inserts key or overwrites the state of an existing key.
func upsert(n *node, key int64, state model.LightState, prio uint64) *node {
	if n == nil {
		return &node{key: key, state: state, prio: prio, size: 1}
	}
	switch {
	case key == n.key:
		n.state = state
		return n
	case key < n.key:
		n.left = upsert(n.left, key, state, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	default:
		n.right = upsert(n.right, key, state, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// collectRange appends nodes with lo <= key < hi in key order.
func collectRange(n *node, lo, hi int64, out *[]model.Sample) {
	if n == nil {
		return
	}
	if n.key >= lo {
		collectRange(n.left, lo, hi, out)
	}
	if n.key >= lo && n.key < hi {
		*out = append(*out, model.Sample{Instant: time.Unix(0, n.key).UTC(), State: n.state})
	}
	if n.key < hi {
		collectRange(n.right, lo, hi, out)
	}
}

// MemoryStore keeps samples in a treap ordered by instant.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	root        *node
	rng         *rand.Rand
}

// NewMemoryStore creates an empty in-memory store. Call Init before use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	return nil
}

func (s *MemoryStore) SaveSamples(ctx context.Context, samples []model.Sample) error {
	defer observe("save", time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	for _, smp := range samples {
		s.root = upsert(s.root, smp.Instant.UnixNano(), smp.State, s.rng.Uint64())
	}
	metrics.RecordSamplesStored(len(samples))
	return nil
}

func (s *MemoryStore) Samples(ctx context.Context, from, to time.Time) ([]model.Sample, error) {
	defer observe("query", time.Now())
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lo, hi := bounds(from, to)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	out := make([]model.Sample, 0)
	collectRange(s.root, lo, hi, &out)
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return 0, ErrNotInitialized
	}
	return nsize(s.root), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	s.root = nil
	return nil
}

func bounds(from, to time.Time) (lo, hi int64) {
	lo, hi = minKey, maxKey
	if !from.IsZero() {
		lo = from.UnixNano()
	}
	if !to.IsZero() {
		hi = to.UnixNano()
	}
	return lo, hi
}

const (
	minKey = -1 << 63
	maxKey = 1<<63 - 1
)
