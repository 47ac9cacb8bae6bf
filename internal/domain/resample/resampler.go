// Package resample turns a time-ordered stream of light events into
// samples on a fixed interval grid.
//
// A single event only says what the state became at that instant, so a
// sample can be emitted only once a later (horizon) event bounds the
// window. Samples therefore lag the known events by at least one event.
package resample

import (
	"time"

	"github.com/okian/huecast/internal/domain/model"
)

// DefaultInterval is the sampling interval used when none is configured.
const DefaultInterval = 15 * time.Minute

// Resampler is a pull-based event to sample transducer.
// It is not safe for concurrent use.
type Resampler struct {
	interval time.Duration

	// pending events not yet consumed, oldest at head
	pending []model.Event
	head    int

	state      model.LightState
	sampleTime time.Time // zero until the first event is consumed

	// the next known event the cursor must not reach
	horizon    model.Event
	hasHorizon bool
}

// New creates a Resampler.
func New(opts ...Option) *Resampler {
	r := &Resampler{interval: DefaultInterval}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interval returns the sampling interval.
func (r *Resampler) Interval() time.Duration {
	return r.interval
}

// Pending returns the number of ingested events not yet consumed.
func (r *Resampler) Pending() int {
	return len(r.pending) - r.head
}

// Ingest queues an event. Events must arrive in ascending instant order.
func (r *Resampler) Ingest(e model.Event) {
	r.pending = append(r.pending, e)
}

func (r *Resampler) pop() (model.Event, bool) {
	if r.head == len(r.pending) {
		return model.Event{}, false
	}
	e := r.pending[r.head]
	r.pending[r.head] = model.Event{}
	r.head++
	// reclaim the consumed prefix once it dominates the backing array
	if r.head == len(r.pending) {
		r.pending = r.pending[:0]
		r.head = 0
	} else if r.head > 64 && r.head*2 > len(r.pending) {
		n := copy(r.pending, r.pending[r.head:])
		r.pending = r.pending[:n]
		r.head = 0
	}
	return e, true
}

// Next returns the next sample, or false when more events are needed.
// A false result leaves the state intact; ingest more events and call
// Next again to resume.
func (r *Resampler) Next() (model.Sample, bool) {
	if r.sampleTime.IsZero() {
		first, ok := r.pop()
		if !ok {
			return model.Sample{}, false
		}
		r.sampleTime = first.UTC().Round(r.interval)
		r.state = first.State
	}

	if !r.hasHorizon {
		r.horizon, r.hasHorizon = r.pop()
		if !r.hasHorizon {
			return model.Sample{}, false
		}
	}

	boundary := r.horizon.UTC()
	for !r.sampleTime.Before(boundary) {
		next, ok := r.pop()
		if !ok {
			return model.Sample{}, false
		}
		r.state = r.horizon.State
		r.horizon = next
		boundary = next.UTC().Add(-r.interval)
	}

	s := model.Sample{Instant: r.sampleTime, State: r.state}
	r.sampleTime = r.sampleTime.Add(r.interval)
	return s, true
}

// Drain pulls samples until the resampler blocks.
func (r *Resampler) Drain() []model.Sample {
	var out []model.Sample
	for {
		s, ok := r.Next()
		if !ok {
			return out
		}
		out = append(out, s)
	}
}
