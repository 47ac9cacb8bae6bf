// Package simulate generates synthetic light histories and replays them
// against a running service.
package simulate

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/okian/huecast/internal/domain/model"
)

// Config describes a synthetic history.
type Config struct {
	From, To time.Time // inclusive days, UTC
	LightID  string
	Seed     uint64
	// Jitter is the maximum deviation applied to each switch time.
	Jitter time.Duration
}

// span is a period of the day during which the light is on, as offsets
// from midnight.
type span struct {
	on, off time.Duration
}

func hm(h, m int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

// Household habits: early mornings and evenings on weekdays, a late
// morning and a longer evening at weekends.
var (
	weekdaySpans = []span{{hm(6, 45), hm(7, 50)}, {hm(18, 10), hm(23, 5)}}
	weekendSpans = []span{{hm(9, 30), hm(10, 40)}, {hm(17, 30), hm(23, 50)}}
)

// DefaultJitter is applied when Config.Jitter is zero.
const DefaultJitter = 20 * time.Minute

// Generate returns the on/off events of the configured history in
// ascending time order. The same Config always yields the same events.
func Generate(cfg Config) ([]model.Event, error) {
	from := day(cfg.From)
	to := day(cfg.To)
	if from.IsZero() || to.IsZero() {
		return nil, fmt.Errorf("%w: from and to are required", ErrInvalidRange)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidRange,
			to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	jitter := cfg.Jitter
	if jitter <= 0 {
		jitter = DefaultJitter
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5bd1e995))
	ns := uuid.NewSHA1(uuid.NameSpaceURL, []byte("huecast:"+cfg.LightID))

	var out []model.Event
	last := time.Time{}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		spans := weekdaySpans
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			spans = weekendSpans
		}
		for _, sp := range spans {
			on := d.Add(sp.on + shift(rng, jitter))
			off := d.Add(sp.off + shift(rng, jitter))
			if !on.After(last) {
				on = last.Add(time.Minute)
			}
			if !off.After(on) {
				off = on.Add(time.Minute)
			}
			out = append(out, event(ns, on, model.On), event(ns, off, model.Off))
			last = off
		}
	}
	return out, nil
}

func shift(rng *rand.Rand, jitter time.Duration) time.Duration {
	return time.Duration(rng.Int64N(int64(2*jitter))) - jitter
}

func event(ns uuid.UUID, at time.Time, st model.LightState) model.Event {
	id := uuid.NewSHA1(ns, []byte(at.Format(time.RFC3339Nano)))
	return model.Event{ID: id.String(), Instant: at.Truncate(time.Second), State: st}
}

func day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
