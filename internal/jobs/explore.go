package jobs

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/okian/huecast/internal/domain/model"
)

// EventSource streams light events in ascending time order.
type EventSource interface {
	Stream(ctx context.Context, from, to time.Time, fn func(model.Event) error) error
}

// Explore prints every event in r, numbered from 1, and returns the count.
func Explore(ctx context.Context, src EventSource, r Range, out io.Writer) (int, error) {
	n := 0
	err := src.Stream(ctx, r.From, r.To, func(e model.Event) error {
		n++
		_, err := fmt.Fprintf(out, "%d, %s %s %s\n", n, e.UTC().Format(time.RFC3339), e.State, e.ID)
		return err
	})
	return n, err
}
