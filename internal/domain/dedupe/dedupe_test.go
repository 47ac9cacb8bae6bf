package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/huecast/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When an event id is new", func() {
			seen := d.SeenAndRecord(ctx, "evt-1")

			Convey("Then it is recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the same id arrives twice", func() {
			d.SeenAndRecord(ctx, "evt-1")
			seen := d.SeenAndRecord(ctx, "evt-1")

			Convey("Then the second is a duplicate", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When an id is unrecorded", func() {
			d.SeenAndRecord(ctx, "evt-1")
			d.Unrecord(ctx, "evt-1")
			d.Unrecord(ctx, "never-seen")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a deduper bounded to three ids", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"a", "b", "c"} {
			So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
		}

		Convey("When a fourth id arrives", func() {
			So(d.SeenAndRecord(ctx, "d"), ShouldBeFalse)

			Convey("Then the oldest is forgotten and the rest remembered", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})

		Convey("When a middle id is unrecorded before overflow", func() {
			d.Unrecord(ctx, "b")
			d.SeenAndRecord(ctx, "d")

			Convey("Then nothing else is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("evt-%d", i))
		}

		Convey("Then every id is kept", func() {
			So(d.Size(), ShouldEqual, 1000)
			So(d.SeenAndRecord(ctx, "evt-0"), ShouldBeTrue)
		})
	})
}

func TestInMemoryDeduperConcurrent(t *testing.T) {
	Convey("Given many goroutines racing on the same ids", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !d.SeenAndRecord(context.Background(), fmt.Sprintf("evt-%d", i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each id is recorded exactly once", func() {
			So(fresh, ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}
