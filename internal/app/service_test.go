package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/huecast/internal/app"
	"github.com/okian/huecast/internal/adapters/repository"
	"github.com/okian/huecast/internal/domain/model"
	"github.com/okian/huecast/internal/domain/types"
	"github.com/okian/huecast/internal/mlp"
	"github.com/okian/huecast/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func at(h, m int) time.Time {
	return time.Date(2023, 1, 1, h, m, 0, 0, time.UTC)
}

// waitForSamples polls the service until n samples are stored or the
// deadline passes.
func waitForSamples(svc *service.Service, n int) []model.Sample {
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := svc.Samples(context.Background(), time.Time{}, time.Time{})
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it reports its defaults before starting", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["interval"], ShouldEqual, "15m0s")
			So(stats["modelLoaded"], ShouldEqual, false)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithQueueSize(50),
			service.WithDedupeSize(25),
			service.WithSampleInterval(5*time.Minute),
		)

		Convey("Then the options are applied", func() {
			stats := svc.GetStats()
			So(stats["queueSize"], ShouldEqual, 50)
			So(stats["dedupeSize"], ShouldEqual, 25)
			So(stats["interval"], ShouldEqual, "5m0s")
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When it is used before starting", func() {
			err := svc.Enqueue(ctx, model.Event{ID: "a", Instant: at(10, 0)})

			Convey("Then ErrNotStarted is returned", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When starting and stopping the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["runId"], ShouldNotBeEmpty)

			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it is marked as stopped and a second stop is a no-op", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_Ingest(t *testing.T) {
	Convey("Given a started service on a five minute grid", t, func() {
		store := repository.NewMemoryStore()
		svc := service.New(service.WithStore(store), service.WithSampleInterval(5*time.Minute))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		Convey("When ordered events are enqueued", func() {
			So(svc.Enqueue(ctx, model.Event{ID: "a", Instant: at(16, 44), State: model.On}), ShouldBeNil)
			So(svc.Enqueue(ctx, model.Event{ID: "b", Instant: at(16, 56), State: model.Off}), ShouldBeNil)
			So(svc.Enqueue(ctx, model.Event{ID: "c", Instant: at(17, 20), State: model.On}), ShouldBeNil)

			Convey("Then the worker stores the bounded samples", func() {
				got := waitForSamples(svc, 6)
				So(got, ShouldResemble, []model.Sample{
					{Instant: at(16, 45), State: model.On},
					{Instant: at(16, 50), State: model.On},
					{Instant: at(16, 55), State: model.On},
					{Instant: at(17, 0), State: model.Off},
					{Instant: at(17, 5), State: model.Off},
					{Instant: at(17, 10), State: model.Off},
				})
				So(svc.GetStats()["storedSamples"], ShouldEqual, 6)
			})

			Convey("Then a bounded query returns a half-open window", func() {
				waitForSamples(svc, 6)
				got, err := svc.Samples(ctx, at(16, 50), at(17, 0))
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
			})
		})

		Convey("When the same event id is seen twice", func() {
			first := svc.SeenAndRecord(ctx, "dup")
			second := svc.SeenAndRecord(ctx, "dup")

			Convey("Then only the second is a duplicate", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(svc.Size(), ShouldEqual, 1)
			})

			Convey("Then unrecording allows a retry", func() {
				svc.Unrecord(ctx, "dup")
				So(svc.SeenAndRecord(ctx, "dup"), ShouldBeFalse)
			})
		})
	})
}

// retainedStore keeps its samples readable after the service closes it.
type retainedStore struct {
	*repository.MemoryStore
}

func (retainedStore) Close() error { return nil }

func TestService_Shutdown(t *testing.T) {
	Convey("Given a service started on a context that is then cancelled", t, func() {
		store := retainedStore{repository.NewMemoryStore()}
		svc := service.New(service.WithStore(store), service.WithSampleInterval(5*time.Minute))
		startCtx, cancel := context.WithCancel(context.Background())
		So(svc.Start(startCtx), ShouldBeNil)
		cancel()

		ctx := context.Background()
		Convey("When events are accepted before Stop", func() {
			So(svc.Enqueue(ctx, model.Event{ID: "a", Instant: at(16, 44), State: model.On}), ShouldBeNil)
			So(svc.Enqueue(ctx, model.Event{ID: "b", Instant: at(16, 56), State: model.Off}), ShouldBeNil)
			So(svc.Enqueue(ctx, model.Event{ID: "c", Instant: at(17, 20), State: model.On}), ShouldBeNil)

			stopCtx, stopCancel := context.WithTimeout(ctx, 5*time.Second)
			defer stopCancel()
			So(svc.Stop(stopCtx), ShouldBeNil)

			Convey("Then Stop drains the queue into the store", func() {
				got, err := store.Samples(ctx, time.Time{}, time.Time{})
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 6)
				So(got[0], ShouldResemble, model.Sample{Instant: at(16, 45), State: model.On})
				So(got[5], ShouldResemble, model.Sample{Instant: at(17, 10), State: model.Off})
			})

			Convey("Then further events are refused", func() {
				err := svc.Enqueue(ctx, model.Event{ID: "d", Instant: at(17, 30), State: model.Off})
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_DedupeBeforeStart(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("Then dedupe calls are no-ops", func() {
			So(func() { svc.Unrecord(ctx, "x") }, ShouldNotPanic)
			So(svc.SeenAndRecord(ctx, "x"), ShouldBeFalse)
			So(svc.SeenAndRecord(ctx, "x"), ShouldBeFalse)
			So(svc.Size(), ShouldEqual, 0)
		})
	})
}

func TestService_Predict(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := service.New(service.WithThreshold(0.5))
		ctx := context.Background()

		Convey("When no model is loaded", func() {
			_, err := svc.Predict(ctx, at(18, 0))

			Convey("Then ErrNoModel is returned", func() {
				So(errors.Is(err, types.ErrNoModel), ShouldBeTrue)
			})
		})

		Convey("When a network with the wrong input width is installed", func() {
			n := mlp.New(mlp.Config{Layers: []int{2, 3, 1}, LearningRate: 0.1}, mlp.WithSeed(1))
			err := svc.SetModel(n)

			Convey("Then it is refused", func() {
				So(errors.Is(err, service.ErrBadModel), ShouldBeTrue)
				So(svc.GetStats()["modelLoaded"], ShouldEqual, false)
			})
		})

		Convey("When a model is loaded from disk", func() {
			n := mlp.New(mlp.Config{Layers: []int{3, 4, 1}, LearningRate: 0.1}, mlp.WithSeed(7))
			path := filepath.Join(t.TempDir(), "model.json")
			So(n.Dump(path), ShouldBeNil)
			So(svc.LoadModel(path), ShouldBeNil)

			local := time.Date(2023, 1, 1, 19, 0, 0, 0, time.FixedZone("CET", 3600))
			p, err := svc.Predict(ctx, local)

			Convey("Then the prediction is classified against the threshold", func() {
				So(err, ShouldBeNil)
				So(p.At, ShouldEqual, at(18, 0))
				So(p.Probability, ShouldBeBetween, 0, 1)
				So(p.State, ShouldEqual, model.LightState(p.Probability >= 0.5))
				So(svc.GetStats()["modelLoaded"], ShouldEqual, true)
			})

			Convey("Then it matches the network output directly", func() {
				want := n.FeedForward([]float64{1080.0 / 1440, 1, 0})[0]
				So(p.Probability, ShouldAlmostEqual, want, 1e-12)
			})
		})

		Convey("When the model file is missing", func() {
			err := svc.LoadModel(filepath.Join(t.TempDir(), "absent.json"))

			Convey("Then the load error is returned", func() {
				So(errors.Is(err, mlp.ErrIO), ShouldBeTrue)
			})
		})
	})
}
