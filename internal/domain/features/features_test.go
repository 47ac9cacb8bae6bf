package features_test

import (
	"testing"
	"time"

	"github.com/okian/huecast/internal/domain/features"
	"github.com/okian/huecast/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestVector(t *testing.T) {
	Convey("Given a sample on a Sunday afternoon in January", t, func() {
		s := model.Sample{Instant: time.Date(2023, 1, 1, 16, 45, 0, 0, time.UTC), State: model.On}

		Convey("When it is encoded", func() {
			v := features.Vector(s)

			Convey("Then each component is scaled as expected", func() {
				So(v, ShouldHaveLength, features.Size)
				So(v[0], ShouldAlmostEqual, 1005.0/1440, 1e-12)
				So(v[1], ShouldEqual, 1.0)
				So(v[2], ShouldEqual, 0.0)
				So(features.Label(s), ShouldEqual, 1.0)
			})
		})
	})

	Convey("Given a sample at midnight on a Monday in December", t, func() {
		s := model.Sample{Instant: time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC), State: model.Off}

		Convey("When it is encoded", func() {
			v := features.Vector(s)

			Convey("Then the lower and upper ends of the ranges are hit", func() {
				So(v, ShouldResemble, []float64{0, 0, 1})
				So(features.Label(s), ShouldEqual, 0.0)
			})
		})
	})

	Convey("Given a sample in a non-UTC zone", t, func() {
		zone := time.FixedZone("X", 2*3600)
		s := model.Sample{Instant: time.Date(2023, 1, 2, 1, 0, 0, 0, zone)}

		Convey("Then it is encoded in UTC", func() {
			v := features.Vector(s)
			So(v[0], ShouldAlmostEqual, 23.0*60/1440, 1e-12)
			So(v[1], ShouldEqual, 1.0)
		})
	})
}

func TestDataset(t *testing.T) {
	Convey("Given a few samples", t, func() {
		base := time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC)
		samples := []model.Sample{
			{Instant: base, State: model.On},
			{Instant: base.Add(15 * time.Minute), State: model.Off},
		}

		Convey("When a dataset is built", func() {
			in, out := features.Dataset(samples)

			Convey("Then inputs and targets line up", func() {
				So(in, ShouldHaveLength, 2)
				So(out, ShouldResemble, [][]float64{{1}, {0}})
				So(in[1], ShouldResemble, features.Vector(samples[1]))
			})
		})

		Convey("When one-hot targets are built", func() {
			out := features.OneHot(samples)

			Convey("Then the on unit is last", func() {
				So(out, ShouldResemble, [][]float64{{0, 1}, {1, 0}})
			})
		})
	})
}
