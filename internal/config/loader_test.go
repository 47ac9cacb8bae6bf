package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/huecast/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		convey.Reset(clearConfigEnvVars)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.ShutdownTimeout, convey.ShouldEqual, 10*time.Second)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("HUECAST_ADDR", ":8080")
			_ = os.Setenv("HUECAST_QUEUE_SIZE", "500")
			_ = os.Setenv("HUECAST_SAMPLE_INTERVAL_MINS", "5")
			_ = os.Setenv("HUECAST_LAYERS", "3,4,4,1")
			_ = os.Setenv("HUECAST_LEARNING_RATE", "0.25")
			_ = os.Setenv("HUECAST_SEED", "42")
			_ = os.Setenv("HUECAST_SHUTDOWN_TIMEOUT", "3s")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.SampleIntervalMins, convey.ShouldEqual, 5)
				convey.So(cfg.Layers, convey.ShouldEqual, "3,4,4,1")
				convey.So(cfg.LearningRate, convey.ShouldEqual, 0.25)
				convey.So(cfg.Seed, convey.ShouldEqual, uint64(42))
				convey.So(cfg.ShutdownTimeout, convey.ShouldEqual, 3*time.Second)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfig(t, `
addr: ":9090"
queue_size: 300
store_driver: memory
light_id: /lights/2
epochs: 50
`)
			_ = os.Setenv("HUECAST_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, "memory")
				convey.So(cfg.LightID, convey.ShouldEqual, "/lights/2")
				convey.So(cfg.Epochs, convey.ShouldEqual, 50)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			})
		})

		convey.Convey("When both file and environment set a key", func() {
			path := writeConfig(t, "addr: \":9090\"\nqueue_size: 300\n")
			_ = os.Setenv("HUECAST_CONFIG", path)
			_ = os.Setenv("HUECAST_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the environment wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 300)
			})
		})

		convey.Convey("When an explicit file is passed", func() {
			path := writeConfig(t, "threshold: 0.7\n")

			cfg, err := config.LoadFile(ctx, path)

			convey.Convey("Then it is used without HUECAST_CONFIG", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Threshold, convey.ShouldEqual, 0.7)
			})
		})

		convey.Convey("When the YAML is invalid", func() {
			_ = os.Setenv("HUECAST_CONFIG", writeConfig(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then ErrLoadConfig is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_ = os.Setenv("HUECAST_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then ErrLoadConfig is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the addr is blanked", func() {
			_ = os.Setenv("HUECAST_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "huecast.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"HUECAST_CONFIG", "HUECAST_ADDR", "HUECAST_QUEUE_SIZE", "HUECAST_SAMPLE_INTERVAL_MINS",
		"HUECAST_LAYERS", "HUECAST_LEARNING_RATE", "HUECAST_SEED", "HUECAST_SHUTDOWN_TIMEOUT",
	} {
		_ = os.Unsetenv(key)
	}
}
