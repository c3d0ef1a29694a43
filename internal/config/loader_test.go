package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/inputreplay/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, config.BackendCSV)
				convey.So(cfg.DefaultSpeed, convey.ShouldEqual, 1.0)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("REPLAY_ADDR", ":8080")
			_ = os.Setenv("REPLAY_STORE_BACKEND", "SQLite")
			_ = os.Setenv("REPLAY_SQLITE_PATH", "/tmp/replay.db")
			_ = os.Setenv("REPLAY_DEFAULT_SPEED", "2.5")
			_ = os.Setenv("REPLAY_FRAME_INTERVAL_MS", "250")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, config.BackendSQLite)
				convey.So(cfg.StoreLocation(), convey.ShouldEqual, "/tmp/replay.db")
				convey.So(cfg.DefaultSpeed, convey.ShouldEqual, 2.5)
				convey.So(cfg.FrameIntervalMS, convey.ShouldEqual, 250)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
log_format: json
sessions_dir: /var/lib/replay
default_speed: 0.5
key_aliases:
  Key.enter: enter
  Key.space: space
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("REPLAY_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.SessionsDir, convey.ShouldEqual, "/var/lib/replay")
				convey.So(cfg.DefaultSpeed, convey.ShouldEqual, 0.5)
				convey.So(cfg.KeyAliases, convey.ShouldResemble, map[string]string{
					"Key.enter": "enter",
					"Key.space": "space",
				})
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
default_speed: 0.5
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("REPLAY_CONFIG", tmpFile)
			_ = os.Setenv("REPLAY_ADDR", ":8080") // overrides the file
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DefaultSpeed, convey.ShouldEqual, 0.5)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "info") // from defaults
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("REPLAY_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("REPLAY_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("REPLAY_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("REPLAY_DEFAULT_SPEED", "fast")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a negative speed", func() {
			_ = os.Setenv("REPLAY_DEFAULT_SPEED", "-1")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"REPLAY_CONFIG",
		"REPLAY_ADDR",
		"REPLAY_STORE_BACKEND",
		"REPLAY_SQLITE_PATH",
		"REPLAY_DEFAULT_SPEED",
		"REPLAY_FRAME_INTERVAL_MS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "replay-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
