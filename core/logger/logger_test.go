package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ian-yc-kim/cnts-messaging-svc/core/logger"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json formatter", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithJSONFormatter(), logger.WithOutput(&buf))
		log.Info("hello", slog.String("key", "value"))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "hello", record["msg"])
		assert.Equal(t, "value", record["key"])
	})

	t.Run("level filters records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithLevel(slog.LevelWarn), logger.WithOutput(&buf))

		log.Info("dropped")
		assert.Zero(t, buf.Len())

		log.Warn("kept")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("production preset tags the service", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithProduction("messaging-svc"), logger.WithOutput(&buf))
		log.Info("started")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "messaging-svc", record["service"])
	})

	t.Run("development preset logs debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithDevelopment("messaging-svc"), logger.WithOutput(&buf))
		log.Debug("verbose")

		assert.Contains(t, buf.String(), "verbose")
	})

	t.Run("static attributes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithJSONFormatter(),
			logger.WithOutput(&buf),
			logger.WithAttr(slog.String("env", "test")))
		log.Info("tagged")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "test", record["env"])
	})
}

func TestAttrHelpers(t *testing.T) {
	t.Parallel()

	t.Run("error attr", func(t *testing.T) {
		t.Parallel()

		attr := logger.Error(errors.New("boom"))
		assert.Equal(t, "error", attr.Key)
		assert.Equal(t, "boom", attr.Value.String())
	})

	t.Run("nil error attr", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithJSONFormatter(), logger.WithOutput(&buf))
		assert.NotPanics(t, func() { log.Info("ok", logger.Error(nil)) })
	})

	t.Run("topic attr", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithJSONFormatter(), logger.WithOutput(&buf))
		log.Info("subscribed", logger.Topic("project", "42"))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "project:42", record["topic"])
	})

	t.Run("elapsed attr", func(t *testing.T) {
		t.Parallel()

		attr := logger.Elapsed(time.Now().Add(-time.Second))
		assert.Equal(t, "elapsed", attr.Key)
	})
}
