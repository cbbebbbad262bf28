package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := newLogger()

	require.NotNil(t, logger)
	formatter, ok := logger.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)

	assert.Equal(t, time.RFC3339Nano, formatter.TimestampFormat)
	assert.True(t, formatter.FullTimestamp)
	assert.Equal(t, logrus.WarnLevel, logger.Level)
}

func TestGetLogger_WithContextLogger(t *testing.T) {
	customLogger := logrus.NewEntry(logrus.New()).WithField("test", "value")
	ctx := WithLogger(context.Background(), customLogger)

	retrieved := G(ctx)
	assert.Equal(t, "value", retrieved.Data["test"])
}

func TestGetLogger_WithoutContextLogger(t *testing.T) {
	retrieved := G(context.Background())
	assert.Equal(t, L.Logger, retrieved.Logger)
}

func TestGetLogger_NilContext(t *testing.T) {
	assert.Equal(t, L, G(nil))
}

func TestWithInstall(t *testing.T) {
	ctx := WithInstall(context.Background(), "solid-js", ".claude/skills")
	assert.Equal(t, "solid-js", G(ctx).Data["skill"])
	assert.Equal(t, ".claude/skills", G(ctx).Data["dest"])

	nested := WithLogger(ctx, G(ctx).WithField("path", "/tmp/x"))
	assert.Equal(t, "solid-js", G(nested).Data["skill"])
	assert.Equal(t, "/tmp/x", G(nested).Data["path"])
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	setLoggerFormat(l, "json")

	ctx := WithLogger(context.Background(), logrus.NewEntry(l))
	G(ctx).Info("installed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["logLevel"])
	assert.Equal(t, "installed", entry["message"])

	ts, ok := entry["timestamp"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339Nano, ts)
	assert.NoError(t, err)
}

func TestConfigure(t *testing.T) {
	original := L.Logger.Level
	originalFormatter := L.Logger.Formatter
	t.Cleanup(func() {
		L.Logger.SetLevel(original)
		L.Logger.Formatter = originalFormatter
	})

	require.NoError(t, Configure("debug", "json"))
	assert.Equal(t, logrus.DebugLevel, L.Logger.Level)
	assert.IsType(t, &logrus.JSONFormatter{}, L.Logger.Formatter)

	require.NoError(t, Configure("", "fmt"))
	assert.Equal(t, logrus.DebugLevel, L.Logger.Level)
	assert.IsType(t, &logrus.TextFormatter{}, L.Logger.Formatter)

	assert.Error(t, Configure("loud", "fmt"))
}
