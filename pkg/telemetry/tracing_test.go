package telemetry

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false, ServiceName: "skillkit"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestGetSampler(t *testing.T) {
	description := func(cfg Config) string {
		s, err := getSampler(cfg)
		require.NoError(t, err)
		return s.Description()
	}

	assert.Equal(t, trace.AlwaysSample().Description(), description(Config{}))
	assert.Equal(t, trace.AlwaysSample().Description(), description(Config{SamplerType: "Always"}))
	assert.Equal(t, trace.NeverSample().Description(), description(Config{SamplerType: "never"}))
	assert.Contains(t, description(Config{SamplerType: "ratio", SamplerRatio: 0.5}), "TraceIDRatioBased{0.5}")
	assert.Contains(t, description(Config{SamplerType: "ratio", SamplerRatio: 4}), "AlwaysOnSampler")

	_, err := getSampler(Config{SamplerType: "bogus"})
	assert.ErrorContains(t, err, "unknown trace sampler")
}

func TestInitTracerRejectsUnknownSampler(t *testing.T) {
	_, err := InitTracer(context.Background(), Config{Enabled: true, SamplerType: "sometimes"})
	assert.ErrorContains(t, err, "sometimes")
}

func TestShutdownAllCollectsErrors(t *testing.T) {
	calls := 0
	fail := func(context.Context) error { calls++; return errors.New("flush failed") }
	ok := func(context.Context) error { calls++; return nil }

	require.NoError(t, shutdownAll(ok, ok)(context.Background()))
	err := shutdownAll(fail, ok, fail)(context.Background())
	assert.ErrorContains(t, err, "2 errors occurred")
	assert.Equal(t, 5, calls)
}

func TestWithSpanReturnsError(t *testing.T) {
	want := errors.New("boom")
	err := WithSpan(context.Background(), "test", func(context.Context) error { return want })
	assert.Equal(t, want, err)

	called := false
	require.NoError(t, WithSpan(context.Background(), "test", func(context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestSkillAttributes(t *testing.T) {
	attrs := SkillAttributes("utoipa", ".claude/skills", attribute.Bool("dry_run", true))
	require.Len(t, attrs, 3)
	assert.Equal(t, attribute.String("skill", "utoipa"), attrs[0])
	assert.Equal(t, attribute.String("dest", ".claude/skills"), attrs[1])
	assert.Equal(t, attribute.Bool("dry_run", true), attrs[2])

	assert.Len(t, SkillAttributes("utoipa", ""), 1)
}
