package datadog

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSettings(t *testing.T) {
	{
		// Defaults
		settings, err := ParseSettings(nil)
		assert.NoError(t, err)
		assert.Equal(t, Settings{Addr: DefaultAddr, Namespace: DefaultNamespace, Sampling: DefaultSampleRate}, settings)
	}
	{
		// YAML lists decode as []any
		settings, err := ParseSettings(map[string]any{
			"addr":      "dd-agent:8125",
			"namespace": "lake.",
			"tags":      []any{"env:prod", "team:data"},
			"sampling":  0.33,
		})
		assert.NoError(t, err)
		assert.Equal(t, Settings{Addr: "dd-agent:8125", Namespace: "lake.", Tags: []string{"env:prod", "team:data"}, Sampling: 0.33}, settings)
	}
	{
		// Out of range sampling falls back
		for _, rate := range []float64{0, -0.5, 1.25} {
			settings, err := ParseSettings(map[string]any{"sampling": rate})
			assert.NoError(t, err)
			assert.Equal(t, DefaultSampleRate, settings.Sampling, rate)
		}
	}
	{
		// Invalid sampling
		_, err := ParseSettings(map[string]any{"sampling": "often"})
		assert.ErrorContains(t, err, "failed to parse metrics settings")
	}
	{
		// Env overrides the configured address
		t.Setenv("TELEMETRY_HOST", "statsd")
		t.Setenv("TELEMETRY_PORT", "9125")
		settings, err := ParseSettings(map[string]any{"addr": "dd-agent:8125"})
		assert.NoError(t, err)
		assert.Equal(t, "statsd:9125", settings.Addr)
	}
}

func TestToDatadogTags(t *testing.T) {
	assert.Empty(t, toDatadogTags(nil))
	assert.Equal(t, []string{"op:insert", "table:bronze.orders"}, toDatadogTags(map[string]string{"table": "bronze.orders", "op": "insert"}))
}

func TestNewDatadogClient(t *testing.T) {
	{
		client, err := NewDatadogClient(map[string]any{"tags": []string{"env:production"}, "namespace": "lake.", "sampling": 0.255}, slog.Default())
		assert.NoError(t, err)

		mtr, ok := client.(*statsClient)
		assert.True(t, ok)
		assert.Equal(t, 0.255, mtr.rate)
	}
	{
		_, err := NewDatadogClient(map[string]any{"tags": "env:production"}, slog.Default())
		assert.ErrorContains(t, err, "failed to parse metrics settings")
	}
}
