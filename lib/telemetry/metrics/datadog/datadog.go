package datadog

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"gopkg.in/yaml.v3"

	"github.com/artie-labs/medallion/lib/telemetry/metrics/base"
)

const (
	DefaultSampleRate = 1.0
	DefaultNamespace  = "medallion."
	// DefaultAddr is where the agent listens on a single host.
	DefaultAddr = "127.0.0.1:8125"
)

// Settings is the `telemetry.metrics.settings` block of the engine config.
type Settings struct {
	Addr      string   `yaml:"addr"`
	Namespace string   `yaml:"namespace"`
	Tags      []string `yaml:"tags"`
	Sampling  float64  `yaml:"sampling"`
}

// ParseSettings decodes the free-form settings map, filling in defaults. TELEMETRY_HOST and TELEMETRY_PORT
// take precedence over the configured address.
func ParseSettings(raw map[string]any) (Settings, error) {
	var settings Settings
	if len(raw) > 0 {
		bytes, err := yaml.Marshal(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("failed to marshal metrics settings: %w", err)
		}

		if err = yaml.Unmarshal(bytes, &settings); err != nil {
			return Settings{}, fmt.Errorf("failed to parse metrics settings: %w", err)
		}
	}

	if host, port := os.Getenv("TELEMETRY_HOST"), os.Getenv("TELEMETRY_PORT"); host != "" && port != "" {
		settings.Addr = fmt.Sprintf("%s:%s", host, port)
	}

	settings.Addr = cmp.Or(settings.Addr, DefaultAddr)
	settings.Namespace = cmp.Or(settings.Namespace, DefaultNamespace)
	if settings.Sampling <= 0 || settings.Sampling > 1 {
		settings.Sampling = DefaultSampleRate
	}

	return settings, nil
}

func NewDatadogClient(raw map[string]any, logger *slog.Logger) (base.Client, error) {
	settings, err := ParseSettings(raw)
	if err != nil {
		return nil, err
	}

	logger.Debug("Creating statsd client", slog.String("address", settings.Addr), slog.Float64("sampling", settings.Sampling))
	client, err := statsd.New(settings.Addr, statsd.WithNamespace(settings.Namespace), statsd.WithTags(settings.Tags))
	if err != nil {
		return nil, err
	}

	return &statsClient{client: client, rate: settings.Sampling}, nil
}

type statsClient struct {
	client *statsd.Client
	rate   float64
}

func toDatadogTags(tags map[string]string) []string {
	out := make([]string, 0, len(tags))
	for key, val := range tags {
		out = append(out, key+":"+val)
	}

	slices.Sort(out)
	return out
}

func (s *statsClient) Timing(name string, value time.Duration, tags map[string]string) {
	_ = s.client.Timing(name, value, toDatadogTags(tags), s.rate)
}

func (s *statsClient) Incr(name string, tags map[string]string) {
	_ = s.client.Incr(name, toDatadogTags(tags), s.rate)
}

func (s *statsClient) Count(name string, value int64, tags map[string]string) {
	_ = s.client.Count(name, value, toDatadogTags(tags), s.rate)
}

func (s *statsClient) Gauge(name string, value float64, tags map[string]string) {
	_ = s.client.Gauge(name, value, toDatadogTags(tags), s.rate)
}
