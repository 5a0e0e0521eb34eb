package metrics

import "time"

type NullMetricsProvider struct{}

func (NullMetricsProvider) Gauge(_ string, _ float64, _ map[string]string) {}

func (NullMetricsProvider) Count(_ string, _ int64, _ map[string]string) {}

func (NullMetricsProvider) Timing(_ string, _ time.Duration, _ map[string]string) {}

func (NullMetricsProvider) Incr(_ string, _ map[string]string) {}
