// Package otelexport bridges the engine's in-process counters to an
// OpenTelemetry meter. Collection is pull-based: values are read from a
// snapshot inside the meter's observation callback, so the engine's hot
// paths never touch the OpenTelemetry SDK.
package otelexport

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/keyline/authcore"
)

// Snapshotter supplies metric snapshots. Satisfied by *authcore.Engine.
type Snapshotter interface {
	MetricsSnapshot() authcore.MetricsSnapshot
}

// Register creates one observable counter per engine counter on meter and
// wires a single callback that reads them all from one snapshot. The
// returned registration unhooks the callback. The login-latency histogram is
// not exported; observable instruments cannot carry bucket data.
func Register(meter metric.Meter, src Snapshotter) (metric.Registration, error) {
	ids := authcore.CounterIDs()
	counters := make(map[authcore.MetricID]metric.Int64ObservableCounter, len(ids))
	observables := make([]metric.Observable, 0, len(ids))

	for _, id := range ids {
		counter, err := meter.Int64ObservableCounter(
			"authcore."+id.String(),
			metric.WithDescription("authcore "+id.String()+" counter"),
		)
		if err != nil {
			return nil, err
		}
		counters[id] = counter
		observables = append(observables, counter)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snapshot := src.MetricsSnapshot()
		for id, counter := range counters {
			o.ObserveInt64(counter, int64(snapshot.Counters[id]))
		}
		return nil
	}, observables...)
}
