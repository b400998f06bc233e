package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal        metric.Int64Counter
	HTTPRequestDuration      metric.Float64Histogram
	RemoteRequestsTotal      metric.Int64Counter
	RemoteRequestDuration    metric.Float64Histogram
	PreferenceCreationsTotal metric.Int64Counter
	FavoriteMutationsTotal   metric.Int64Counter
	StaleResponsesTotal      metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments exactly once,
// using the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("tripwise-client")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of gateway HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.HTTPRequestDuration, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of gateway HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_request_duration_seconds: %v", err)
		}

		m.RemoteRequestsTotal, err = meter.Int64Counter(
			"remote_requests_total",
			metric.WithDescription("Total number of remote planning/favorites requests"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create remote_requests_total: %v", err)
		}

		m.RemoteRequestDuration, err = meter.Float64Histogram(
			"remote_request_duration_seconds",
			metric.WithDescription("Duration of remote planning/favorites requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create remote_request_duration_seconds: %v", err)
		}

		m.PreferenceCreationsTotal, err = meter.Int64Counter(
			"preference_creations_total",
			metric.WithDescription("Total number of preference creation attempts"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create preference_creations_total: %v", err)
		}

		m.FavoriteMutationsTotal, err = meter.Int64Counter(
			"favorite_mutations_total",
			metric.WithDescription("Total number of favorite add/remove attempts"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create favorite_mutations_total: %v", err)
		}

		m.StaleResponsesTotal, err = meter.Int64Counter(
			"stale_planning_responses_total",
			metric.WithDescription("Planning responses dropped by the request fencing token"),
			metric.WithUnit("{response}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create stale_planning_responses_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance, initializing the
// instruments against the global MeterProvider on first use. Before the meter
// provider is configured the instruments are no-ops, which keeps tests quiet.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
