package events

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PublishedEvents counts publish attempts by action kind and result (success|failure|dropped).
	PublishedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimate_room_events_published_total",
			Help: "Total number of room events published",
		},
		[]string{"kind", "result"},
	)

	// PublishLatency measures how long the broker takes to acknowledge an event.
	PublishLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "estimate_room_event_publish_seconds",
			Help:    "Room event publish latency",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// MetricPublisher wraps a Publisher with metrics collection
type MetricPublisher struct {
	publisher Publisher
}

func NewMetricPublisher(publisher Publisher) *MetricPublisher {
	return &MetricPublisher{publisher: publisher}
}

func (p *MetricPublisher) Publish(ctx context.Context, event RoomEvent) error {
	start := time.Now()

	err := p.publisher.Publish(ctx, event)

	PublishLatency.Observe(time.Since(start).Seconds())
	result := "success"
	if err != nil {
		result = "failure"
	}
	PublishedEvents.WithLabelValues(string(event.Action), result).Inc()
	return err
}

func (p *MetricPublisher) Close() error {
	return p.publisher.Close()
}
