package events

import (
	"context"
	"errors"

	"disasterwatch/internal/observability"
	"disasterwatch/internal/ports"
)

// Fanout publishes to every sink and reports all failures together.
type Fanout struct {
	sinks   []ports.EventPublisher
	metrics *observability.Metrics
}

var _ ports.EventPublisher = (*Fanout)(nil)

func NewFanout(metrics *observability.Metrics, sinks ...ports.EventPublisher) *Fanout {
	kept := make([]ports.EventPublisher, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Fanout{sinks: kept, metrics: metrics}
}

func (f *Fanout) Publish(ctx context.Context, event ports.Event) error {
	var errList []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, event); err != nil {
			errList = append(errList, err)
		}
	}
	f.metrics.EventPublished(event.Type)
	return errors.Join(errList...)
}
