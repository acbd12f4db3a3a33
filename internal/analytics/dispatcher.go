package analytics

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/patrickwarner/streamlytics/internal/models"
	"github.com/patrickwarner/streamlytics/internal/observability"
	"github.com/patrickwarner/streamlytics/internal/payload"
)

// ErrUnavailable is returned when the event store is not configured.
var ErrUnavailable = errors.New("analytics unavailable")

// Dispatcher hands a built payload and the context snapshot it was built
// against to the delivery layer. Implementations must not modify either.
type Dispatcher interface {
	Dispatch(ctx context.Context, p *payload.Payload, snapshot *models.AnalyticsContext) error
}

// LogDispatcher writes payloads to the log instead of storing them. Only a
// sample of payloads is logged at info level.
type LogDispatcher struct {
	Logger     *zap.Logger
	SampleRate float64
}

// NewLogDispatcher returns a LogDispatcher sampling at the rate for the
// current ENV.
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{Logger: logger, SampleRate: observability.GetSamplingRate()}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, p *payload.Payload, snapshot *models.AnalyticsContext) error {
	if !observability.ShouldSample(d.SampleRate) {
		return nil
	}
	fields := []zap.Field{
		zap.String("type", string(p.Kind())),
		zap.String("message_id", p.MessageID()),
		zap.String("anonymous_id", p.AnonymousID()),
		zap.Any("payload", p),
	}
	if p.Event() != "" {
		fields = append(fields, zap.String("event", p.Event()))
	}
	if snapshot != nil {
		fields = append(fields, zap.Any("context", snapshot.ValueMap))
	}
	d.Logger.Info("analytics payload", fields...)
	return nil
}
