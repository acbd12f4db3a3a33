package analytics

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/patrickwarner/streamlytics/internal/models"
	"github.com/patrickwarner/streamlytics/internal/probe"
)

// AdvertisingIDProvider fetches the platform advertising id. It may block.
type AdvertisingIDProvider interface {
	AdvertisingInfo(ctx context.Context) (id string, limitAdTracking bool, err error)
}

// AdvertisingIDProviderFunc adapts a function to AdvertisingIDProvider.
type AdvertisingIDProviderFunc func(ctx context.Context) (string, bool, error)

func (f AdvertisingIDProviderFunc) AdvertisingInfo(ctx context.Context) (string, bool, error) {
	return f(ctx)
}

// AdvertisingIDProviderFor returns env as a provider when it can report an
// advertising id, otherwise nil.
func AdvertisingIDProviderFor(env probe.Environment) AdvertisingIDProvider {
	if p, ok := env.(AdvertisingIDProvider); ok {
		return p
	}
	return nil
}

// AdvertisingIDTask tracks one asynchronous advertising id fetch. It
// completes exactly once, whether the fetch succeeded, failed or was
// cancelled.
type AdvertisingIDTask struct {
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	err    error
}

func newAdvertisingIDTask(cancel context.CancelFunc) *AdvertisingIDTask {
	return &AdvertisingIDTask{done: make(chan struct{}), cancel: cancel}
}

func (t *AdvertisingIDTask) complete(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Done is closed when the task has completed.
func (t *AdvertisingIDTask) Done() <-chan struct{} { return t.done }

// Wait blocks until the task completes or ctx ends.
func (t *AdvertisingIDTask) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the task outcome once Done is closed, nil before.
func (t *AdvertisingIDTask) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Cancel abandons the fetch. The task still completes.
func (t *AdvertisingIDTask) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}

// AttachAdvertisingID fetches the advertising id in the background and
// records it on the device once available. A nil provider completes the
// task immediately without touching the context. Failures are not retried.
func (c *Client) AttachAdvertisingID(ctx context.Context, provider AdvertisingIDProvider) *AdvertisingIDTask {
	if provider == nil {
		c.logger.Debug("advertising id provider not available, skipping")
		c.metrics.IncrementAdvertisingID("skipped")
		t := newAdvertisingIDTask(nil)
		t.complete(nil)
		return t
	}

	ctx, cancel := context.WithCancel(ctx)
	t := newAdvertisingIDTask(cancel)
	go func() {
		defer cancel()
		t.complete(c.fetchAdvertisingID(ctx, provider))
	}()
	return t
}

func (c *Client) fetchAdvertisingID(ctx context.Context, provider AdvertisingIDProvider) error {
	ctx, span := c.tracer.Start(ctx, "analytics.advertising_id")
	defer span.End()

	id, limitAdTracking, err := provider.AdvertisingInfo(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		c.metrics.IncrementAdvertisingID("error")
		c.logger.Debug("unable to collect advertising id", zap.Error(err))
		span.RecordError(err)
		return fmt.Errorf("advertising id: %w", err)
	}

	err = c.do(ctx, "advertising_id", func(live *models.AnalyticsContext) error {
		live.Device().PutAdvertisingInfo(id, !limitAdTracking)
		return nil
	})
	if err != nil {
		c.metrics.IncrementAdvertisingID("error")
		return fmt.Errorf("advertising id: %w", err)
	}
	c.metrics.IncrementAdvertisingID("ok")
	c.logger.Debug("advertising id attached", zap.Bool("ad_tracking_enabled", !limitAdTracking))
	return nil
}
