// Package analytics owns the live analytics context and sends payloads
// built against it.
//
// All context mutations run on a single owner goroutine. After each
// mutation the owner publishes a read-only deep copy, so Context never
// takes a lock and never observes a half-applied change.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/streamlytics/internal/models"
	"github.com/patrickwarner/streamlytics/internal/observability"
	"github.com/patrickwarner/streamlytics/internal/payload"
	"github.com/patrickwarner/streamlytics/internal/probe"
)

// ErrClosed is returned by operations on a closed Client.
var ErrClosed = errors.New("analytics client closed")

// Options configures a Client.
type Options struct {
	// CollectDeviceID uses the probe device id instead of the anonymous id.
	CollectDeviceID bool
	// Traits seeds the context; a random anonymous id is used when nil.
	Traits          *models.Traits
	Dispatcher      Dispatcher
	Metrics         observability.MetricsRegistry
	Logger          *zap.Logger
	DispatchTimeout time.Duration
}

type op struct {
	name string
	fn   func(live *models.AnalyticsContext) error
	done chan error
}

// Client is the process-wide analytics client.
type Client struct {
	env        probe.Environment
	opts       Options
	dispatcher Dispatcher
	metrics    observability.MetricsRegistry
	logger     *zap.Logger
	tracer     trace.Tracer

	// live is only touched by the owner goroutine.
	live     *models.AnalyticsContext
	snapshot atomic.Pointer[models.AnalyticsContext]

	ops       chan op
	closed    chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewClient starts a client for env. The context is created lazily by the
// owner goroutine on first use.
func NewClient(env probe.Environment, opts Options) *Client {
	c := &Client{
		env:        env,
		opts:       opts,
		dispatcher: opts.Dispatcher,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		tracer:     observability.Tracer("analytics"),
		ops:        make(chan op),
		closed:     make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	if c.metrics == nil {
		c.metrics = observability.NewNoOpRegistry()
	}
	if c.logger == nil {
		c.logger = zap.L()
	}
	if c.dispatcher == nil {
		c.dispatcher = NewLogDispatcher(c.logger)
	}
	go c.run()
	return c
}

func (c *Client) run() {
	defer close(c.stopped)
	for {
		select {
		case o := <-c.ops:
			o.done <- c.apply(o)
		case <-c.closed:
			return
		}
	}
}

func (c *Client) apply(o op) error {
	if c.live == nil {
		c.live = models.NewAnalyticsContext(c.env, c.opts.Traits, c.opts.CollectDeviceID)
		c.snapshot.Store(c.live.UnmodifiableCopy())
		c.logger.Debug("analytics context created", zap.Strings("keys", c.live.Keys()))
	}
	if o.fn == nil {
		return nil
	}
	if err := o.fn(c.live); err != nil {
		return err
	}
	c.snapshot.Store(c.live.UnmodifiableCopy())
	c.metrics.IncrementContextMutations(o.name)
	return nil
}

// do runs fn on the owner goroutine and waits for it.
func (c *Client) do(ctx context.Context, name string, fn func(live *models.AnalyticsContext) error) error {
	o := op{name: name, fn: fn, done: make(chan error, 1)}
	select {
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case c.ops <- o:
	}
	select {
	case err := <-o.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Context returns the current read-only snapshot. It only blocks the first
// time, while the owner creates the context.
func (c *Client) Context(ctx context.Context) (*models.AnalyticsContext, error) {
	if snap := c.snapshot.Load(); snap != nil {
		return snap, nil
	}
	if err := c.do(ctx, "", nil); err != nil {
		return nil, err
	}
	return c.snapshot.Load(), nil
}

// Identify merges traits into the current traits under userID, updates the
// context and dispatches an identify payload. Nothing changes when the
// payload is invalid.
func (c *Client) Identify(ctx context.Context, userID string, traits *models.Traits) error {
	ctx, span := c.tracer.Start(ctx, "analytics.identify")
	defer span.End()

	var p *payload.Payload
	err := c.do(ctx, "identify", func(live *models.AnalyticsContext) error {
		merged := live.Traits().Merge(traits)
		if userID != "" {
			merged.PutUserID(userID)
		}
		built, err := payload.NewIdentify(userID).
			AnonymousID(merged.AnonymousID()).
			Traits(merged).
			Build()
		if err != nil {
			return err
		}
		live.SetTraits(merged)
		p = built
		return nil
	})
	if err != nil {
		return c.fail(span, payload.KindIdentify, err)
	}
	return c.dispatch(ctx, span, p)
}

// Track builds b against the current identity and dispatches it.
func (c *Client) Track(ctx context.Context, b *payload.Builder) error {
	return c.send(ctx, payload.KindTrack, b)
}

// Screen builds b against the current identity and dispatches it.
func (c *Client) Screen(ctx context.Context, b *payload.Builder) error {
	return c.send(ctx, payload.KindScreen, b)
}

func (c *Client) send(ctx context.Context, kind payload.Kind, b *payload.Builder) error {
	ctx, span := c.tracer.Start(ctx, "analytics."+string(kind))
	defer span.End()

	if b == nil {
		return c.fail(span, kind, &payload.ValidationError{Field: payload.TypeKey, Message: "builder == null"})
	}
	if b.Kind() != kind {
		return c.fail(span, kind, &payload.ValidationError{
			Field:   payload.TypeKey,
			Message: fmt.Sprintf("expected %s payload, got %s", kind, b.Kind()),
		})
	}
	snap, err := c.Context(ctx)
	if err != nil {
		return c.fail(span, kind, err)
	}
	if t := snap.Traits(); t != nil {
		b.IdentityDefaults(t.UserID(), t.AnonymousID())
	}
	p, err := b.Build()
	if err != nil {
		return c.fail(span, kind, err)
	}
	return c.dispatch(ctx, span, p)
}

func (c *Client) fail(span trace.Span, kind payload.Kind, err error) error {
	var verr *payload.ValidationError
	if errors.As(err, &verr) {
		c.metrics.IncrementValidationErrors(string(kind))
		c.logger.Warn("invalid analytics payload", zap.String("type", string(kind)), zap.String("field", verr.Field), zap.Error(err))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (c *Client) dispatch(ctx context.Context, span trace.Span, p *payload.Payload) error {
	kind := string(p.Kind())
	c.metrics.IncrementPayloads(kind)
	span.SetAttributes(
		attribute.String("analytics.type", kind),
		attribute.String("analytics.message_id", p.MessageID()),
	)

	snap, err := c.Context(ctx)
	if err != nil {
		return err
	}
	if c.opts.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.DispatchTimeout)
		defer cancel()
	}
	start := time.Now()
	err = c.dispatcher.Dispatch(ctx, p, snap)
	c.metrics.RecordDispatchLatency(time.Since(start))
	if err != nil {
		c.metrics.IncrementDispatch(kind, "error")
		c.logger.Error("analytics dispatch failed", zap.String("type", kind), zap.String("message_id", p.MessageID()), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("dispatch %s: %w", kind, err)
	}
	c.metrics.IncrementDispatch(kind, "ok")
	return nil
}

// PutCampaign sets the campaign on the live context.
func (c *Client) PutCampaign(ctx context.Context, campaign *models.Campaign) error {
	return c.do(ctx, "campaign", func(live *models.AnalyticsContext) error {
		live.PutCampaign(campaign)
		return nil
	})
}

// PutLocation sets the device location on the live context.
func (c *Client) PutLocation(ctx context.Context, location *models.Location) error {
	return c.do(ctx, "location", func(live *models.AnalyticsContext) error {
		live.PutLocation(location)
		return nil
	})
}

// PutReferrer sets the session referrer on the live context.
func (c *Client) PutReferrer(ctx context.Context, referrer *models.Referrer) error {
	return c.do(ctx, "referrer", func(live *models.AnalyticsContext) error {
		live.PutReferrer(referrer)
		return nil
	})
}

// PutDeviceToken sets the push token on the live context.
func (c *Client) PutDeviceToken(ctx context.Context, token string) error {
	return c.do(ctx, "device_token", func(live *models.AnalyticsContext) error {
		live.PutDeviceToken(token)
		return nil
	})
}

// Close stops the owner goroutine. Later operations return ErrClosed.
// Close is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	<-c.stopped
	return nil
}
