package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/streamlytics/internal/models"
	"github.com/patrickwarner/streamlytics/internal/observability"
	"github.com/patrickwarner/streamlytics/internal/payload"
	"github.com/patrickwarner/streamlytics/internal/probe"
	"github.com/patrickwarner/streamlytics/internal/tracking"
)

func testEnv() *probe.Static {
	carrier := "T-Mobile"
	return &probe.Static{
		Build:       "4021",
		ID:          "ABC123",
		Brand:       "Google",
		Name:        "oriole",
		Net:         &probe.NetworkState{Cellular: true},
		CarrierName: &carrier,
		OS:          "14",
		Display:     &probe.ScreenMetrics{Density: 2.0, Height: 1920, Width: 1080},
		LocaleTag:   "en-US",
		TimezoneID:  "America/New_York",
	}
}

func newTestClient(t *testing.T) (*Client, *MockDispatcher, *observability.MockMetricsRegistry) {
	t.Helper()
	d := NewMockDispatcher()
	m := observability.NewMockMetricsRegistry()
	c := NewClient(testEnv(), Options{
		CollectDeviceID: true,
		Traits:          models.NewTraits().PutAnonymousID("anon-1"),
		Dispatcher:      d,
		Metrics:         m,
		Logger:          zap.NewNop(),
	})
	t.Cleanup(func() { _ = c.Close() })
	return c, d, m
}

func TestContextCreatedLazily(t *testing.T) {
	c, _, _ := newTestClient(t)
	assert.Nil(t, c.snapshot.Load())

	snap, err := c.Context(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.ReadOnly())
	assert.Equal(t, "ABC123", snap.Device().ID())
	assert.Equal(t, "14", snap.String(models.OSVersionKey))
	assert.Equal(t, "en-US", snap.String(models.LocaleKey))
	assert.Equal(t, "anon-1", snap.Traits().AnonymousID())

	again, err := c.Context(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, again)
}

func TestTrackDispatchesWithIdentity(t *testing.T) {
	c, d, m := newTestClient(t)

	err := c.Track(context.Background(), tracking.PlaybackEvent(tracking.Play, tracking.StreamInfo{
		ID: "COD", Likes: 42, Views: 1000, Type: tracking.StreamVideo, Title: "Call of Duty",
	}))
	require.NoError(t, err)

	calls := d.Calls()
	require.Len(t, calls, 1)
	p := calls[0].Payload
	assert.Equal(t, tracking.Play, p.Event())
	assert.Equal(t, "anon-1", p.AnonymousID())
	assert.Equal(t, "COD", p.Target().ID())
	assert.Equal(t, "ABC123", calls[0].Context.Device().ID())
	assert.Equal(t, 1, m.Count("payloads:track"))
	assert.Equal(t, 1, m.Count("dispatch:track:ok"))
}

func TestInvalidPayloadNeverDispatched(t *testing.T) {
	c, d, m := newTestClient(t)

	err := c.Track(context.Background(), payload.NewBuilder(payload.KindTrack).ProfileID("profile-1"))
	var verr *payload.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "event cannot be null or empty", verr.Error())

	err = c.Track(context.Background(), payload.NewTrack("play").Properties(nil))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "properties == null", verr.Error())

	err = c.Screen(context.Background(), payload.NewTrack("play"))
	require.ErrorAs(t, err, &verr)

	assert.Empty(t, d.Calls())
	assert.Equal(t, 3, m.Count("validation:track")+m.Count("validation:screen"))
}

func TestIdentifyMergesTraits(t *testing.T) {
	c, d, _ := newTestClient(t)
	ctx := context.Background()

	err := c.Identify(ctx, "user@example.com", models.NewTraits().PutEmail("user@example.com"))
	require.NoError(t, err)

	snap, err := c.Context(ctx)
	require.NoError(t, err)
	traits := snap.Traits()
	assert.Equal(t, "anon-1", traits.AnonymousID())
	assert.Equal(t, "user@example.com", traits.UserID())
	assert.Equal(t, "user@example.com", traits.Email())

	calls := d.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, payload.KindIdentify, calls[0].Payload.Kind())
	assert.Equal(t, "user@example.com", calls[0].Payload.UserID())
	assert.Equal(t, "anon-1", calls[0].Payload.AnonymousID())

	require.NoError(t, c.Track(ctx, payload.NewTrack("pause")))
	assert.Equal(t, "user@example.com", d.Calls()[1].Payload.UserID())
}

func TestIdentifyWithoutUserIDLeavesContext(t *testing.T) {
	c, d, _ := newTestClient(t)
	ctx := context.Background()

	before, err := c.Context(ctx)
	require.NoError(t, err)

	err = c.Identify(ctx, "", models.NewTraits().PutEmail("x@example.com"))
	var verr *payload.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "userId cannot be null or empty", verr.Error())

	after, err := c.Context(ctx)
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.Empty(t, d.Calls())
}

func TestPutNilCampaignKeepsClientAlive(t *testing.T) {
	c, _, m := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.PutCampaign(ctx, models.NewCampaign().PutName("spring")))
	require.NoError(t, c.PutCampaign(ctx, nil))
	require.NoError(t, c.PutLocation(ctx, nil))
	require.NoError(t, c.PutReferrer(ctx, nil))

	snap, err := c.Context(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Campaign())
	assert.True(t, snap.Has(models.CampaignKey))
	assert.Equal(t, 2, m.Count("mutation:campaign"))

	// the owner goroutine is still serving
	require.NoError(t, c.PutDeviceToken(ctx, "push-1"))
	snap, err = c.Context(ctx)
	require.NoError(t, err)
	assert.Equal(t, "push-1", snap.Device().Token())
}

func TestLiveTraitsStayReadOnly(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Identify(ctx, "u-1", models.NewTraits().PutName("Ada")))

	snap, err := c.Context(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, snap.Traits().Put(models.TraitName, "Eve"), models.ErrReadOnly)

	require.NoError(t, c.Identify(ctx, "u-1", models.NewTraits().PutName("Grace")))
	snap, err = c.Context(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Grace", snap.Traits().String(models.TraitName))
}

func TestDispatchErrorWrapped(t *testing.T) {
	c, d, m := newTestClient(t)
	d.Err = ErrUnavailable

	err := c.Track(context.Background(), payload.NewTrack("play"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, m.Count("dispatch:track:error"))
}

func TestSnapshotsAreIsolated(t *testing.T) {
	c, _, m := newTestClient(t)
	ctx := context.Background()

	before, err := c.Context(ctx)
	require.NoError(t, err)

	campaign := models.NewCampaign().PutName("spring").PutSource("newsletter")
	require.NoError(t, c.PutCampaign(ctx, campaign))
	campaign.PutName("mutated")

	require.NoError(t, c.PutLocation(ctx, models.NewLocation().PutLatitude(40.7).PutLongitude(-74)))
	require.NoError(t, c.PutReferrer(ctx, models.NewReferrer().PutType("app").PutName("feed")))
	require.NoError(t, c.PutDeviceToken(ctx, "push-token"))

	after, err := c.Context(ctx)
	require.NoError(t, err)

	assert.Nil(t, before.Campaign())
	assert.Equal(t, "spring", after.Campaign().Name())
	assert.InDelta(t, 40.7, after.Location().Latitude(), 1e-9)
	assert.Equal(t, "feed", after.Referrer().Name())
	assert.Equal(t, "push-token", after.Device().Token())
	assert.ErrorIs(t, after.Put("x", 1), models.ErrReadOnly)
	assert.Equal(t, 1, m.Count("mutation:campaign"))
	assert.Equal(t, 1, m.Count("mutation:device_token"))
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = c.PutDeviceToken(ctx, "token")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				snap, err := c.Context(ctx)
				if err != nil {
					t.Errorf("context: %v", err)
					return
				}
				_, _ = snap.MarshalJSON()
			}
		}()
	}
	wg.Wait()
}

func TestClosedClient(t *testing.T) {
	c, _, _ := newTestClient(t)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.PutDeviceToken(context.Background(), "t"), ErrClosed)
	_, err := c.Context(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAdvertisingIDAttached(t *testing.T) {
	c, _, m := newTestClient(t)
	ctx := context.Background()

	task := c.AttachAdvertisingID(ctx, AdvertisingIDProviderFunc(func(context.Context) (string, bool, error) {
		return "ad-123", false, nil
	}))
	require.NoError(t, task.Wait(ctx))
	assert.NoError(t, task.Err())

	snap, err := c.Context(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ad-123", snap.Device().AdvertisingID())
	assert.True(t, snap.Device().Bool(models.DeviceAdTrackingEnabledKey, false))
	assert.Equal(t, 1, m.Count("adid:ok"))
}

func TestAdvertisingIDLimitTracking(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	task := c.AttachAdvertisingID(ctx, AdvertisingIDProviderFunc(func(context.Context) (string, bool, error) {
		return "ad-123", true, nil
	}))
	require.NoError(t, task.Wait(ctx))

	snap, err := c.Context(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Device().Has(models.DeviceAdvertisingIDKey))
	assert.False(t, snap.Device().Bool(models.DeviceAdTrackingEnabledKey, true))
}

func TestAdvertisingIDNilProviderCompletesImmediately(t *testing.T) {
	c, _, m := newTestClient(t)

	task := c.AttachAdvertisingID(context.Background(), nil)
	select {
	case <-task.Done():
	default:
		t.Fatal("task should already be complete")
	}
	assert.NoError(t, task.Err())
	assert.Equal(t, 1, m.Count("adid:skipped"))

	snap, err := c.Context(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Device().Has(models.DeviceAdTrackingEnabledKey))
}

func TestAdvertisingIDFailureNotRetried(t *testing.T) {
	c, _, m := newTestClient(t)
	calls := 0
	boom := errors.New("play services missing")

	task := c.AttachAdvertisingID(context.Background(), AdvertisingIDProviderFunc(func(context.Context) (string, bool, error) {
		calls++
		return "", false, boom
	}))
	err := task.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, m.Count("adid:error"))
}

func TestAdvertisingIDFromFixture(t *testing.T) {
	c, _, m := newTestClient(t)
	env := testEnv()
	env.Ads = &probe.Advertising{ID: "ad-42"}

	provider := AdvertisingIDProviderFor(env)
	require.NotNil(t, provider)
	assert.Nil(t, AdvertisingIDProviderFor(probe.NewHost("")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	task := c.AttachAdvertisingID(ctx, provider)
	require.NoError(t, task.Wait(context.Background()))

	snap, err := c.Context(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ad-42", snap.Device().String(models.DeviceAdvertisingIDKey))
	assert.Equal(t, 1, m.Count("adid:ok"))
}

func TestAdvertisingIDTimeoutExpired(t *testing.T) {
	c, _, m := newTestClient(t)
	env := testEnv()
	env.Ads = &probe.Advertising{ID: "ad-42"}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	task := c.AttachAdvertisingID(ctx, AdvertisingIDProviderFor(env))
	assert.ErrorIs(t, task.Wait(context.Background()), context.DeadlineExceeded)

	snap, err := c.Context(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Device().Has(models.DeviceAdvertisingIDKey))
	assert.Equal(t, 1, m.Count("adid:error"))
}

func TestAdvertisingIDCancel(t *testing.T) {
	c, _, _ := newTestClient(t)
	started := make(chan struct{})

	task := c.AttachAdvertisingID(context.Background(), AdvertisingIDProviderFunc(func(ctx context.Context) (string, bool, error) {
		close(started)
		<-ctx.Done()
		return "", false, ctx.Err()
	}))
	<-started
	assert.NoError(t, task.Err())
	task.Cancel()

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, task.Wait(waitCtx), context.Canceled)
}
