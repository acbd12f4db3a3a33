package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/streamlytics/internal/probe"
)

func pixelProbe() *probe.Static {
	carrier := "T-Mobile"
	return &probe.Static{
		Build:        "4021",
		ID:           "ABC123",
		Brand:        "Google",
		Name:         "oriole",
		Net:          &probe.NetworkState{Cellular: true},
		CarrierName:  &carrier,
		OS:           "14",
		Display:      &probe.ScreenMetrics{Density: 2.0, Height: 1920, Width: 1080},
		LocaleTag:    "en-US",
		TimezoneID:   "America/New_York",
		UserAgentStr: "Dalvik/2.1.0",
	}
}

func TestNewAnalyticsContextFromProbe(t *testing.T) {
	c := NewAnalyticsContext(pixelProbe(), NewTraits(), true)

	device := c.Device()
	assert.Equal(t, "ABC123", device.ID())
	assert.Equal(t, "Google", device.String(DeviceManufacturerKey))
	assert.Equal(t, "oriole", device.String(DeviceNameKey))
	assert.Equal(t, "14", c.String(OSVersionKey))
	assert.Equal(t, 2.0, c.Float64(ScreenDensityKey, 0))
	assert.Equal(t, 1920, c.Int(ScreenHeightKey, 0))
	assert.Equal(t, 1080, c.Int(ScreenWidthKey, 0))
	assert.Equal(t, "en-US", c.String(LocaleKey))
	assert.Equal(t, "4021", c.String(AppBuildKey))
	assert.Equal(t, "T-Mobile", c.String(NetworkCarrierKey))
	assert.True(t, c.Bool(NetworkCellularKey, false))
	assert.False(t, c.Bool(NetworkBluetoothKey, true))
	assert.Equal(t, "America/New_York", c.String(TimezoneKey))
	assert.Equal(t, "Dalvik/2.1.0", c.String(UserAgentKey))
}

func TestNewAnalyticsContextUsesAnonymousIDWithoutDeviceCollection(t *testing.T) {
	traits := NewTraits().PutAnonymousID("anon-1")
	c := NewAnalyticsContext(pixelProbe(), traits, false)
	assert.Equal(t, "anon-1", c.Device().ID())
	assert.Equal(t, "anon-1", c.Traits().AnonymousID())
}

type failingBuild struct{ *probe.Static }

func (failingBuild) AppBuild() (string, error) { return "", errors.New("package not found") }

func TestNewAnalyticsContextDegradesMissingFacts(t *testing.T) {
	p := &probe.Static{} // nothing available
	c := NewAnalyticsContext(failingBuild{p}, NewTraits(), true)

	for _, key := range []string{UserAgentKey, TimezoneKey, LocaleKey, OSVersionKey} {
		v, ok := c.Get(key)
		require.True(t, ok, "key %s must be present", key)
		assert.Equal(t, Undefined, v, "key %s", key)
	}
	assert.Equal(t, Undefined, c.Device().ID())
	assert.Equal(t, "unknown", c.String(NetworkCarrierKey))
	assert.False(t, c.Has(AppBuildKey))
	assert.False(t, c.Has(NetworkCellularKey))
	assert.False(t, c.Has(ScreenDensityKey))
}

func TestNewAnalyticsContextEmptyCarrier(t *testing.T) {
	p := pixelProbe()
	empty := ""
	p.CarrierName = &empty
	c := NewAnalyticsContext(p, nil, true)
	assert.Equal(t, Undefined, c.String(NetworkCarrierKey))
	require.NotNil(t, c.Traits())
	assert.NotEmpty(t, c.Traits().AnonymousID())
}

func TestContextUnmodifiableCopy(t *testing.T) {
	c := NewAnalyticsContext(pixelProbe(), NewTraits(), true)
	snap := c.UnmodifiableCopy()

	snap.PutValue("custom", "x")
	snap.PutCampaign(NewCampaign().PutName("spring"))
	snap.PutDeviceToken("tok")
	assert.ErrorIs(t, snap.Put(LocaleKey, "fr-FR"), ErrReadOnly)

	assert.False(t, c.Has("custom"))
	assert.Nil(t, c.Campaign())
	assert.Equal(t, "", c.Device().Token())
	assert.Equal(t, "en-US", c.String(LocaleKey))

	c.PutDeviceToken("live-token")
	assert.Equal(t, "", snap.Device().Token())
}

func TestSetTraitsStoresImmutableCopy(t *testing.T) {
	traits := NewTraits().PutEmail("a@example.com")
	c := NewAnalyticsContext(pixelProbe(), traits, true)

	traits.PutEmail("b@example.com")
	assert.Equal(t, "a@example.com", c.Traits().Email())
	assert.ErrorIs(t, c.Traits().Put(TraitEmail, "c@example.com"), ErrReadOnly)
	assert.Equal(t, "a@example.com", c.Traits().Email())

	// a context copy keeps the traits read-only too
	c.PutValue("traits_copy", c.Traits())
	assert.True(t, c.Map("traits_copy").ReadOnly())
}

func TestSetTraitsNil(t *testing.T) {
	c := NewAnalyticsContext(pixelProbe(), NewTraits().PutEmail("a@example.com"), true)
	assert.NotPanics(t, func() { c.SetTraits(nil) })
	assert.True(t, c.Has(TraitsKey))
	assert.Nil(t, c.Traits())
}

func TestPutNilSubObjects(t *testing.T) {
	c := NewAnalyticsContext(pixelProbe(), NewTraits(), true)
	c.PutCampaign(NewCampaign().PutName("launch"))

	require.NotPanics(t, func() {
		c.PutCampaign(nil).PutLocation(nil).PutReferrer(nil)
	})
	for _, key := range []string{CampaignKey, LocationKey, ReferrerKey} {
		v, ok := c.Get(key)
		assert.True(t, ok, key)
		assert.Nil(t, v, key)
	}
	assert.Nil(t, c.Campaign())
	assert.Nil(t, c.Location())
	assert.Nil(t, c.Referrer())

	raw, err := json.Marshal(c.UnmodifiableCopy().ValueMap)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, CampaignKey)
	assert.Nil(t, decoded[CampaignKey])
}

func TestContextSubObjects(t *testing.T) {
	c := NewAnalyticsContext(pixelProbe(), NewTraits(), true)
	c.PutCampaign(NewCampaign().PutName("launch").PutSource("newsletter").PutMedium("email").PutTerm("video").PutContent("hero")).
		PutLocation(NewLocation().PutLatitude(40.7).PutLongitude(-74.0).PutSpeed(1.5)).
		PutReferrer(NewReferrer().PutID("r1").PutLink("app://x").PutName("friend").PutType("share").PutURL("https://example.com")).
		PutDeviceToken("push-token")

	campaign := c.Campaign()
	require.NotNil(t, campaign)
	assert.Equal(t, "launch", campaign.Name())
	assert.Equal(t, "newsletter", campaign.Source())
	assert.Equal(t, "email", campaign.Medium())
	assert.Equal(t, "video", campaign.Term())
	assert.Equal(t, "hero", campaign.Content())

	loc := c.Location()
	require.NotNil(t, loc)
	assert.Equal(t, 40.7, loc.Latitude())
	assert.Equal(t, -74.0, loc.Longitude())
	assert.Equal(t, 1.5, loc.Speed())

	ref := c.Referrer()
	require.NotNil(t, ref)
	assert.Equal(t, "r1", ref.ID())
	assert.Equal(t, "app://x", ref.Link())
	assert.Equal(t, "friend", ref.Name())
	assert.Equal(t, "share", ref.Type())
	assert.Equal(t, "https://example.com", ref.URL())

	assert.Equal(t, "push-token", c.Device().Token())
}

func TestPutAdvertisingInfo(t *testing.T) {
	c := NewAnalyticsContext(pixelProbe(), NewTraits(), true)

	c.Device().PutAdvertisingInfo("ad-1", false)
	assert.Equal(t, "", c.Device().AdvertisingID())
	assert.False(t, c.Device().Bool(DeviceAdTrackingEnabledKey, true))

	c.Device().PutAdvertisingInfo("", true)
	assert.Equal(t, "", c.Device().AdvertisingID())

	c.Device().PutAdvertisingInfo("ad-2", true)
	assert.Equal(t, "ad-2", c.Device().AdvertisingID())
	assert.True(t, c.Device().Bool(DeviceAdTrackingEnabledKey, false))
}

func TestContextJSONKeys(t *testing.T) {
	c := NewAnalyticsContext(pixelProbe(), NewTraits().PutAnonymousID("anon"), true)
	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	device, ok := decoded[DeviceKey].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ABC123", device[DeviceIDKey])
	traits, ok := decoded[TraitsKey].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "anon", traits[TraitAnonymousID])

	var back ValueMap
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c.Keys(), back.Keys())
}

func TestTraitsMerge(t *testing.T) {
	base := NewTraits().PutAnonymousID("anon").PutName("Old")
	merged := base.Merge(NewTraits().PutEmail("x@example.com").PutName("New"))

	assert.Equal(t, "New", merged.String(TraitName))
	assert.Equal(t, "x@example.com", merged.Email())
	assert.Equal(t, "Old", base.String(TraitName))

	var empty *Traits
	assert.Equal(t, 0, empty.Merge(nil).Len())

	assert.Equal(t, "anon", base.CurrentID())
	base.PutUserID("user-1")
	assert.Equal(t, "user-1", base.CurrentID())
}
