package models

import (
	"github.com/patrickwarner/streamlytics/internal/probe"
)

// Undefined is recorded for facts the environment cannot supply, so
// consumers can rely on the key being present.
const Undefined = "undefined"

// Context keys. These names are the contract with the analytics backend
// and must not change.
const (
	LocaleKey    = "locale"
	TraitsKey    = "traits"
	UserAgentKey = "userAgent"
	TimezoneKey  = "timezone"
	AppBuildKey  = "build"
	CampaignKey  = "campaign"
	DeviceKey    = "device"
	LocationKey  = "location"
	ReferrerKey  = "referrer"

	NetworkBluetoothKey = "network_bluetooth"
	NetworkCarrierKey   = "network_carrier"
	NetworkCellularKey  = "network_cellular"

	OSVersionKey = "os_version"

	ScreenDensityKey = "screen_density"
	ScreenHeightKey  = "screen_height"
	ScreenWidthKey   = "screen_width"
)

// Device keys.
const (
	DeviceIDKey                = "device_id"
	DeviceManufacturerKey      = "deviceBrand"
	DeviceNameKey              = "deviceName"
	DeviceTokenKey             = "token"
	DeviceAdvertisingIDKey     = "advertisingId"
	DeviceAdTrackingEnabledKey = "adTrackingEnabled"
)

// AnalyticsContext is the free-form description of the device attached to
// every outgoing event. It is filled once per process and never persisted.
//
// A live AnalyticsContext belongs to a single owner (the analytics client's
// owner loop); other goroutines only ever see UnmodifiableCopy results.
type AnalyticsContext struct {
	*ValueMap
}

// NewAnalyticsContext fills a context from env. When collectDeviceID is
// false the anonymous id from traits stands in for the device id.
func NewAnalyticsContext(env probe.Environment, traits *Traits, collectDeviceID bool) *AnalyticsContext {
	if traits == nil {
		traits = NewAnonymousTraits()
	}
	c := &AnalyticsContext{NewValueMap()}
	c.putApp(env)
	c.SetTraits(traits)
	c.putDevice(env, collectDeviceID)
	putUndefinedIfEmpty(c.ValueMap, LocaleKey, probe.FormatLocale(env.Locale()))
	c.putNetwork(env)
	c.putOS(env)
	c.putScreen(env)
	putUndefinedIfEmpty(c.ValueMap, UserAgentKey, env.UserAgent())
	putUndefinedIfEmpty(c.ValueMap, TimezoneKey, env.Timezone())
	return c
}

// AnalyticsContextFrom wraps m, e.g. after decoding a stored context.
func AnalyticsContextFrom(m *ValueMap) *AnalyticsContext {
	return &AnalyticsContext{m}
}

func putUndefinedIfEmpty(target *ValueMap, key, value string) {
	if value == "" {
		target.PutValue(key, Undefined)
		return
	}
	target.PutValue(key, value)
}

func (c *AnalyticsContext) valueMap() *ValueMap {
	if c == nil {
		return nil
	}
	return c.ValueMap
}

// PutValue sets key and returns c for chaining.
func (c *AnalyticsContext) PutValue(key string, value any) *AnalyticsContext {
	c.ValueMap.PutValue(key, value)
	return c
}

// UnmodifiableCopy returns a read-only deep copy of the context.
func (c *AnalyticsContext) UnmodifiableCopy() *AnalyticsContext {
	return &AnalyticsContext{c.ValueMap.UnmodifiableCopy()}
}

// SetTraits attaches a read-only copy of traits, so exposing Traits() is safe.
func (c *AnalyticsContext) SetTraits(traits *Traits) {
	c.ValueMap.PutValue(TraitsKey, traits.UnmodifiableCopy())
}

// Traits returns the traits attached to the context.
func (c *AnalyticsContext) Traits() *Traits {
	return TraitsFrom(c.Map(TraitsKey))
}

// putApp records the build number. A failing probe leaves the key out.
func (c *AnalyticsContext) putApp(env probe.Environment) {
	build, err := env.AppBuild()
	if err != nil || build == "" {
		return
	}
	c.ValueMap.PutValue(AppBuildKey, build)
}

func (c *AnalyticsContext) putDevice(env probe.Environment, collectDeviceID bool) {
	var id string
	if collectDeviceID {
		id = env.DeviceID()
	} else if t := c.Traits(); t != nil {
		id = t.AnonymousID()
	}
	d := NewValueMap()
	putUndefinedIfEmpty(d, DeviceIDKey, id)
	putUndefinedIfEmpty(d, DeviceManufacturerKey, env.Manufacturer())
	putUndefinedIfEmpty(d, DeviceNameKey, env.DeviceName())
	c.ValueMap.PutValue(DeviceKey, d)
}

// putNetwork records connectivity when it can be inspected, and the
// carrier name or "unknown" when there is no telephony service.
func (c *AnalyticsContext) putNetwork(env probe.Environment) {
	if state, ok := env.Network(); ok {
		c.ValueMap.PutValue(NetworkBluetoothKey, state.Bluetooth)
		c.ValueMap.PutValue(NetworkCellularKey, state.Cellular)
	}
	carrier, ok := env.Carrier()
	if !ok {
		c.ValueMap.PutValue(NetworkCarrierKey, "unknown")
		return
	}
	putUndefinedIfEmpty(c.ValueMap, NetworkCarrierKey, carrier)
}

func (c *AnalyticsContext) putOS(env probe.Environment) {
	putUndefinedIfEmpty(c.ValueMap, OSVersionKey, env.OSVersion())
}

func (c *AnalyticsContext) putScreen(env probe.Environment) {
	screen, ok := env.Screen()
	if !ok {
		return
	}
	c.ValueMap.PutValue(ScreenDensityKey, screen.Density)
	c.ValueMap.PutValue(ScreenHeightKey, screen.Height)
	c.ValueMap.PutValue(ScreenWidthKey, screen.Width)
}

// PutCampaign sets the campaign that resulted in the API call.
func (c *AnalyticsContext) PutCampaign(campaign *Campaign) *AnalyticsContext {
	return c.PutValue(CampaignKey, campaign)
}

func (c *AnalyticsContext) Campaign() *Campaign {
	if m := c.Map(CampaignKey); m != nil {
		return &Campaign{m}
	}
	return nil
}

// PutLocation sets the location of the device.
func (c *AnalyticsContext) PutLocation(location *Location) *AnalyticsContext {
	return c.PutValue(LocationKey, location)
}

func (c *AnalyticsContext) Location() *Location {
	if m := c.Map(LocationKey); m != nil {
		return &Location{m}
	}
	return nil
}

// PutReferrer sets the referrer for this session.
func (c *AnalyticsContext) PutReferrer(referrer *Referrer) *AnalyticsContext {
	return c.PutValue(ReferrerKey, referrer)
}

func (c *AnalyticsContext) Referrer() *Referrer {
	if m := c.Map(ReferrerKey); m != nil {
		return &Referrer{m}
	}
	return nil
}

// Device returns the device sub-object. Writes through it change c.
func (c *AnalyticsContext) Device() *Device {
	m := c.Map(DeviceKey)
	if m == nil {
		m = NewValueMap()
		c.ValueMap.PutValue(DeviceKey, m)
		if m = c.Map(DeviceKey); m == nil {
			// read-only context without a device: hand out a detached map
			m = NewValueMap()
		}
	}
	return &Device{m}
}

// PutDeviceToken is shorthand for Device().PutDeviceToken.
func (c *AnalyticsContext) PutDeviceToken(token string) *AnalyticsContext {
	c.Device().PutDeviceToken(token)
	return c
}

// Campaign maps to the UTM campaign parameters.
type Campaign struct {
	*ValueMap
}

// NewCampaign returns an empty campaign.
func NewCampaign() *Campaign { return &Campaign{NewValueMap()} }

func (c *Campaign) valueMap() *ValueMap {
	if c == nil {
		return nil
	}
	return c.ValueMap
}

func (c *Campaign) PutName(name string) *Campaign {
	c.ValueMap.PutValue("name", name)
	return c
}

func (c *Campaign) PutSource(source string) *Campaign {
	c.ValueMap.PutValue("source", source)
	return c
}

func (c *Campaign) PutMedium(medium string) *Campaign {
	c.ValueMap.PutValue("medium", medium)
	return c
}

func (c *Campaign) PutTerm(term string) *Campaign {
	c.ValueMap.PutValue("term", term)
	return c
}

func (c *Campaign) PutContent(content string) *Campaign {
	c.ValueMap.PutValue("content", content)
	return c
}

func (c *Campaign) Name() string    { return c.String("name") }
func (c *Campaign) Source() string  { return c.String("source") }
func (c *Campaign) Medium() string  { return c.String("medium") }
func (c *Campaign) Term() string    { return c.String("term") }
func (c *Campaign) Content() string { return c.String("content") }

// Device holds device identity and advertising state.
type Device struct {
	*ValueMap
}

func (d *Device) valueMap() *ValueMap {
	if d == nil {
		return nil
	}
	return d.ValueMap
}

// PutAdvertisingInfo records the advertising id only when ad tracking is
// enabled; the tracking flag itself is always recorded.
func (d *Device) PutAdvertisingInfo(advertisingID string, adTrackingEnabled bool) {
	if adTrackingEnabled && advertisingID != "" {
		d.ValueMap.PutValue(DeviceAdvertisingIDKey, advertisingID)
	}
	d.ValueMap.PutValue(DeviceAdTrackingEnabledKey, adTrackingEnabled)
}

// PutDeviceToken sets the push token.
func (d *Device) PutDeviceToken(token string) *Device {
	d.ValueMap.PutValue(DeviceTokenKey, token)
	return d
}

func (d *Device) ID() string            { return d.String(DeviceIDKey) }
func (d *Device) AdvertisingID() string { return d.String(DeviceAdvertisingIDKey) }
func (d *Device) Token() string         { return d.String(DeviceTokenKey) }

// Location is the geographic position of the device.
type Location struct {
	*ValueMap
}

// NewLocation returns an empty location.
func NewLocation() *Location { return &Location{NewValueMap()} }

func (l *Location) valueMap() *ValueMap {
	if l == nil {
		return nil
	}
	return l.ValueMap
}

func (l *Location) PutLatitude(v float64) *Location {
	l.ValueMap.PutValue("latitude", v)
	return l
}

func (l *Location) PutLongitude(v float64) *Location {
	l.ValueMap.PutValue("longitude", v)
	return l
}

func (l *Location) PutSpeed(v float64) *Location {
	l.ValueMap.PutValue("speed", v)
	return l
}

func (l *Location) Latitude() float64  { return l.Float64("latitude", 0) }
func (l *Location) Longitude() float64 { return l.Float64("longitude", 0) }
func (l *Location) Speed() float64     { return l.Float64("speed", 0) }

// Referrer describes what referred the user to the app.
type Referrer struct {
	*ValueMap
}

// NewReferrer returns an empty referrer.
func NewReferrer() *Referrer { return &Referrer{NewValueMap()} }

func (r *Referrer) valueMap() *ValueMap {
	if r == nil {
		return nil
	}
	return r.ValueMap
}

func (r *Referrer) PutID(id string) *Referrer {
	r.ValueMap.PutValue("id", id)
	return r
}

func (r *Referrer) PutLink(link string) *Referrer {
	r.ValueMap.PutValue("link", link)
	return r
}

func (r *Referrer) PutName(name string) *Referrer {
	r.ValueMap.PutValue("name", name)
	return r
}

func (r *Referrer) PutType(t string) *Referrer {
	r.ValueMap.PutValue("type", t)
	return r
}

func (r *Referrer) PutURL(url string) *Referrer {
	r.ValueMap.PutValue("url", url)
	return r
}

func (r *Referrer) ID() string   { return r.String("id") }
func (r *Referrer) Link() string { return r.String("link") }
func (r *Referrer) Name() string { return r.String("name") }
func (r *Referrer) Type() string { return r.String("type") }
func (r *Referrer) URL() string  { return r.String("url") }
