package probe

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ErrNoBuild is returned by Static.AppBuild when no build is configured.
var ErrNoBuild = errors.New("app build unavailable")

// ErrNoAdvertisingID is returned by Static.AdvertisingInfo when the fixture
// has no advertising section.
var ErrNoAdvertisingID = errors.New("advertising id unavailable")

// Advertising is the advertising state a fixture device reports.
type Advertising struct {
	ID              string `yaml:"id"`
	LimitAdTracking bool   `yaml:"limit_ad_tracking"`
}

// Static is an Environment backed by fixed values. Pointer fields model
// facts the environment cannot supply at all.
type Static struct {
	Build        string         `yaml:"build"`
	ID           string         `yaml:"device_id"`
	Brand        string         `yaml:"manufacturer"`
	Name         string         `yaml:"device_name"`
	Net          *NetworkState  `yaml:"network"`
	CarrierName  *string        `yaml:"carrier"`
	OS           string         `yaml:"os_version"`
	Display      *ScreenMetrics `yaml:"screen"`
	LocaleTag    string         `yaml:"locale"`
	TimezoneID   string         `yaml:"timezone"`
	UserAgentStr string         `yaml:"user_agent"`
	Ads          *Advertising   `yaml:"advertising"`
}

// LoadStatic reads a YAML fixture describing a device.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read probe fixture: %w", err)
	}
	var s Static
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse probe fixture: %w", err)
	}
	return &s, nil
}

// AdvertisingInfo reports the fixture's advertising id. It honours ctx so a
// caller's timeout applies the same way it would to a platform lookup.
func (s *Static) AdvertisingInfo(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if s.Ads == nil {
		return "", false, ErrNoAdvertisingID
	}
	return s.Ads.ID, s.Ads.LimitAdTracking, nil
}

func (s *Static) AppBuild() (string, error) {
	if s.Build == "" {
		return "", ErrNoBuild
	}
	return s.Build, nil
}

func (s *Static) DeviceID() string     { return s.ID }
func (s *Static) Manufacturer() string { return s.Brand }
func (s *Static) DeviceName() string   { return s.Name }
func (s *Static) OSVersion() string    { return s.OS }
func (s *Static) Timezone() string     { return s.TimezoneID }
func (s *Static) UserAgent() string    { return s.UserAgentStr }

func (s *Static) Network() (NetworkState, bool) {
	if s.Net == nil {
		return NetworkState{}, false
	}
	return *s.Net, true
}

func (s *Static) Carrier() (string, bool) {
	if s.CarrierName == nil {
		return "", false
	}
	return *s.CarrierName, true
}

func (s *Static) Screen() (ScreenMetrics, bool) {
	if s.Display == nil {
		return ScreenMetrics{}, false
	}
	return *s.Display, true
}

func (s *Static) Locale() language.Tag {
	return ParseLocale(s.LocaleTag)
}
