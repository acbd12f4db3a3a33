// Package probe reads facts about the environment an analytics client runs
// in. Probes never fail as a whole: a fact that cannot be read comes back
// empty (or with ok=false) and the context store decides how to record it.
package probe

import (
	"strings"

	"golang.org/x/text/language"
)

// NetworkState reports which transports are connected.
type NetworkState struct {
	Bluetooth bool
	Cellular  bool
}

// ScreenMetrics describes the default display.
type ScreenMetrics struct {
	Density float64
	Height  int
	Width   int
}

// Environment is the read-only view of the device the context store is
// seeded from.
type Environment interface {
	// AppBuild returns the application build number.
	AppBuild() (string, error)
	// DeviceID returns a stable device identifier.
	DeviceID() string
	Manufacturer() string
	DeviceName() string
	// Network returns false when connectivity cannot be inspected.
	Network() (NetworkState, bool)
	// Carrier returns false when there is no telephony service.
	Carrier() (string, bool)
	OSVersion() string
	// Screen returns false when there is no display.
	Screen() (ScreenMetrics, bool)
	Locale() language.Tag
	Timezone() string
	UserAgent() string
}

// FormatLocale renders tag as "<language>-<REGION>", e.g. "en-US". An
// undetermined tag renders as "".
func FormatLocale(tag language.Tag) string {
	if tag == language.Und {
		return ""
	}
	base, _ := tag.Base()
	region, _ := tag.Region()
	return base.String() + "-" + region.String()
}

// ParseLocale parses POSIX ("en_US.UTF-8") and BCP 47 ("en-US") locale
// strings. Unparseable input yields language.Und.
func ParseLocale(s string) language.Tag {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "_", "-")
	if s == "" || s == "C" || s == "POSIX" {
		return language.Und
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und
	}
	return tag
}
