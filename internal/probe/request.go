package probe

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/avct/uasurfer"
	"golang.org/x/text/language"

	"github.com/patrickwarner/streamlytics/internal/geoip"
)

// DeviceIDHeader carries the caller's stable device identifier.
const DeviceIDHeader = "X-Device-Id"

// Request derives an Environment from an inbound HTTP request: the user
// agent describes the device, Accept-Language the locale and the client IP
// the timezone.
type Request struct {
	ua       *uasurfer.UserAgent
	agent    string
	deviceID string
	locale   language.Tag
	location geoip.Location
	located  bool
}

// FromRequest builds a Request probe. geo may be nil.
func FromRequest(r *http.Request, geo *geoip.GeoIP) *Request {
	agent := r.Header.Get("User-Agent")
	p := &Request{
		ua:       uasurfer.Parse(agent),
		agent:    agent,
		deviceID: r.Header.Get(DeviceIDHeader),
		locale:   language.Und,
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			p.locale = tags[0]
		}
	}
	if geo != nil {
		p.location, p.located = geo.Locate(net.ParseIP(ClientIP(r)))
	}
	return p
}

// ClientIP returns the first X-Forwarded-For hop, or the remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx != -1 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Location returns the geo position resolved for the client IP.
func (p *Request) Location() (geoip.Location, bool) {
	return p.location, p.located
}

// DeviceClass maps the user agent to "mobile", "tablet", "desktop", "tv" or "other".
func (p *Request) DeviceClass() string {
	switch p.ua.DeviceType {
	case uasurfer.DeviceComputer:
		return "desktop"
	case uasurfer.DevicePhone:
		return "mobile"
	case uasurfer.DeviceTablet:
		return "tablet"
	case uasurfer.DeviceTV:
		return "tv"
	default:
		return "other"
	}
}

// IsBot reports whether the user agent belongs to a crawler.
func (p *Request) IsBot() bool {
	return p.ua.IsBot()
}

func (p *Request) AppBuild() (string, error) {
	return "", fmt.Errorf("app build not available from request")
}

func (p *Request) DeviceID() string { return p.deviceID }

func (p *Request) Manufacturer() string {
	switch p.ua.OS.Platform {
	case uasurfer.PlatformUnknown:
		return ""
	default:
		return strings.TrimPrefix(p.ua.OS.Platform.String(), "Platform")
	}
}

func (p *Request) DeviceName() string {
	if p.ua.OS.Name == uasurfer.OSUnknown {
		return ""
	}
	return strings.TrimPrefix(p.ua.OS.Name.String(), "OS") + " " + p.DeviceClass()
}

func (p *Request) Network() (NetworkState, bool) { return NetworkState{}, false }
func (p *Request) Carrier() (string, bool)       { return "", false }

func (p *Request) OSVersion() string {
	v := p.ua.OS.Version
	if v.Major == 0 && v.Minor == 0 && v.Patch == 0 {
		return ""
	}
	if v.Patch == 0 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (p *Request) Screen() (ScreenMetrics, bool) { return ScreenMetrics{}, false }
func (p *Request) Locale() language.Tag          { return p.locale }
func (p *Request) Timezone() string              { return p.location.TimeZone }
func (p *Request) UserAgent() string             { return p.agent }
