package probe

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Host probes the machine the process runs on. Files are read relative to
// Root so tests can point it at a fake filesystem.
type Host struct {
	Root  string
	Agent string // HTTP user agent reported by the host application
}

// NewHost returns a probe for the local machine.
func NewHost(agent string) *Host {
	return &Host{Root: "/", Agent: agent}
}

func (h *Host) read(path string) string {
	data, err := os.ReadFile(filepath.Join(h.Root, path))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// AppBuild reports the main module version, falling back to the VCS revision.
func (h *Host) AppBuild() (string, error) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", errors.New("build info unavailable")
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v, nil
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value, nil
		}
	}
	return "", errors.New("no build version recorded")
}

func (h *Host) DeviceID() string {
	if id := h.read("etc/machine-id"); id != "" {
		return id
	}
	return h.read("var/lib/dbus/machine-id")
}

func (h *Host) Manufacturer() string {
	return h.read("sys/class/dmi/id/sys_vendor")
}

func (h *Host) DeviceName() string {
	if name := h.read("etc/hostname"); name != "" {
		return name
	}
	name, _ := os.Hostname()
	return name
}

// Network is not observable from an unprivileged process.
func (h *Host) Network() (NetworkState, bool) {
	return NetworkState{}, false
}

// Carrier always reports no telephony.
func (h *Host) Carrier() (string, bool) {
	return "", false
}

// OSVersion reads VERSION_ID from os-release.
func (h *Host) OSVersion() string {
	f, err := os.Open(filepath.Join(h.Root, "etc/os-release"))
	if err != nil {
		return ""
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if v, ok := strings.CutPrefix(sc.Text(), "VERSION_ID="); ok {
			return strings.Trim(v, `"'`)
		}
	}
	return ""
}

// Screen reports no display for headless hosts.
func (h *Host) Screen() (ScreenMetrics, bool) {
	return ScreenMetrics{}, false
}

// Locale follows the POSIX precedence LC_ALL, LC_MESSAGES, LANG.
func (h *Host) Locale() language.Tag {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return ParseLocale(v)
		}
	}
	return language.Und
}

func (h *Host) Timezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return strings.TrimPrefix(tz, ":")
	}
	if tz := h.read("etc/timezone"); tz != "" {
		return tz
	}
	if name := time.Local.String(); name != "Local" {
		return name
	}
	return ""
}

func (h *Host) UserAgent() string {
	return h.Agent
}
