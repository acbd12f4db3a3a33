package geoip

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func writeFallback(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geo.json")
	data := `[
		{"net": "203.0.113.0/24", "country": "DE", "lat": 52.52, "lon": 13.40, "time_zone": "Europe/Berlin"},
		{"net": "bogus", "country": "XX"}
	]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}
	return path
}

func TestLocateFallback(t *testing.T) {
	g, err := Init(writeFallback(t))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer g.Close()

	loc, ok := g.Locate(net.ParseIP("203.0.113.7"))
	if !ok {
		t.Fatal("expected a match")
	}
	if loc.Country != "DE" || loc.TimeZone != "Europe/Berlin" || loc.Latitude != 52.52 || loc.Longitude != 13.40 {
		t.Fatalf("unexpected location: %+v", loc)
	}

	if _, ok := g.Locate(net.ParseIP("198.51.100.1")); ok {
		t.Fatal("expected no match outside the fallback ranges")
	}
}

func TestLocateNil(t *testing.T) {
	var g *GeoIP
	if _, ok := g.Locate(net.ParseIP("203.0.113.7")); ok {
		t.Fatal("nil GeoIP must not match")
	}
	if err := g.Close(); err != nil {
		t.Fatalf("close nil: %v", err)
	}
}

func TestInitMissingFile(t *testing.T) {
	if _, err := Init(filepath.Join(t.TempDir(), "missing.mmdb")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
