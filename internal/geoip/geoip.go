package geoip

import (
	"encoding/json"
	"net"
	"os"

	"github.com/oschwald/geoip2-golang"
)

// GeoIP resolves coarse location facts for an IP using a MaxMind City
// database, or a JSON list of CIDR records when the file is not an mmdb.
type GeoIP struct {
	db       *geoip2.Reader
	fallback []record
}

// Location is the geo position attached to an analytics context.
type Location struct {
	Latitude  float64
	Longitude float64
	TimeZone  string
	Country   string
}

type record struct {
	net      *net.IPNet
	country  string
	lat      float64
	lon      float64
	timeZone string
}

// Init opens the GeoIP2 database located at path. A JSON fallback file with
// entries of the form {"net","country","lat","lon","time_zone"} is accepted too.
func Init(path string) (*GeoIP, error) {
	g := &GeoIP{}
	db, err := geoip2.Open(path)
	if err == nil {
		g.db = db
		return g, nil
	}

	data, jerr := os.ReadFile(path)
	if jerr != nil {
		return nil, err
	}
	var entries []struct {
		Net      string  `json:"net"`
		Country  string  `json:"country"`
		Lat      float64 `json:"lat"`
		Lon      float64 `json:"lon"`
		TimeZone string  `json:"time_zone"`
	}
	if jerr = json.Unmarshal(data, &entries); jerr != nil {
		return nil, err
	}
	for _, e := range entries {
		if _, n, perr := net.ParseCIDR(e.Net); perr == nil {
			g.fallback = append(g.fallback, record{net: n, country: e.Country, lat: e.Lat, lon: e.Lon, timeZone: e.TimeZone})
		}
	}
	return g, nil
}

// Locate returns the location for ip. ok is false when nothing matched or
// the database hasn't been initialised.
func (g *GeoIP) Locate(ip net.IP) (Location, bool) {
	if g == nil || ip == nil {
		return Location{}, false
	}
	if g.db != nil {
		rec, err := g.db.City(ip)
		if err == nil && (rec.Location.Latitude != 0 || rec.Location.Longitude != 0 || rec.Country.IsoCode != "") {
			return Location{
				Latitude:  rec.Location.Latitude,
				Longitude: rec.Location.Longitude,
				TimeZone:  rec.Location.TimeZone,
				Country:   rec.Country.IsoCode,
			}, true
		}
	}
	for _, r := range g.fallback {
		if r.net.Contains(ip) {
			return Location{Latitude: r.lat, Longitude: r.lon, TimeZone: r.timeZone, Country: r.country}, true
		}
	}
	return Location{}, false
}

// Close releases resources associated with the database.
func (g *GeoIP) Close() error {
	if g != nil && g.db != nil {
		return g.db.Close()
	}
	return nil
}
