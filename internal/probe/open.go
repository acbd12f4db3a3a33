package probe

import "github.com/patrickwarner/streamlytics/internal/config"

// Open returns the fixture environment when one is configured, otherwise
// the running host.
func Open(cfg config.Config) (Environment, error) {
	if cfg.ProbeFixture != "" {
		return LoadStatic(cfg.ProbeFixture)
	}
	return NewHost(cfg.HTTPAgent), nil
}
