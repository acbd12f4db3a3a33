package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/streamlytics/internal/analytics"
	"github.com/patrickwarner/streamlytics/internal/config"
	"github.com/patrickwarner/streamlytics/internal/geoip"
	"github.com/patrickwarner/streamlytics/internal/middleware"
	"github.com/patrickwarner/streamlytics/internal/observability"
	"github.com/patrickwarner/streamlytics/internal/settings"
)

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger   *zap.Logger
	Client   *analytics.Client
	Login    *settings.LoginListener
	Settings settings.Store
	GeoIP    *geoip.GeoIP
	Metrics  observability.MetricsRegistry
	Config   config.Config
}

// NewServer constructs a Server. The login listener is built on top of
// client and store.
func NewServer(logger *zap.Logger, client *analytics.Client, store settings.Store, geo *geoip.GeoIP, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	login := settings.NewLoginListener(client, store, metrics, logger)
	if cfg.LoginEmailKey != "" {
		login.Key = cfg.LoginEmailKey
	}
	return &Server{
		Logger:   logger,
		Client:   client,
		Login:    login,
		Settings: store,
		GeoIP:    geo,
		Metrics:  metrics,
		Config:   cfg,
	}
}

// Router returns the HTTP handler serving every route, wrapped in tracing.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(s.Logger))
	r.Use(middleware.RequestMetrics(s.Metrics))

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/track", s.TrackHandler).Methods(http.MethodPost).Name("track")
	v1.HandleFunc("/screen", s.ScreenHandler).Methods(http.MethodPost).Name("screen")
	v1.HandleFunc("/identify", s.IdentifyHandler).Methods(http.MethodPost).Name("identify")
	v1.HandleFunc("/context", s.ContextHandler).Methods(http.MethodGet).Name("context")
	v1.HandleFunc("/context/{object}", s.PutContextHandler).Methods(http.MethodPut).Name("context_put")
	v1.HandleFunc("/probe", s.ProbeHandler).Methods(http.MethodGet).Name("probe")
	v1.HandleFunc("/settings", s.GetSettingsHandler).Methods(http.MethodGet).Name("settings")
	v1.HandleFunc("/settings/login", s.LoginHandler).Methods(http.MethodPost).Name("settings_login")

	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet).Name("health")
	r.Handle("/metrics", promhttp.Handler()).Name("metrics")

	return otelhttp.NewHandler(r, s.Config.ServiceName)
}
