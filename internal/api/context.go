package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/patrickwarner/streamlytics/internal/models"
	"github.com/patrickwarner/streamlytics/internal/probe"
)

// ContextHandler handles GET /v1/context and returns the current snapshot.
func (s *Server) ContextHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Client.Context(r.Context())
	if err != nil {
		s.writeClientError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.ValueMap)
}

var errUnknownObject = errors.New("unknown context object")

// PutContextHandler handles PUT /v1/context/{object} for the optional
// campaign, location, referrer and device_token entries.
func (s *Server) PutContextHandler(w http.ResponseWriter, r *http.Request) {
	object := mux.Vars(r)["object"]

	body := models.NewValueMap()
	if err := decodeBody(w, r, body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx := r.Context()
	var err error
	switch object {
	case models.CampaignKey:
		err = s.Client.PutCampaign(ctx, &models.Campaign{ValueMap: body})
	case models.LocationKey:
		err = s.Client.PutLocation(ctx, &models.Location{ValueMap: body})
	case models.ReferrerKey:
		err = s.Client.PutReferrer(ctx, &models.Referrer{ValueMap: body})
	case "device_token":
		token := body.String(models.DeviceTokenKey)
		if token == "" {
			writeError(w, http.StatusBadRequest, "token cannot be null or empty")
			return
		}
		err = s.Client.PutDeviceToken(ctx, token)
	default:
		writeError(w, http.StatusNotFound, errUnknownObject.Error())
		return
	}
	if err != nil {
		s.writeClientError(w, r, err)
		return
	}

	snap, err := s.Client.Context(ctx)
	if err != nil {
		s.writeClientError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.ValueMap)
}

// ProbeHandler handles GET /v1/probe. It builds a fresh context from the
// request itself and does not touch the client context.
func (s *Server) ProbeHandler(w http.ResponseWriter, r *http.Request) {
	env := probe.FromRequest(r, s.GeoIP)
	actx := models.NewAnalyticsContext(env, nil, s.Config.CollectDeviceID)
	if loc, ok := env.Location(); ok {
		actx.PutLocation(models.NewLocation().PutLatitude(loc.Latitude).PutLongitude(loc.Longitude))
	}
	actx.PutValue("device_class", env.DeviceClass())
	if env.IsBot() {
		actx.PutValue("bot", true)
	}
	writeJSON(w, http.StatusOK, actx.ValueMap)
}
