package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/streamlytics/internal/analytics"
	"github.com/patrickwarner/streamlytics/internal/middleware"
	"github.com/patrickwarner/streamlytics/internal/models"
	"github.com/patrickwarner/streamlytics/internal/payload"
	"github.com/patrickwarner/streamlytics/internal/tracking"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type itemRequest struct {
	ItemID     string          `json:"itemId"`
	ItemType   string          `json:"itemType"`
	Properties json.RawMessage `json:"properties"`
}

// eventRequest is the body of /v1/track and /v1/screen. Properties are kept
// raw so an explicit null can be told apart from an absent field.
type eventRequest struct {
	Event       string               `json:"event"`
	Name        string               `json:"name"`
	UserID      string               `json:"userId"`
	AnonymousID string               `json:"anonymousId"`
	ProfileID   *string              `json:"profileId"`
	SessionID   *string              `json:"sessionId"`
	Timestamp   *time.Time           `json:"timestamp"`
	Properties  json.RawMessage      `json:"properties"`
	Target      *itemRequest         `json:"target"`
	Stream      *tracking.StreamInfo `json:"stream"`
}

type identifyRequest struct {
	UserID string          `json:"userId"`
	Traits json.RawMessage `json:"traits"`
}

// decodeMap returns the ordered map in raw. present is false when the field
// was absent; a JSON null yields present with a nil map.
func decodeMap(raw json.RawMessage) (m *models.ValueMap, present bool, err error) {
	if len(raw) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, true, nil
	}
	m = models.NewValueMap()
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, true, err
	}
	return m, true, nil
}

func (req *eventRequest) builder(kind payload.Kind) (*payload.Builder, error) {
	var b *payload.Builder
	switch {
	case kind == payload.KindScreen:
		b = payload.NewScreen(req.Name)
	case req.Stream != nil:
		b = tracking.PlaybackEvent(req.Event, *req.Stream)
	default:
		b = payload.NewTrack(req.Event)
	}
	b.UserID(req.UserID).AnonymousID(req.AnonymousID)
	if req.ProfileID != nil {
		b.ProfileID(*req.ProfileID)
	}
	if req.SessionID != nil {
		b.SessionID(*req.SessionID)
	}
	if req.Timestamp != nil {
		b.Timestamp(*req.Timestamp)
	}

	props, present, err := decodeMap(req.Properties)
	if err != nil {
		return nil, err
	}
	if present {
		b.PropertiesMap(props)
	}

	if req.Target != nil {
		ib := payload.NewItemBuilder().ItemID(req.Target.ItemID).ItemType(req.Target.ItemType)
		itemProps, present, err := decodeMap(req.Target.Properties)
		if err != nil {
			return nil, err
		}
		if present {
			ib.PropertiesMap(itemProps)
		}
		b.TargetFrom(ib)
	}
	return b, nil
}

// TrackHandler handles POST /v1/track.
func (s *Server) TrackHandler(w http.ResponseWriter, r *http.Request) {
	s.handleEvent(w, r, payload.KindTrack, s.Client.Track)
}

// ScreenHandler handles POST /v1/screen.
func (s *Server) ScreenHandler(w http.ResponseWriter, r *http.Request) {
	s.handleEvent(w, r, payload.KindScreen, s.Client.Screen)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request, kind payload.Kind, send func(context.Context, *payload.Builder) error) {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	var req eventRequest
	if err := decodeBody(w, r, &req); err != nil {
		logger.Warn("invalid event body", zap.String("type", string(kind)), zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := req.builder(kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid properties")
		return
	}
	if err := send(r.Context(), b); err != nil {
		s.writeClientError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// IdentifyHandler handles POST /v1/identify.
func (s *Server) IdentifyHandler(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	vm, _, err := decodeMap(req.Traits)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid traits")
		return
	}
	if err := s.Client.Identify(r.Context(), req.UserID, models.TraitsFrom(vm)); err != nil {
		s.writeClientError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// statusFor maps client errors to HTTP status codes.
func statusFor(err error) int {
	var verr *payload.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, analytics.ErrClosed), errors.Is(err, analytics.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeClientError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status != http.StatusBadRequest {
		middleware.LoggerFromRequest(r, s.Logger).Error("analytics request failed", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

// helper function to write JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
