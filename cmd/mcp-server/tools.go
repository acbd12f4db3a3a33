package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/streamlytics/internal/analytics"
	"github.com/patrickwarner/streamlytics/internal/models"
	"github.com/patrickwarner/streamlytics/internal/payload"
	"github.com/patrickwarner/streamlytics/internal/tracking"
)

type TrackPlaybackInput struct {
	Event     string              `json:"event"`
	Stream    tracking.StreamInfo `json:"stream"`
	SessionID string              `json:"session_id,omitempty"`
	Extra     map[string]any      `json:"properties,omitempty"`
}

type TrackPlaybackOutput struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type IdentifyInput struct {
	UserID string         `json:"user_id"`
	Traits map[string]any `json:"traits,omitempty"`
}

type IdentifyOutput struct {
	Status string         `json:"status"`
	Traits map[string]any `json:"traits,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type GetContextInput struct {
	Section string `json:"section,omitempty"`
}

type GetContextOutput struct {
	Context map[string]any `json:"context"`
}

// AnalyticsMCPServer exposes the analytics client as MCP tools.
type AnalyticsMCPServer struct {
	client *analytics.Client
	logger *zap.Logger
}

// rejected turns validation failures into tool output so the caller can
// correct its input; other errors fail the call.
func rejected(err error) (string, error) {
	var verr *payload.ValidationError
	if errors.As(err, &verr) {
		return verr.Error(), nil
	}
	return "", err
}

// TrackPlayback implements the track_playback tool.
func (s *AnalyticsMCPServer) TrackPlayback(ctx context.Context, req *mcp.CallToolRequest, input TrackPlaybackInput) (*mcp.CallToolResult, TrackPlaybackOutput, error) {
	b := tracking.PlaybackEvent(input.Event, input.Stream)
	if input.SessionID != "" {
		b.SessionID(input.SessionID)
	}
	if len(input.Extra) > 0 {
		b.PropertiesMap(models.ValueMapFrom(input.Extra))
	}

	if err := s.client.Track(ctx, b); err != nil {
		msg, err := rejected(err)
		if err != nil {
			s.logger.Error("track_playback failed", zap.String("event", input.Event), zap.Error(err))
			return nil, TrackPlaybackOutput{}, fmt.Errorf("track %s: %w", input.Event, err)
		}
		return nil, TrackPlaybackOutput{Status: "rejected", Error: msg}, nil
	}
	s.logger.Info("playback tracked", zap.String("event", input.Event), zap.String("item_id", input.Stream.ID))
	return nil, TrackPlaybackOutput{Status: "accepted"}, nil
}

// Identify implements the identify tool.
func (s *AnalyticsMCPServer) Identify(ctx context.Context, req *mcp.CallToolRequest, input IdentifyInput) (*mcp.CallToolResult, IdentifyOutput, error) {
	var traits *models.Traits
	if input.Traits != nil {
		traits = models.TraitsFrom(models.ValueMapFrom(input.Traits))
	}
	if err := s.client.Identify(ctx, input.UserID, traits); err != nil {
		msg, err := rejected(err)
		if err != nil {
			return nil, IdentifyOutput{}, fmt.Errorf("identify: %w", err)
		}
		return nil, IdentifyOutput{Status: "rejected", Error: msg}, nil
	}

	snap, err := s.client.Context(ctx)
	if err != nil {
		return nil, IdentifyOutput{}, err
	}
	return nil, IdentifyOutput{Status: "accepted", Traits: snap.Traits().ToMap()}, nil
}

// GetContext implements the get_context tool. An optional section limits
// the output to one top-level entry such as "device" or "traits".
func (s *AnalyticsMCPServer) GetContext(ctx context.Context, req *mcp.CallToolRequest, input GetContextInput) (*mcp.CallToolResult, GetContextOutput, error) {
	snap, err := s.client.Context(ctx)
	if err != nil {
		return nil, GetContextOutput{}, err
	}
	all := snap.ToMap()
	if input.Section == "" {
		return nil, GetContextOutput{Context: all}, nil
	}
	v, ok := all[input.Section]
	if !ok {
		return nil, GetContextOutput{}, fmt.Errorf("unknown context section %q", input.Section)
	}
	return nil, GetContextOutput{Context: map[string]any{input.Section: v}}, nil
}

func registerTools(server *mcp.Server, s *AnalyticsMCPServer) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "track_playback",
		Description: "Track a playback event (play, pause, seek, play_next) against a stream",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"event": map[string]interface{}{
					"type":        "string",
					"enum":        []string{tracking.Play, tracking.Pause, tracking.Seek, tracking.PlayNext},
					"description": "Playback event name",
				},
				"stream": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":       map[string]interface{}{"type": "string"},
						"category": map[string]interface{}{"type": "string"},
						"likes":    map[string]interface{}{"type": "integer"},
						"channel":  map[string]interface{}{"type": "string"},
						"views":    map[string]interface{}{"type": "integer"},
						"type":     map[string]interface{}{"type": "string"},
						"title":    map[string]interface{}{"type": "string"},
					},
					"required":    []string{"id"},
					"description": "Stream the event refers to",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Playback session id (optional)",
				},
				"properties": map[string]interface{}{
					"type":        "object",
					"description": "Additional event properties (optional)",
				},
			},
			"required": []string{"event", "stream"},
		},
	}, s.TrackPlayback)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "identify",
		Description: "Associate the current user with a user id and traits",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "User id, for example the login email",
				},
				"traits": map[string]interface{}{
					"type":        "object",
					"description": "Traits merged into the current ones (optional)",
				},
			},
			"required": []string{"user_id"},
		},
	}, s.Identify)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_context",
		Description: "Return the current analytics context",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"section": map[string]interface{}{
					"type":        "string",
					"description": "Top-level context entry to return, e.g. device or traits (optional)",
				},
			},
		},
	}, s.GetContext)
}
