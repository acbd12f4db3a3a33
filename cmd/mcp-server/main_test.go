package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/streamlytics/internal/analytics"
	"github.com/patrickwarner/streamlytics/internal/models"
	"github.com/patrickwarner/streamlytics/internal/probe"
	"github.com/patrickwarner/streamlytics/internal/tracking"
)

func newTestMCPServer(t *testing.T) (*AnalyticsMCPServer, *analytics.MockDispatcher) {
	t.Helper()
	d := analytics.NewMockDispatcher()
	client := analytics.NewClient(&probe.Static{ID: "dev-1", OS: "14"}, analytics.Options{
		Traits:     models.NewTraits().PutAnonymousID("anon-1"),
		Dispatcher: d,
		Logger:     zap.NewNop(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return &AnalyticsMCPServer{client: client, logger: zap.NewNop()}, d
}

func TestTrackPlayback(t *testing.T) {
	s, d := newTestMCPServer(t)

	_, out, err := s.TrackPlayback(context.Background(), nil, TrackPlaybackInput{
		Event:     tracking.Play,
		Stream:    tracking.StreamInfo{ID: "COD", Likes: 3, Views: 10, Type: tracking.StreamVideo, Title: "Call of Duty"},
		SessionID: "s-1",
		Extra:     map[string]any{"position": 5},
	})
	require.NoError(t, err)
	assert.Equal(t, "accepted", out.Status)

	calls := d.Calls()
	require.Len(t, calls, 1)
	p := calls[0].Payload
	assert.Equal(t, tracking.Play, p.Event())
	assert.Equal(t, "COD", p.Target().ID())
	assert.Equal(t, 5, p.Properties().Int("position", 0))
}

func TestTrackPlaybackRejected(t *testing.T) {
	s, d := newTestMCPServer(t)

	_, out, err := s.TrackPlayback(context.Background(), nil, TrackPlaybackInput{
		Event:  tracking.Pause,
		Stream: tracking.StreamInfo{Title: "no id"},
	})
	require.NoError(t, err)
	assert.Equal(t, "rejected", out.Status)
	assert.Equal(t, "itemId cannot be null or empty", out.Error)
	assert.Empty(t, d.Calls())
}

func TestTrackPlaybackDispatchError(t *testing.T) {
	s, d := newTestMCPServer(t)
	d.Err = analytics.ErrUnavailable

	_, _, err := s.TrackPlayback(context.Background(), nil, TrackPlaybackInput{
		Event:  tracking.Seek,
		Stream: tracking.StreamInfo{ID: "COD"},
	})
	assert.ErrorIs(t, err, analytics.ErrUnavailable)
}

func TestIdentifyTool(t *testing.T) {
	s, _ := newTestMCPServer(t)

	_, out, err := s.Identify(context.Background(), nil, IdentifyInput{
		UserID: "user@example.com",
		Traits: map[string]any{"name": "Ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, "accepted", out.Status)
	assert.Equal(t, "user@example.com", out.Traits["userId"])
	assert.Equal(t, "Ada", out.Traits["name"])
	assert.Equal(t, "anon-1", out.Traits["anonymousId"])

	_, out, err = s.Identify(context.Background(), nil, IdentifyInput{})
	require.NoError(t, err)
	assert.Equal(t, "rejected", out.Status)
	assert.Equal(t, "userId cannot be null or empty", out.Error)
}

func TestGetContextTool(t *testing.T) {
	s, _ := newTestMCPServer(t)

	_, out, err := s.GetContext(context.Background(), nil, GetContextInput{})
	require.NoError(t, err)
	assert.Contains(t, out.Context, "device")
	assert.Contains(t, out.Context, "traits")

	_, out, err = s.GetContext(context.Background(), nil, GetContextInput{Section: "os_version"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"os_version": "14"}, out.Context)

	_, _, err = s.GetContext(context.Background(), nil, GetContextInput{Section: "nope"})
	assert.Error(t, err)
}
