// Package tracking turns stream metadata into playback events.
package tracking

import (
	"strings"

	"github.com/patrickwarner/streamlytics/internal/models"
	"github.com/patrickwarner/streamlytics/internal/payload"
)

// Playback event names.
const (
	Play     = "play"
	Pause    = "pause"
	Seek     = "seek"
	PlayNext = "play_next"
)

// ItemTypeVideo is the item type used for streams.
const ItemTypeVideo = "video"

// Target property keys.
const (
	CategoryKey = "category"
	LikesKey    = "likes"
	ChannelKey  = "channel"
	ViewsKey    = "views"
	TypeKey     = "type"
	TitleKey    = "title"
)

// StreamType classifies a stream.
type StreamType int

const (
	StreamNone StreamType = iota
	StreamVideo
	StreamAudio
	StreamLive
	StreamAudioLive
	StreamPostLive
)

var streamTypeNames = map[StreamType]string{
	StreamNone:      "NONE",
	StreamVideo:     "VIDEO",
	StreamAudio:     "AUDIO",
	StreamLive:      "LIVE",
	StreamAudioLive: "AUDIO_LIVE",
	StreamPostLive:  "POST_LIVE",
}

// String returns the upper-case name reported in the "type" property.
func (t StreamType) String() string {
	if n, ok := streamTypeNames[t]; ok {
		return n
	}
	return streamTypeNames[StreamNone]
}

// ParseStreamType maps a name back to its StreamType. A "_STREAM" suffix
// is accepted; unknown names map to StreamNone.
func ParseStreamType(s string) StreamType {
	s = strings.TrimSuffix(strings.ToUpper(s), "_STREAM")
	for t, n := range streamTypeNames {
		if s == n {
			return t
		}
	}
	return StreamNone
}

func (t StreamType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *StreamType) UnmarshalText(text []byte) error {
	*t = ParseStreamType(string(text))
	return nil
}

// StreamInfo is the subset of stream metadata reported with playback events.
type StreamInfo struct {
	ID       string     `json:"id"`
	Category string     `json:"category"`
	Likes    int64      `json:"likes"`
	Channel  string     `json:"channel"`
	Views    int64      `json:"views"`
	Type     StreamType `json:"type"`
	Title    string     `json:"title"`
}

// ItemTarget builds the target for info. Category and channel are only
// included when known; counts, type and title are always present.
func ItemTarget(itemType string, info StreamInfo) (*payload.Item, error) {
	return itemBuilder(itemType, info).Build()
}

func itemBuilder(itemType string, info StreamInfo) *payload.ItemBuilder {
	props := models.NewValueMap()
	if info.Category != "" {
		props.PutValue(CategoryKey, info.Category)
	}
	props.PutValue(LikesKey, info.Likes)
	if info.Channel != "" {
		props.PutValue(ChannelKey, info.Channel)
	}
	props.PutValue(ViewsKey, info.Views)
	props.PutValue(TypeKey, info.Type.String())
	props.PutValue(TitleKey, info.Title)

	return payload.NewItemBuilder().
		ItemID(info.ID).
		ItemType(itemType).
		PropertiesMap(props)
}

// VideoTarget is ItemTarget with the video item type.
func VideoTarget(info StreamInfo) (*payload.Item, error) {
	return ItemTarget(ItemTypeVideo, info)
}

// PlaybackEvent returns a track builder for event targeting info. A target
// error is reported by Build.
func PlaybackEvent(event string, info StreamInfo) *payload.Builder {
	return payload.NewTrack(event).TargetFrom(itemBuilder(ItemTypeVideo, info))
}
