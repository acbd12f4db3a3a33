// Package reporting builds playback reports from the ClickHouse events table.
package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PlaybackMetrics counts playback events over a period. Rates are
// percentages (0-100) relative to plays.
type PlaybackMetrics struct {
	Date      time.Time `json:"date"`
	Plays     int64     `json:"plays"`
	Pauses    int64     `json:"pauses"`
	Seeks     int64     `json:"seeks"`
	PlayNexts int64     `json:"play_nexts"`
	Screens   int64     `json:"screens"`
	Users     int64     `json:"users"` // distinct anonymous ids
	PauseRate float64   `json:"pause_rate"`
	SeekRate  float64   `json:"seek_rate"`
	NextRate  float64   `json:"next_rate"`
}

// StreamMetrics is the per-stream breakdown used for the top streams table.
type StreamMetrics struct {
	ItemID string `json:"item_id"`
	Plays  int64  `json:"plays"`
	Users  int64  `json:"users"`
}

// PlaybackSummary is a full report for the last Days days.
type PlaybackSummary struct {
	Days       int               `json:"days"`
	Total      PlaybackMetrics   `json:"total"`
	Daily      []PlaybackMetrics `json:"daily"`
	TopStreams []StreamMetrics   `json:"top_streams"`
}

func rate(n, plays int64) float64 {
	if plays == 0 {
		return 0
	}
	return float64(n) / float64(plays) * 100
}

func (m *PlaybackMetrics) derive() {
	m.PauseRate = rate(m.Pauses, m.Plays)
	m.SeekRate = rate(m.Seeks, m.Plays)
	m.NextRate = rate(m.PlayNexts, m.Plays)
}

// Totals sums daily metrics. Users is the largest daily count since
// distinct users cannot be summed across days.
func Totals(daily []PlaybackMetrics) PlaybackMetrics {
	total := PlaybackMetrics{Date: time.Now()}
	for _, d := range daily {
		total.Plays += d.Plays
		total.Pauses += d.Pauses
		total.Seeks += d.Seeks
		total.PlayNexts += d.PlayNexts
		total.Screens += d.Screens
		if d.Users > total.Users {
			total.Users = d.Users
		}
	}
	total.derive()
	return total
}

// GeneratePlaybackReport queries ClickHouse for the last days days and
// returns daily metrics, totals and the top streams by plays.
func GeneratePlaybackReport(ctx context.Context, db *sql.DB, days, topN int) (*PlaybackSummary, error) {
	daily, err := getDailyMetrics(ctx, db, days)
	if err != nil {
		return nil, fmt.Errorf("get daily metrics: %w", err)
	}
	top, err := getTopStreams(ctx, db, days, topN)
	if err != nil {
		return nil, fmt.Errorf("get top streams: %w", err)
	}
	return &PlaybackSummary{
		Days:       days,
		Total:      Totals(daily),
		Daily:      daily,
		TopStreams: top,
	}, nil
}

func getDailyMetrics(ctx context.Context, db *sql.DB, days int) ([]PlaybackMetrics, error) {
	query := `
		SELECT
			toDate(timestamp) as date,
			countIf(type = 'track' AND event = 'play') as plays,
			countIf(type = 'track' AND event = 'pause') as pauses,
			countIf(type = 'track' AND event = 'seek') as seeks,
			countIf(type = 'track' AND event = 'play_next') as play_nexts,
			countIf(type = 'screen') as screens,
			uniqExact(anonymous_id) as users
		FROM events
		WHERE timestamp >= now() - INTERVAL ? DAY
		GROUP BY date
		ORDER BY date DESC`

	rows, err := db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("query daily metrics: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var metrics []PlaybackMetrics
	for rows.Next() {
		var m PlaybackMetrics
		if err := rows.Scan(&m.Date, &m.Plays, &m.Pauses, &m.Seeks, &m.PlayNexts, &m.Screens, &m.Users); err != nil {
			return nil, fmt.Errorf("scan daily metrics: %w", err)
		}
		m.derive()
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func getTopStreams(ctx context.Context, db *sql.DB, days, limit int) ([]StreamMetrics, error) {
	query := `
		SELECT
			assumeNotNull(item_id) as item_id,
			countIf(event IN ('play', 'play_next')) as plays,
			uniqExact(anonymous_id) as users
		FROM events
		WHERE type = 'track'
			AND item_id IS NOT NULL
			AND timestamp >= now() - INTERVAL ? DAY
		GROUP BY item_id
		ORDER BY plays DESC
		LIMIT ?`

	rows, err := db.QueryContext(ctx, query, days, limit)
	if err != nil {
		return nil, fmt.Errorf("query top streams: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var streams []StreamMetrics
	for rows.Next() {
		var s StreamMetrics
		if err := rows.Scan(&s.ItemID, &s.Plays, &s.Users); err != nil {
			return nil, fmt.Errorf("scan stream metrics: %w", err)
		}
		streams = append(streams, s)
	}
	return streams, rows.Err()
}
