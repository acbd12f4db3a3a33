package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/patrickwarner/streamlytics/internal/models"
	"github.com/patrickwarner/streamlytics/internal/observability"
	"github.com/patrickwarner/streamlytics/internal/payload"
)

// PoolConfig sizes the ClickHouse connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ClickHouseDispatcher stores payloads in the ClickHouse events table.
type ClickHouseDispatcher struct {
	DB      *sql.DB
	Metrics observability.MetricsRegistry
}

var _ Dispatcher = (*ClickHouseDispatcher)(nil)

// EventRecord mirrors a row in the events table.
type EventRecord struct {
	Timestamp   time.Time       `json:"timestamp"`
	MessageID   string          `json:"message_id"`
	Type        string          `json:"type"`
	Event       *string         `json:"event"`
	UserID      *string         `json:"user_id"`
	AnonymousID string          `json:"anonymous_id"`
	ProfileID   *string         `json:"profile_id"`
	SessionID   *string         `json:"session_id"`
	ItemID      *string         `json:"item_id"`
	Properties  json.RawMessage `json:"properties"`
	Context     json.RawMessage `json:"context"`
}

// InitClickHouse connects to ClickHouse and ensures the events table exists.
func InitClickHouse(dsn string, pool PoolConfig, metrics observability.MetricsRegistry) (*ClickHouseDispatcher, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	return prepareClickHouse(context.Background(), db, metrics)
}

// prepareClickHouse pings db and creates the events table. db is closed on
// failure.
func prepareClickHouse(ctx context.Context, db *sql.DB, metrics observability.MetricsRegistry) (*ClickHouseDispatcher, error) {
	if err := db.PingContext(ctx); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	create := `CREATE TABLE IF NOT EXISTS events (
       timestamp    DateTime64(3),
       message_id   String,
       type         LowCardinality(String),
       event        Nullable(String),
       user_id      Nullable(String),
       anonymous_id String,
       profile_id   Nullable(String),
       session_id   Nullable(String),
       item_id      Nullable(String),
       properties   String,
       context      String
   ) ENGINE=MergeTree() ORDER BY (anonymous_id, timestamp)`
	if _, err := db.ExecContext(ctx, create); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &ClickHouseDispatcher{DB: db, Metrics: metrics}, nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		zap.L().Error("clickhouse close", zap.Error(err))
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFromOK(s string, ok bool) sql.NullString {
	return sql.NullString{String: s, Valid: ok}
}

// Dispatch inserts p as a single row. The context snapshot is stored as JSON.
func (d *ClickHouseDispatcher) Dispatch(ctx context.Context, p *payload.Payload, snapshot *models.AnalyticsContext) error {
	if d == nil || d.DB == nil {
		return ErrUnavailable
	}
	props, err := json.Marshal(p.Properties())
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	contextJSON := []byte("{}")
	if snapshot != nil {
		if contextJSON, err = json.Marshal(snapshot.ValueMap); err != nil {
			return fmt.Errorf("marshal context: %w", err)
		}
	}

	var item sql.NullString
	if t := p.Target(); t != nil {
		item = nullString(t.ID())
	}
	profileID, hasProfile := p.ProfileID()
	sessionID, hasSession := p.SessionID()

	start := time.Now()
	stmt := `INSERT INTO events (timestamp, message_id, type, event, user_id, anonymous_id, profile_id, session_id, item_id, properties, context) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = d.DB.ExecContext(ctx, stmt,
		p.Timestamp(), p.MessageID(), string(p.Kind()),
		nullString(p.Event()), nullString(p.UserID()), p.AnonymousID(),
		nullFromOK(profileID, hasProfile), nullFromOK(sessionID, hasSession),
		item, string(props), string(contextJSON))
	d.Metrics.RecordDispatchLatency(time.Since(start))
	if err != nil {
		zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("type", string(p.Kind())))
		return fmt.Errorf("insert %s event: %w", p.Kind(), err)
	}
	return nil
}

// Close terminates the ClickHouse connection.
func (d *ClickHouseDispatcher) Close() {
	if d != nil && d.DB != nil {
		if err := d.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}

// GetEventsByAnonymousID returns all events of an anonymous id ordered by timestamp.
func (d *ClickHouseDispatcher) GetEventsByAnonymousID(ctx context.Context, id string) ([]EventRecord, error) {
	if d == nil || d.DB == nil {
		return nil, ErrUnavailable
	}
	query := `SELECT timestamp, message_id, type, event, user_id, anonymous_id, profile_id, session_id, item_id, properties, context FROM events WHERE anonymous_id=? ORDER BY timestamp`
	rows, err := d.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var events []EventRecord
	for rows.Next() {
		var (
			ev           EventRecord
			props, cjson string
		)
		if err := rows.Scan(&ev.Timestamp, &ev.MessageID, &ev.Type, &ev.Event, &ev.UserID, &ev.AnonymousID, &ev.ProfileID, &ev.SessionID, &ev.ItemID, &props, &cjson); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Properties = json.RawMessage(props)
		ev.Context = json.RawMessage(cjson)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}
