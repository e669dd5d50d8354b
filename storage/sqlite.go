package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

// SQLiteStore keeps history in a local file. Timestamps are stored as unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = filepath.Join("data", "atlas-history.db")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := ensureSQLiteSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS traffic_history (
			port_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			vessel_count INTEGER NOT NULL,
			wait_time_hours REAL NOT NULL,
			congestion_index REAL NOT NULL,
			PRIMARY KEY (port_id, ts)
		);
		CREATE TABLE IF NOT EXISTS weather_alerts (
			alert_key TEXT PRIMARY KEY,
			zone TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			duration_hours REAL NOT NULL,
			affected_port_id TEXT NOT NULL DEFAULT '',
			affected_port_name TEXT NOT NULL DEFAULT '',
			lat REAL NOT NULL DEFAULT 0,
			lng REAL NOT NULL DEFAULT 0,
			ts INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_weather_alerts_ts ON weather_alerts(ts);
		CREATE TABLE IF NOT EXISTS news_articles (
			article_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			port_id TEXT NOT NULL DEFAULT '',
			port_name TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			sentiment_score REAL NOT NULL,
			ts INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_news_articles_port_ts ON news_articles(port_id, ts);
	`)
	if err != nil {
		return fmt.Errorf("creating history tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendTraffic(ctx context.Context, p models.TrafficHistoryPoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO traffic_history (port_id, ts, vessel_count, wait_time_hours, congestion_index)
		VALUES (?, ?, ?, ?, ?)
	`, p.PortID, p.Timestamp.UnixNano(), p.VesselCount, p.WaitTimeHours, p.CongestionIndex)
	if err != nil {
		return fmt.Errorf("inserting traffic point: %w", err)
	}
	return nil
}

func (s *SQLiteStore) TrafficHistory(ctx context.Context, portID string, since time.Time) ([]models.TrafficHistoryPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT port_id, ts, vessel_count, wait_time_hours, congestion_index
		FROM traffic_history
		WHERE port_id = ? AND ts >= ?
		ORDER BY ts ASC
	`, portID, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("querying traffic history: %w", err)
	}
	defer rows.Close()

	points := make([]models.TrafficHistoryPoint, 0)
	for rows.Next() {
		var p models.TrafficHistoryPoint
		var ts int64
		if err := rows.Scan(&p.PortID, &ts, &p.VesselCount, &p.WaitTimeHours, &p.CongestionIndex); err != nil {
			return nil, fmt.Errorf("scanning traffic point: %w", err)
		}
		p.Timestamp = time.Unix(0, ts).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLiteStore) PruneTraffic(ctx context.Context, portID string, before time.Time) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM traffic_history WHERE port_id = ? AND ts < ?`, portID, before.UnixNano()); err != nil {
		return fmt.Errorf("pruning traffic history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveAlert(ctx context.Context, a models.WeatherAlert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO weather_alerts
			(alert_key, zone, alert_type, severity, duration_hours, affected_port_id, affected_port_name, lat, lng, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Key(), a.Zone, a.Type, string(a.Severity), a.DurationHours, a.AffectedPortID, a.AffectedPortName, a.Latitude, a.Longitude, a.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting weather alert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Alerts(ctx context.Context, since time.Time) ([]models.WeatherAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT zone, alert_type, severity, duration_hours, affected_port_id, affected_port_name, lat, lng, ts
		FROM weather_alerts
		WHERE ts >= ?
		ORDER BY ts DESC, zone ASC
	`, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("querying weather alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.WeatherAlert, 0)
	for rows.Next() {
		var a models.WeatherAlert
		var severity string
		var ts int64
		if err := rows.Scan(&a.Zone, &a.Type, &severity, &a.DurationHours, &a.AffectedPortID, &a.AffectedPortName, &a.Latitude, &a.Longitude, &ts); err != nil {
			return nil, fmt.Errorf("scanning weather alert: %w", err)
		}
		a.Severity, _ = models.ParseSeverity(severity)
		a.Timestamp = time.Unix(0, ts).UTC()
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *SQLiteStore) SaveArticle(ctx context.Context, a models.NewsArticle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO news_articles
			(article_id, title, content, source, port_id, port_name, region, sentiment_score, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Title, a.Content, a.Source, a.PortID, a.PortName, a.Region, a.SentimentScore, a.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting news article: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Articles(ctx context.Context, portID string, since time.Time) ([]models.NewsArticle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT article_id, title, content, source, port_id, port_name, region, sentiment_score, ts
		FROM news_articles
		WHERE (? = '' OR port_id = ?) AND ts >= ?
		ORDER BY ts DESC, article_id ASC
	`, portID, portID, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("querying news articles: %w", err)
	}
	defer rows.Close()

	articles := make([]models.NewsArticle, 0)
	for rows.Next() {
		var a models.NewsArticle
		var ts int64
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Source, &a.PortID, &a.PortName, &a.Region, &a.SentimentScore, &ts); err != nil {
			return nil, fmt.Errorf("scanning news article: %w", err)
		}
		a.Timestamp = time.Unix(0, ts).UTC()
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM traffic_history),
			(SELECT COUNT(*) FROM weather_alerts),
			(SELECT COUNT(*) FROM news_articles)
	`).Scan(&c.TrafficPoints, &c.Alerts, &c.Articles)
	if err != nil {
		return Counts{}, fmt.Errorf("counting history: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
