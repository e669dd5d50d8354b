package storage

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

//go:embed sql/*.sql
var migrationFS embed.FS

type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings and applies the embedded migrations.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := NewPostgresStore(pool)
	if err := store.RunMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	entries, err := migrationFS.ReadDir("sql")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrationFS.ReadFile("sql/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *PostgresStore) AppendTraffic(ctx context.Context, p models.TrafficHistoryPoint) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO traffic_history (port_id, ts, vessel_count, wait_time_hours, congestion_index)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (port_id, ts) DO UPDATE SET
            vessel_count = EXCLUDED.vessel_count,
            wait_time_hours = EXCLUDED.wait_time_hours,
            congestion_index = EXCLUDED.congestion_index
    `, p.PortID, p.Timestamp.UTC(), p.VesselCount, p.WaitTimeHours, p.CongestionIndex)
	if err != nil {
		return fmt.Errorf("insert traffic point: %w", err)
	}
	return nil
}

func (s *PostgresStore) TrafficHistory(ctx context.Context, portID string, since time.Time) ([]models.TrafficHistoryPoint, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT port_id, ts, vessel_count, wait_time_hours, congestion_index
        FROM traffic_history
        WHERE port_id = $1 AND ts >= $2
        ORDER BY ts ASC
    `, portID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query traffic history: %w", err)
	}
	defer rows.Close()

	points := make([]models.TrafficHistoryPoint, 0)
	for rows.Next() {
		var p models.TrafficHistoryPoint
		if err := rows.Scan(&p.PortID, &p.Timestamp, &p.VesselCount, &p.WaitTimeHours, &p.CongestionIndex); err != nil {
			return nil, fmt.Errorf("scan traffic point: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *PostgresStore) PruneTraffic(ctx context.Context, portID string, before time.Time) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM traffic_history WHERE port_id = $1 AND ts < $2`, portID, before.UTC()); err != nil {
		return fmt.Errorf("prune traffic history: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveAlert(ctx context.Context, a models.WeatherAlert) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO weather_alerts
            (alert_key, zone, alert_type, severity, duration_hours, affected_port_id, affected_port_name, lat, lng, ts)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (alert_key) DO NOTHING
    `, a.Key(), a.Zone, a.Type, string(a.Severity), a.DurationHours, a.AffectedPortID, a.AffectedPortName, a.Latitude, a.Longitude, a.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert weather alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Alerts(ctx context.Context, since time.Time) ([]models.WeatherAlert, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT zone, alert_type, severity, duration_hours, affected_port_id, affected_port_name, lat, lng, ts
        FROM weather_alerts
        WHERE ts >= $1
        ORDER BY ts DESC, zone ASC
    `, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query weather alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.WeatherAlert, 0)
	for rows.Next() {
		var a models.WeatherAlert
		var severity string
		if err := rows.Scan(&a.Zone, &a.Type, &severity, &a.DurationHours, &a.AffectedPortID, &a.AffectedPortName, &a.Latitude, &a.Longitude, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan weather alert: %w", err)
		}
		a.Severity, _ = models.ParseSeverity(severity)
		a.Timestamp = a.Timestamp.UTC()
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *PostgresStore) SaveArticle(ctx context.Context, a models.NewsArticle) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO news_articles
            (article_id, title, content, source, port_id, port_name, region, sentiment_score, ts)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (article_id) DO NOTHING
    `, a.ID, a.Title, a.Content, a.Source, a.PortID, a.PortName, a.Region, a.SentimentScore, a.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert news article: %w", err)
	}
	return nil
}

func (s *PostgresStore) Articles(ctx context.Context, portID string, since time.Time) ([]models.NewsArticle, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT article_id, title, content, source, port_id, port_name, region, sentiment_score, ts
        FROM news_articles
        WHERE ($1 = '' OR port_id = $1)
          AND ts >= $2
        ORDER BY ts DESC, article_id ASC
    `, portID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query news articles: %w", err)
	}
	defer rows.Close()

	articles := make([]models.NewsArticle, 0)
	for rows.Next() {
		var a models.NewsArticle
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Source, &a.PortID, &a.PortName, &a.Region, &a.SentimentScore, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan news article: %w", err)
		}
		a.Timestamp = a.Timestamp.UTC()
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (s *PostgresStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.pool.QueryRow(ctx, `
        SELECT
            (SELECT COUNT(*) FROM traffic_history),
            (SELECT COUNT(*) FROM weather_alerts),
            (SELECT COUNT(*) FROM news_articles)
    `).Scan(&c.TrafficPoints, &c.Alerts, &c.Articles)
	if err != nil {
		return Counts{}, fmt.Errorf("count history: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
