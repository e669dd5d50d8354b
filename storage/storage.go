// Package storage keeps the durable history of generated signals: per-port traffic
// points, individual weather alerts and individual news articles.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/config"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

// TrafficRetention is the trailing window of traffic history kept per port.
const TrafficRetention = 7 * 24 * time.Hour

// HistoryStore is implemented by the memory, SQLite and Postgres stores.
// Traffic history is returned oldest first; alerts and articles newest first.
type HistoryStore interface {
	AppendTraffic(ctx context.Context, point models.TrafficHistoryPoint) error
	TrafficHistory(ctx context.Context, portID string, since time.Time) ([]models.TrafficHistoryPoint, error)
	PruneTraffic(ctx context.Context, portID string, before time.Time) error

	SaveAlert(ctx context.Context, alert models.WeatherAlert) error
	Alerts(ctx context.Context, since time.Time) ([]models.WeatherAlert, error)

	SaveArticle(ctx context.Context, article models.NewsArticle) error
	// Articles lists articles newer than since; an empty portID matches every port.
	Articles(ctx context.Context, portID string, since time.Time) ([]models.NewsArticle, error)

	Counts(ctx context.Context) (Counts, error)
	Close() error
}

type Counts struct {
	TrafficPoints int `json:"traffic_points"`
	Alerts        int `json:"weather_alerts"`
	Articles      int `json:"news_articles"`
}

// Open builds the history store selected by cfg.Storage.Driver.
func Open(ctx context.Context, cfg *config.Config) (HistoryStore, error) {
	switch cfg.Storage.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		store, err := OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := OpenPostgres(ctx, cfg.Database.URL())
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
