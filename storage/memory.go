package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

// MemoryStore is the process-local history used by tests and the CLI.
type MemoryStore struct {
	mu       sync.RWMutex
	traffic  map[string][]models.TrafficHistoryPoint
	alerts   map[string]models.WeatherAlert
	articles map[string]models.NewsArticle
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		traffic:  make(map[string][]models.TrafficHistoryPoint),
		alerts:   make(map[string]models.WeatherAlert),
		articles: make(map[string]models.NewsArticle),
	}
}

func (m *MemoryStore) AppendTraffic(ctx context.Context, point models.TrafficHistoryPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	points := m.traffic[point.PortID]
	for i := range points {
		if points[i].Timestamp.Equal(point.Timestamp) {
			points[i] = point
			return nil
		}
	}
	points = append(points, point)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	m.traffic[point.PortID] = points
	return nil
}

func (m *MemoryStore) TrafficHistory(ctx context.Context, portID string, since time.Time) ([]models.TrafficHistoryPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.TrafficHistoryPoint, 0)
	for _, p := range m.traffic[portID] {
		if !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) PruneTraffic(ctx context.Context, portID string, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	points := m.traffic[portID]
	kept := points[:0]
	for _, p := range points {
		if !p.Timestamp.Before(before) {
			kept = append(kept, p)
		}
	}
	m.traffic[portID] = kept
	return nil
}

func (m *MemoryStore) SaveAlert(ctx context.Context, alert models.WeatherAlert) error {
	m.mu.Lock()
	m.alerts[alert.Key()] = alert
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Alerts(ctx context.Context, since time.Time) ([]models.WeatherAlert, error) {
	m.mu.RLock()
	out := make([]models.WeatherAlert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if !a.Timestamp.Before(since) {
			out = append(out, a)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Zone < out[j].Zone
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (m *MemoryStore) SaveArticle(ctx context.Context, article models.NewsArticle) error {
	m.mu.Lock()
	m.articles[article.ID] = article
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Articles(ctx context.Context, portID string, since time.Time) ([]models.NewsArticle, error) {
	m.mu.RLock()
	out := make([]models.NewsArticle, 0)
	for _, a := range m.articles {
		if portID != "" && a.PortID != portID {
			continue
		}
		if !a.Timestamp.Before(since) {
			out = append(out, a)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (m *MemoryStore) Counts(ctx context.Context) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var c Counts
	for _, points := range m.traffic {
		c.TrafficPoints += len(points)
	}
	c.Alerts = len(m.alerts)
	c.Articles = len(m.articles)
	return c, nil
}

func (m *MemoryStore) Close() error { return nil }
