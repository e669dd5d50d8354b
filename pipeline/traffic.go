package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/cache"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
	"github.com/jwolfsohn/Atlas-Sentinel/source"
	"github.com/jwolfsohn/Atlas-Sentinel/storage"
)

const defaultHistoryWindow = 24 * time.Hour

type TrafficPipeline struct {
	source  source.TrafficSource
	ports   PortLookup
	cache   *cache.Cache[models.TrafficSnapshot]
	history storage.HistoryStore
	now     func() time.Time
}

func NewTrafficPipeline(src source.TrafficSource, ports PortLookup, c *cache.Cache[models.TrafficSnapshot], history storage.HistoryStore) *TrafficPipeline {
	return &TrafficPipeline{
		source:  src,
		ports:   ports,
		cache:   c,
		history: history,
		now:     time.Now,
	}
}

// Ingest returns the traffic snapshot for portID. The returned error is non-nil
// only for an invalid or unknown port.
func (p *TrafficPipeline) Ingest(ctx context.Context, portID string, force bool) (models.TrafficSnapshot, error) {
	portID = strings.TrimSpace(portID)
	if portID == "" {
		return models.TrafficSnapshot{}, fmt.Errorf("%w: empty port id", ErrInvalidSelector)
	}
	port, err := p.ports.Port(portID)
	if err != nil {
		return models.TrafficSnapshot{}, err
	}

	if snap, ok := cached(ctx, p.cache, SignalTraffic, portID, force); ok {
		return snap, nil
	}

	snap, err := p.source.PortTraffic(ctx, port)
	if err != nil {
		return fallback(ctx, p.cache, SignalTraffic, portID, err, p.neutral(port)), nil
	}
	snap.PortID = port.ID

	snap.Trend = models.TrendStable
	if prev, ok := p.cache.GetStale(ctx, portID); ok {
		previous := prev.Value.VesselCount
		snap.PreviousVesselCount = &previous
		if snap.VesselCount > previous {
			snap.Trend = models.TrendIncreasing
		} else {
			snap.Trend = models.TrendDecreasing
		}
	}

	store(ctx, p.cache, portID, snap)
	p.record(ctx, snap)
	return snap, nil
}

// IngestAll refreshes every port in order, stopping at the first invalid port.
func (p *TrafficPipeline) IngestAll(ctx context.Context, ports []models.Port, force bool) ([]models.TrafficSnapshot, error) {
	out := make([]models.TrafficSnapshot, 0, len(ports))
	for _, port := range ports {
		snap, err := p.Ingest(ctx, port.ID, force)
		if err != nil {
			return out, fmt.Errorf("ingest traffic for %s: %w", port.ID, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// History returns the port's traffic points within window (24h when zero), newest last.
func (p *TrafficPipeline) History(ctx context.Context, portID string, window time.Duration) ([]models.TrafficHistoryPoint, error) {
	if _, err := p.ports.Port(portID); err != nil {
		return nil, err
	}
	if window <= 0 {
		window = defaultHistoryWindow
	}
	points, err := p.history.TrafficHistory(ctx, portID, p.now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("load traffic history for %s: %w", portID, err)
	}
	return points, nil
}

func (p *TrafficPipeline) record(ctx context.Context, snap models.TrafficSnapshot) {
	if err := p.history.AppendTraffic(ctx, snap.HistoryPoint()); err != nil {
		historyFailed(SignalTraffic, err)
		return
	}
	cutoff := p.now().Add(-storage.TrafficRetention)
	if err := p.history.PruneTraffic(ctx, snap.PortID, cutoff); err != nil {
		historyFailed(SignalTraffic, err)
	}
}

// neutral has a zero Timestamp: nothing was observed.
func (p *TrafficPipeline) neutral(port models.Port) models.TrafficSnapshot {
	return models.TrafficSnapshot{
		PortID:    port.ID,
		PortName:  port.Name,
		Capacity:  port.Capacity,
		Latitude:  port.Latitude,
		Longitude: port.Longitude,
		Trend:     models.TrendStable,
	}
}
