package analysis

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

const (
	defaultCapacity = 100
	// trendBandHours is the wait-time swing needed before a window counts as trending.
	trendBandHours = 2.0
)

type CongestionAnalyzer struct {
	window time.Duration
}

func NewCongestionAnalyzer(window time.Duration) *CongestionAnalyzer {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &CongestionAnalyzer{window: window}
}

// Index blends capacity utilization, wait time and, when a positive historical average
// wait is known, the deviation from it.
func Index(vessels, capacity int, waitHours float64, historicalAvgWait float64) float64 {
	utilization := 0.0
	if capacity > 0 {
		utilization = math.Min(1, math.Max(0, float64(vessels))/float64(capacity))
	}
	wait := math.Min(1, math.Max(0, waitHours)/72)

	historical := 0.5
	if historicalAvgWait > 0 {
		deviation := (waitHours - historicalAvgWait) / math.Max(historicalAvgWait, 1)
		historical = math.Min(1, math.Max(0, 0.5+deviation*0.5))
	}

	return math.Min(1, math.Max(0, utilization*0.4+wait*0.4+historical*0.2))
}

// FromSnapshot derives congestion metrics for one traffic observation.
func (a *CongestionAnalyzer) FromSnapshot(s models.TrafficSnapshot) models.CongestionMetrics {
	capacity := s.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	trend := s.Trend
	if trend == "" {
		trend = models.TrendStable
	}
	return models.CongestionMetrics{
		CongestionIndex:     Index(s.VesselCount, capacity, s.WaitTimeHours, 0),
		VesselCount:         s.VesselCount,
		WaitTimeHours:       s.WaitTimeHours,
		CapacityUtilization: float64(s.VesselCount) / float64(capacity),
		Trend:               trend,
	}
}

// Rolling computes metrics over the trailing window of history ending at now. Older
// points supply the historical average wait.
func (a *CongestionAnalyzer) Rolling(history []models.TrafficHistoryPoint, capacity int, now time.Time) models.CongestionMetrics {
	if len(history) == 0 {
		return models.CongestionMetrics{Trend: models.TrendStable}
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	points := make([]models.TrafficHistoryPoint, len(history))
	copy(points, history)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })

	start := now.Add(-a.window)
	var recent, older []models.TrafficHistoryPoint
	for _, p := range points {
		if p.Timestamp.Before(start) {
			older = append(older, p)
		} else {
			recent = append(recent, p)
		}
	}
	if len(recent) == 0 {
		recent = points[len(points)-1:]
	}

	vesselCounts := make([]float64, len(recent))
	waits := make([]float64, len(recent))
	for i, p := range recent {
		vesselCounts[i] = float64(p.VesselCount)
		waits[i] = p.WaitTimeHours
	}
	vessels := stat.Mean(vesselCounts, nil)
	wait := stat.Mean(waits, nil)

	var historicalAvg float64
	if len(older) > 0 {
		olderWaits := make([]float64, len(older))
		for i, p := range older {
			olderWaits[i] = p.WaitTimeHours
		}
		historicalAvg = stat.Mean(olderWaits, nil)
	}

	trend := models.TrendStable
	if len(recent) >= 2 {
		delta := recent[len(recent)-1].WaitTimeHours - recent[0].WaitTimeHours
		switch {
		case delta > trendBandHours:
			trend = models.TrendIncreasing
		case delta < -trendBandHours:
			trend = models.TrendDecreasing
		}
	}

	avgVessels := int(vessels)
	return models.CongestionMetrics{
		CongestionIndex:     Index(avgVessels, capacity, wait, historicalAvg),
		VesselCount:         avgVessels,
		WaitTimeHours:       wait,
		CapacityUtilization: vessels / float64(capacity),
		Trend:               trend,
	}
}
