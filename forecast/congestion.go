package forecast

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/jwolfsohn/Atlas-Sentinel/analysis"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

const (
	defaultWindow  = 24
	smoothingAlpha = 0.3
	varianceSpan   = 10
	trendEpsilon   = 0.001
)

type CongestionForecast struct {
	ForecastedCongestion float64      `json:"forecasted_congestion"`
	ForecastedWaitTime   float64      `json:"forecasted_wait_time"`
	SmoothedCongestion   float64      `json:"smoothed_congestion"`
	Trend                models.Trend `json:"trend"`
	Confidence           float64      `json:"confidence"`
	HoursAhead           int          `json:"hours_ahead"`
}

// CongestionForecaster extrapolates a port's congestion from its last window points.
type CongestionForecaster struct {
	window int
}

func NewCongestionForecaster(window int) *CongestionForecaster {
	if window < 2 {
		window = defaultWindow
	}
	return &CongestionForecaster{window: window}
}

func (f *CongestionForecaster) Forecast(history []models.TrafficHistoryPoint, hoursAhead int) CongestionForecast {
	if len(history) == 0 {
		return CongestionForecast{
			ForecastedCongestion: 0.5,
			ForecastedWaitTime:   12,
			SmoothedCongestion:   0.5,
			Trend:                models.TrendStable,
			Confidence:           0.1,
			HoursAhead:           hoursAhead,
		}
	}

	points := make([]models.TrafficHistoryPoint, len(history))
	copy(points, history)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	latest := points[len(points)-1]

	if len(points) < 3 {
		return CongestionForecast{
			ForecastedCongestion: latest.CongestionIndex,
			ForecastedWaitTime:   latest.WaitTimeHours,
			SmoothedCongestion:   latest.CongestionIndex,
			Trend:                models.TrendStable,
			Confidence:           0.3,
			HoursAhead:           hoursAhead,
		}
	}

	congestion := make([]float64, len(points))
	wait := make([]float64, len(points))
	for i, p := range points {
		congestion[i] = p.CongestionIndex
		wait[i] = p.WaitTimeHours
	}

	congestionTrend := f.trend(congestion)
	waitTrend := f.trend(wait)

	recent := congestion[max(0, len(congestion)-varianceSpan):]
	confidence := min(0.9, max(0.3, 1-2*stat.PopVariance(recent, nil)))

	trend := models.TrendStable
	switch {
	case congestionTrend > trendEpsilon:
		trend = models.TrendIncreasing
	case congestionTrend < -trendEpsilon:
		trend = models.TrendDecreasing
	}

	horizon := float64(hoursAhead)
	return CongestionForecast{
		ForecastedCongestion: min(1, max(0, latest.CongestionIndex+congestionTrend*horizon)),
		ForecastedWaitTime:   max(0, latest.WaitTimeHours+waitTrend*horizon),
		SmoothedCongestion:   ema(congestion, smoothingAlpha),
		Trend:                trend,
		Confidence:           confidence,
		HoursAhead:           hoursAhead,
	}
}

// trend is the least squares slope over the last window points divided by their count.
func (f *CongestionForecaster) trend(series []float64) float64 {
	recent := series[max(0, len(series)-f.window):]
	if len(recent) < 2 {
		return 0
	}
	xs := make([]float64, len(recent))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, recent, nil, false)
	return slope / float64(len(recent))
}

func ema(series []float64, alpha float64) float64 {
	if len(series) == 0 {
		return 0
	}
	out := series[0]
	for _, v := range series[1:] {
		out = alpha*v + (1-alpha)*out
	}
	return out
}

// ProjectionHours is how far ahead Project looks.
const ProjectionHours = 24

type CongestionProjection struct {
	CongestionIndex float64 `json:"projected_congestion_index"`
	VesselCount     int     `json:"projected_vessel_count"`
	WaitTimeHours   float64 `json:"projected_wait_hours"`
	HoursAhead      int     `json:"hours_ahead"`
}

// Project estimates a port's state ProjectionHours from now when incoming vessels arrive
// and the port clears processingRate vessels an hour. A port that processes nothing
// keeps its queue and everyone waits the full horizon longer.
func Project(current models.CongestionMetrics, capacity, incoming int, processingRate float64) CongestionProjection {
	processingRate = max(0, processingRate)
	queued := float64(current.VesselCount + max(0, incoming))
	vessels := max(0, queued-processingRate*ProjectionHours)

	wait := current.WaitTimeHours + ProjectionHours
	if processingRate > 0 {
		wait = vessels / processingRate
	}

	return CongestionProjection{
		CongestionIndex: analysis.Index(int(vessels), capacity, wait, current.WaitTimeHours),
		VesselCount:     int(vessels),
		WaitTimeHours:   wait,
		HoursAhead:      ProjectionHours,
	}
}
