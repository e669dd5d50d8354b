package risk

import "github.com/jwolfsohn/Atlas-Sentinel/models"

// MergeWeather keeps the more severe of the two endpoint alerts; the origin wins ties.
func MergeWeather(origin, destination models.WeatherAlert) models.WeatherAlert {
	if origin.Severity.Level() >= destination.Severity.Level() {
		return origin
	}
	return destination
}

// MergeCongestion combines endpoint congestion so the busier end dominates.
func MergeCongestion(origin, destination models.CongestionMetrics) models.CongestionMetrics {
	merged := models.CongestionMetrics{
		CongestionIndex:     max(origin.CongestionIndex, destination.CongestionIndex),
		VesselCount:         (origin.VesselCount + destination.VesselCount) / 2,
		WaitTimeHours:       max(origin.WaitTimeHours, destination.WaitTimeHours),
		CapacityUtilization: max(origin.CapacityUtilization, destination.CapacityUtilization),
		Trend:               origin.Trend,
	}
	if destination.Trend.Rank() > origin.Trend.Rank() {
		merged.Trend = destination.Trend
	}
	if merged.Trend == "" {
		merged.Trend = models.TrendStable
	}
	return merged
}

// MergeNews returns both endpoints' articles as one batch, dropping repeated ids.
func MergeNews(origin, destination []models.NewsArticle) []models.NewsArticle {
	merged := make([]models.NewsArticle, 0, len(origin)+len(destination))
	seen := make(map[string]struct{}, len(origin)+len(destination))
	for _, batch := range [][]models.NewsArticle{origin, destination} {
		for _, a := range batch {
			if a.ID != "" {
				if _, dup := seen[a.ID]; dup {
					continue
				}
				seen[a.ID] = struct{}{}
			}
			merged = append(merged, a)
		}
	}
	return merged
}
