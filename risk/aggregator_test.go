package risk

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func newDefaultAggregator(t *testing.T) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(DefaultWeights, DefaultThresholds, nil)
	if err != nil {
		t.Fatalf("NewAggregator() error: %v", err)
	}
	return agg
}

func TestNormalizeWeights(t *testing.T) {
	tests := []struct {
		name string
		in   models.RiskFactors
	}{
		{"defaults", DefaultWeights},
		{"unnormalized", models.RiskFactors{Weather: 2, Sentiment: 2, Congestion: 4, Historical: 2}},
		{"single signal", models.RiskFactors{Congestion: 0.3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeWeights(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !near(got.Sum(), 1) {
				t.Errorf("normalized weights sum to %v, want 1", got.Sum())
			}
		})
	}

	got, _ := NormalizeWeights(models.RiskFactors{Weather: 2, Sentiment: 2, Congestion: 4, Historical: 2})
	if !near(got.Congestion, 0.4) {
		t.Errorf("Congestion weight = %v, want 0.4", got.Congestion)
	}
}

func TestNormalizeWeightsRejects(t *testing.T) {
	tests := []struct {
		name string
		in   models.RiskFactors
	}{
		{"all zero", models.RiskFactors{}},
		{"negative", models.RiskFactors{Weather: -0.1, Sentiment: 0.5, Congestion: 0.5}},
		{"nan", models.RiskFactors{Weather: math.NaN(), Sentiment: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NormalizeWeights(tt.in); !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("error = %v, want ErrInvalidConfiguration", err)
			}
			if _, err := NewAggregator(tt.in, DefaultThresholds, nil); !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("NewAggregator error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestThresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  models.RiskLevel
	}{
		{0.7, models.RiskHigh},
		{0.95, models.RiskHigh},
		{0.69999, models.RiskMedium},
		{0.4, models.RiskMedium},
		{0.39999, models.RiskLow},
		{0, models.RiskLow},
	}
	for _, tt := range tests {
		if got := DefaultThresholds.Level(tt.score); got != tt.want {
			t.Errorf("Level(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}

	invalid := []Thresholds{
		{High: 0.4, Medium: 0.7},
		{High: 0.7, Medium: 0},
		{High: 1.2, Medium: 0.4},
		{High: 0.5, Medium: 0.5},
	}
	for _, th := range invalid {
		if _, err := NewAggregator(DefaultWeights, th, nil); !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("thresholds %+v accepted", th)
		}
	}
}

func TestWeatherRisk(t *testing.T) {
	tests := []struct {
		name  string
		alert models.WeatherAlert
		want  float64
	}{
		{"hurricane extreme long", models.WeatherAlert{Type: "hurricane", Severity: models.SeverityExtreme, DurationHours: 48}, 1.0},
		{"no weather", models.NoWeather, 0},
		{"moderate storm short", models.WeatherAlert{Type: "storm", Severity: models.SeverityModerate, DurationHours: 0}, 0.35},
		{"severe fog 24h", models.WeatherAlert{Type: "fog", Severity: models.SeveritySevere, DurationHours: 24}, 0.8 * 0.6 * 0.85},
		{"unknown type", models.WeatherAlert{Type: "sandstorm", Severity: models.SeverityLight, DurationHours: 96}, 0.2},
		{"negative duration", models.WeatherAlert{Type: "wind", Severity: models.SeverityModerate, DurationHours: -5}, 0.5 * 0.7 * 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeatherRisk(tt.alert); !near(got, tt.want) {
				t.Errorf("WeatherRisk() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentimentRisk(t *testing.T) {
	tests := []struct {
		name    string
		summary models.SentimentSummary
		want    float64
	}{
		{"worst case", models.SentimentSummary{SentimentScore: -1, ArticleCount: 10, UrgencyKeywords: 5}, 1.0},
		{"neutral empty", models.SentimentSummary{}, 0.3},
		{"positive", models.SentimentSummary{SentimentScore: 1, ArticleCount: 4, UrgencyKeywords: 2}, 0},
		{"out of range clamped", models.SentimentSummary{SentimentScore: -3, ArticleCount: 40, UrgencyKeywords: 20}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SentimentRisk(tt.summary); !near(got, tt.want) {
				t.Errorf("SentimentRisk() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCongestionRisk(t *testing.T) {
	if got := CongestionRisk(models.CongestionMetrics{}); got != 0 {
		t.Errorf("zero congestion = %v, want 0", got)
	}
	full := models.CongestionMetrics{CongestionIndex: 1, WaitTimeHours: 72, VesselCount: 50}
	if got := CongestionRisk(full); !near(got, 1) {
		t.Errorf("saturated congestion = %v, want 1", got)
	}
	half := models.CongestionMetrics{CongestionIndex: 0.5, WaitTimeHours: 36, VesselCount: 25}
	if got := CongestionRisk(half); !near(got, 0.5) {
		t.Errorf("half congestion = %v, want 0.5", got)
	}
}

func TestHistoricalRisk(t *testing.T) {
	if got := HistoricalRisk(nil); got != 0.1 {
		t.Errorf("no history = %v, want 0.1", got)
	}
	h := &models.HistoricalData{DisruptionRate: 0.5, RecentDisruptions: 3}
	if got := HistoricalRisk(h); !near(got, 0.65) {
		t.Errorf("HistoricalRisk() = %v, want 0.65", got)
	}
	if got := HistoricalRisk(&models.HistoricalData{}); got != 0 {
		t.Errorf("empty history = %v, want 0", got)
	}
}

func TestScorersBounded(t *testing.T) {
	extremes := []float64{-100, -1, 0, 0.5, 1, 100}
	for _, v := range extremes {
		scores := []float64{
			WeatherRisk(models.WeatherAlert{Type: "typhoon", Severity: models.SeverityExtreme, DurationHours: v}),
			SentimentRisk(models.SentimentSummary{SentimentScore: v, ArticleCount: int(v), UrgencyKeywords: int(v)}),
			CongestionRisk(models.CongestionMetrics{CongestionIndex: v, WaitTimeHours: v, VesselCount: int(v)}),
			HistoricalRisk(&models.HistoricalData{DisruptionRate: v, RecentDisruptions: int(v)}),
		}
		for i, s := range scores {
			if s < 0 || s > 1 {
				t.Errorf("scorer %d with input %v returned %v", i, v, s)
			}
		}
	}
}

func TestComputeRouteRiskAllOnes(t *testing.T) {
	agg := newDefaultAggregator(t)
	got := agg.ComputeRouteRisk(
		"LAX-SHG",
		models.WeatherAlert{Type: "hurricane", Severity: models.SeverityExtreme, DurationHours: 48},
		models.SentimentSummary{SentimentScore: -1, ArticleCount: 10, UrgencyKeywords: 5},
		models.CongestionMetrics{CongestionIndex: 1, WaitTimeHours: 72, VesselCount: 50},
		&models.HistoricalData{DisruptionRate: 1, RecentDisruptions: 3},
	)
	if !near(got.TotalRisk, 1) {
		t.Errorf("TotalRisk = %v, want 1", got.TotalRisk)
	}
	if got.RiskLevel != models.RiskHigh {
		t.Errorf("RiskLevel = %s, want high", got.RiskLevel)
	}
	if got.RouteID != "LAX-SHG" || got.Model != ModelHeuristic {
		t.Errorf("unexpected identity fields: %+v", got)
	}
	if !near(got.Weights.Sum(), 1) {
		t.Errorf("reported weights sum to %v", got.Weights.Sum())
	}
}

func TestComputeRouteRiskCalm(t *testing.T) {
	agg := newDefaultAggregator(t)
	got := agg.ComputeRouteRisk("NYC-RTM", models.NoWeather,
		models.SentimentSummary{SentimentScore: 1}, models.CongestionMetrics{}, nil)

	// only the historical floor contributes
	want := 0.1 * agg.Weights().Historical
	if !near(got.TotalRisk, want) {
		t.Errorf("TotalRisk = %v, want %v", got.TotalRisk, want)
	}
	if got.RiskLevel != models.RiskLow {
		t.Errorf("RiskLevel = %s, want low", got.RiskLevel)
	}
}

func TestComputeRouteRiskPure(t *testing.T) {
	agg := newDefaultAggregator(t)
	fixed := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	agg.now = func() time.Time { return fixed }

	weather := models.WeatherAlert{Type: "storm", Severity: models.SeveritySevere, DurationHours: 12}
	sentiment := models.SentimentSummary{SentimentScore: -0.4, ArticleCount: 6, UrgencyKeywords: 2}
	congestion := models.CongestionMetrics{CongestionIndex: 0.6, WaitTimeHours: 20, VesselCount: 45}

	first := agg.ComputeRouteRisk("SGP-HKG", weather, sentiment, congestion, nil)
	second := agg.ComputeRouteRisk("SGP-HKG", weather, sentiment, congestion, nil)
	if first != second {
		t.Errorf("repeated calls differ:\n%+v\n%+v", first, second)
	}

	c := first.Components
	w := first.Weights
	want := c.Weather*w.Weather + c.Sentiment*w.Sentiment + c.Congestion*w.Congestion + c.Historical*w.Historical
	if !near(first.TotalRisk, want) {
		t.Errorf("TotalRisk = %v, weighted components = %v", first.TotalRisk, want)
	}
}
