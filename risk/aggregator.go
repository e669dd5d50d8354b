// Package risk turns the four route signals into a bounded disruption score.
package risk

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

var ErrInvalidConfiguration = errors.New("invalid risk configuration")

// DefaultWeights are the signal weights before normalization.
var DefaultWeights = models.RiskFactors{
	Weather:    0.35,
	Sentiment:  0.30,
	Congestion: 0.25,
	Historical: 0.10,
}

// noHistoryRisk is the historical component used when a route has no history.
const noHistoryRisk = 0.1

type Thresholds struct {
	High   float64
	Medium float64
}

var DefaultThresholds = Thresholds{High: 0.7, Medium: 0.4}

func (t Thresholds) Validate() error {
	if !(t.Medium > 0 && t.Medium < t.High && t.High <= 1) {
		return fmt.Errorf("%w: thresholds must satisfy 0 < medium < high <= 1, got medium=%v high=%v",
			ErrInvalidConfiguration, t.Medium, t.High)
	}
	return nil
}

// Level classifies a score; both bounds are inclusive from above.
func (t Thresholds) Level(score float64) models.RiskLevel {
	switch {
	case score >= t.High:
		return models.RiskHigh
	case score >= t.Medium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// NormalizeWeights scales w to sum to 1. Negative, NaN or all-zero weights are rejected.
func NormalizeWeights(w models.RiskFactors) (models.RiskFactors, error) {
	for name, v := range map[string]float64{
		"weather":    w.Weather,
		"sentiment":  w.Sentiment,
		"congestion": w.Congestion,
		"historical": w.Historical,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return models.RiskFactors{}, fmt.Errorf("%w: %s weight %v", ErrInvalidConfiguration, name, v)
		}
	}
	total := w.Sum()
	if total <= 0 {
		return models.RiskFactors{}, fmt.Errorf("%w: weights sum to zero", ErrInvalidConfiguration)
	}
	return models.RiskFactors{
		Weather:    w.Weather / total,
		Sentiment:  w.Sentiment / total,
		Congestion: w.Congestion / total,
		Historical: w.Historical / total,
	}, nil
}

var severityRisk = map[models.Severity]float64{
	models.SeverityNone:     0.0,
	models.SeverityLight:    0.2,
	models.SeverityModerate: 0.5,
	models.SeveritySevere:   0.8,
	models.SeverityExtreme:  1.0,
}

var typeMultiplier = map[string]float64{
	"hurricane": 1.2,
	"typhoon":   1.2,
	"storm":     1.0,
	"ice":       0.8,
	"wind":      0.7,
	"fog":       0.6,
}

func WeatherRisk(alert models.WeatherAlert) float64 {
	base := severityRisk[alert.Severity]
	multiplier, ok := typeMultiplier[strings.ToLower(alert.Type)]
	if !ok {
		multiplier = 1.0
	}
	duration := math.Min(1, math.Max(0, alert.DurationHours)/48)
	return clamp01(base * multiplier * (0.7 + 0.3*duration))
}

func SentimentRisk(s models.SentimentSummary) float64 {
	score := math.Max(-1, math.Min(1, s.SentimentScore))
	sentiment := (1 - score) / 2
	volume := math.Min(1, math.Max(0, float64(s.ArticleCount))/10)
	urgency := math.Min(1, math.Max(0, float64(s.UrgencyKeywords))/5)
	return clamp01(sentiment * (0.6 + 0.2*volume + 0.2*urgency))
}

func CongestionRisk(c models.CongestionMetrics) float64 {
	index := clamp01(c.CongestionIndex)
	wait := math.Min(1, math.Max(0, c.WaitTimeHours)/72)
	vessels := math.Min(1, math.Max(0, float64(c.VesselCount))/50)
	return clamp01(0.5*index + 0.3*wait + 0.2*vessels)
}

// HistoricalRisk scores route history; a nil history is the fixed low-risk floor.
func HistoricalRisk(h *models.HistoricalData) float64 {
	if h == nil {
		return noHistoryRisk
	}
	recent := math.Min(1, math.Max(0, float64(h.RecentDisruptions))/3)
	return clamp01(0.7*clamp01(h.DisruptionRate) + 0.3*recent)
}

// Components scores every signal of f independently.
func Components(f Features) models.RiskFactors {
	return models.RiskFactors{
		Weather:    WeatherRisk(f.Weather),
		Sentiment:  SentimentRisk(f.Sentiment),
		Congestion: CongestionRisk(f.Congestion),
		Historical: HistoricalRisk(f.Historical),
	}
}

type Aggregator struct {
	weights    models.RiskFactors
	thresholds Thresholds
	model      RiskModel
	now        func() time.Time
}

// NewAggregator validates weights and thresholds. A nil model selects the weighted
// heuristic over the normalized weights.
func NewAggregator(weights models.RiskFactors, thresholds Thresholds, model RiskModel) (*Aggregator, error) {
	normalized, err := NormalizeWeights(weights)
	if err != nil {
		return nil, err
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if model == nil {
		model = &HeuristicModel{weights: normalized}
	}
	return &Aggregator{
		weights:    normalized,
		thresholds: thresholds,
		model:      model,
		now:        time.Now,
	}, nil
}

func (a *Aggregator) Weights() models.RiskFactors { return a.weights }

func (a *Aggregator) Thresholds() Thresholds { return a.thresholds }

func (a *Aggregator) ModelName() string { return a.model.Name() }

// ComputeRouteRisk scores one route. Apart from Timestamp the result depends only on
// its arguments.
func (a *Aggregator) ComputeRouteRisk(
	routeID string,
	weather models.WeatherAlert,
	sentiment models.SentimentSummary,
	congestion models.CongestionMetrics,
	historical *models.HistoricalData,
) models.RiskAssessment {
	f := Features{
		Weather:    weather,
		Sentiment:  sentiment,
		Congestion: congestion,
		Historical: historical,
	}
	total := clamp01(a.model.Predict(f))
	return models.RiskAssessment{
		RouteID:    routeID,
		TotalRisk:  total,
		RiskLevel:  a.thresholds.Level(total),
		Components: Components(f),
		Weights:    a.weights,
		Model:      a.model.Name(),
		Timestamp:  a.now().UTC(),
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
