package risk

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/jwolfsohn/Atlas-Sentinel/models"

	"gonum.org/v1/gonum/mat"
)

const (
	ModelHeuristic  = "heuristic"
	ModelRegression = "regression"
)

// Features are the merged route signals a model scores.
type Features struct {
	Weather    models.WeatherAlert
	Sentiment  models.SentimentSummary
	Congestion models.CongestionMetrics
	Historical *models.HistoricalData
}

var weatherTypeCode = map[string]float64{
	"hurricane": 4,
	"typhoon":   4,
	"storm":     3,
	"wind":      2,
	"ice":       2,
	"fog":       1,
}

// Vector flattens f into the normalized feature layout used by the regression model.
func (f Features) Vector() []float64 {
	var rate, recent, delay float64
	if h := f.Historical; h != nil {
		rate = clamp01(h.DisruptionRate)
		recent = math.Min(1, math.Max(0, float64(h.RecentDisruptions))/3)
		delay = math.Max(0, h.AvgDelayHours) / 72
	}
	trend := 0.0
	if f.Congestion.Trend == models.TrendIncreasing {
		trend = 1
	}
	return []float64{
		float64(f.Weather.Severity.Level()),
		weatherTypeCode[strings.ToLower(f.Weather.Type)],
		math.Max(0, f.Weather.DurationHours) / 72,
		math.Max(-1, math.Min(1, f.Sentiment.SentimentScore)),
		math.Min(1, math.Max(0, float64(f.Sentiment.ArticleCount))/10),
		math.Min(1, math.Max(0, float64(f.Sentiment.UrgencyKeywords))/5),
		clamp01(f.Congestion.CongestionIndex),
		math.Min(1, math.Max(0, f.Congestion.WaitTimeHours)/72),
		math.Min(1, math.Max(0, float64(f.Congestion.VesselCount))/50),
		clamp01(f.Congestion.CapacityUtilization),
		trend,
		rate,
		recent,
		delay,
	}
}

const featureCount = 14

// RiskModel maps route features to a total risk score.
type RiskModel interface {
	Predict(f Features) float64
	Name() string
}

// HeuristicModel is the weighted sum of the component scores.
type HeuristicModel struct {
	weights models.RiskFactors
}

func NewHeuristicModel(weights models.RiskFactors) (*HeuristicModel, error) {
	normalized, err := NormalizeWeights(weights)
	if err != nil {
		return nil, err
	}
	return &HeuristicModel{weights: normalized}, nil
}

func (m *HeuristicModel) Predict(f Features) float64 {
	c := Components(f)
	return c.Weather*m.weights.Weather +
		c.Sentiment*m.weights.Sentiment +
		c.Congestion*m.weights.Congestion +
		c.Historical*m.weights.Historical
}

func (m *HeuristicModel) Name() string { return ModelHeuristic }

// RegressionModel is a linear model fitted by least squares on synthetic samples.
type RegressionModel struct {
	coef []float64
}

// NewRegressionModel fits the model on samples generated from seed.
func NewRegressionModel(seed int64, samples int) (*RegressionModel, error) {
	if samples <= featureCount+1 {
		return nil, fmt.Errorf("%w: need more than %d training samples", ErrInvalidConfiguration, featureCount+1)
	}
	rng := rand.New(rand.NewSource(seed))

	cols := featureCount + 1
	x := mat.NewDense(samples, cols, nil)
	y := mat.NewVecDense(samples, nil)
	for i := 0; i < samples; i++ {
		row, target := syntheticSample(rng)
		x.Set(i, 0, 1)
		for j, v := range row {
			x.Set(i, j+1, v)
		}
		y.SetVec(i, target)
	}

	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		return nil, fmt.Errorf("fit regression model: %w", err)
	}
	coef := make([]float64, cols)
	for i := range coef {
		coef[i] = beta.AtVec(i)
	}
	return &RegressionModel{coef: coef}, nil
}

func (m *RegressionModel) Predict(f Features) float64 {
	score := m.coef[0]
	for i, v := range f.Vector() {
		score += m.coef[i+1] * v
	}
	return clamp01(score)
}

func (m *RegressionModel) Name() string { return ModelRegression }

// NewModel builds the backend registered under name.
func NewModel(name string, weights models.RiskFactors, seed int64) (RiskModel, error) {
	switch name {
	case "", ModelHeuristic:
		return NewHeuristicModel(weights)
	case ModelRegression:
		return NewRegressionModel(seed, 2000)
	default:
		return nil, fmt.Errorf("%w: unknown risk model %q", ErrInvalidConfiguration, name)
	}
}

func syntheticSample(rng *rand.Rand) ([]float64, float64) {
	severity := float64(pick(rng, []float64{0.2, 0.3, 0.3, 0.15, 0.05}))
	weatherType := float64(pick(rng, []float64{0.1, 0.2, 0.3, 0.3, 0.1}))
	duration := rng.Float64()
	sentiment := rng.Float64()*2 - 1
	volume := rng.Float64()
	urgency := rng.Float64()
	index := rng.Float64()
	wait := rng.Float64()
	vessels := rng.Float64()
	utilization := rng.Float64()
	trend := float64(rng.Intn(2))
	rate := rng.Float64()
	recent := rng.Float64()
	delay := rng.Float64()

	target := severity*0.15 +
		(1-sentiment)/2*0.25 +
		index*0.20 +
		wait*0.15 +
		rate*0.10 +
		urgency*0.10 +
		rng.NormFloat64()*0.1

	row := []float64{
		severity, weatherType, duration, sentiment, volume, urgency,
		index, wait, vessels, utilization, trend, rate, recent, delay,
	}
	return row, clamp01(target)
}

func pick(rng *rand.Rand, weights []float64) int {
	r := rng.Float64()
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}
