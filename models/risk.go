package models

import "time"

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskFactors holds one value per signal; used for both component scores and weights.
type RiskFactors struct {
	Weather    float64 `json:"weather"`
	Sentiment  float64 `json:"sentiment"`
	Congestion float64 `json:"congestion"`
	Historical float64 `json:"historical"`
}

func (f RiskFactors) Sum() float64 {
	return f.Weather + f.Sentiment + f.Congestion + f.Historical
}

type HistoricalData struct {
	DisruptionRate    float64 `json:"disruption_rate"`
	RecentDisruptions int     `json:"recent_disruptions"`
	AvgDelayHours     float64 `json:"avg_delay_hours"`
}

type RiskAssessment struct {
	RouteID    string      `json:"route_id"`
	TotalRisk  float64     `json:"total_risk"`
	RiskLevel  RiskLevel   `json:"risk_level"`
	Components RiskFactors `json:"components"`
	Weights    RiskFactors `json:"weights"`
	Model      string      `json:"model"`
	Timestamp  time.Time   `json:"timestamp"`
}

type DelayForecast struct {
	RouteID             string    `json:"route_id"`
	PredictedDelayHours float64   `json:"predicted_delay_hours"`
	BaseDelay           float64   `json:"base_delay"`
	CascadingDelay      float64   `json:"cascading_delay"`
	RiskLevel           RiskLevel `json:"risk_level"`
	Confidence          float64   `json:"confidence"`
}

// EndpointSignals is what was observed at one end of a route.
type EndpointSignals struct {
	PortID     string            `json:"port_id"`
	PortName   string            `json:"port_name"`
	Traffic    TrafficSnapshot   `json:"traffic"`
	Weather    WeatherAlert      `json:"weather"`
	News       []NewsArticle     `json:"news"`
	Sentiment  SentimentSummary  `json:"sentiment"`
	Congestion CongestionMetrics `json:"congestion"`
}

type RouteRisk struct {
	Route       Route             `json:"route"`
	Origin      EndpointSignals   `json:"origin"`
	Destination EndpointSignals   `json:"destination"`
	Weather     WeatherAlert      `json:"weather"`
	Sentiment   SentimentSummary  `json:"sentiment"`
	Congestion  CongestionMetrics `json:"congestion"`
	Assessment  RiskAssessment    `json:"risk_assessment"`
}
