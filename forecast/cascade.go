// Package forecast estimates route delays from risk assessments and projects port
// congestion forward from its recent history.
package forecast

import (
	"math"
	"sort"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

// cascadeFactor is the share of a dependent route's base delay that propagates.
const cascadeFactor = 0.3

// DependencyGraph maps a route id to the ids of the routes that depend on it.
type DependencyGraph map[string][]string

// BaseDelay is the delay in hours implied by a single route's risk. A level the
// score does not reach never yields a negative delay.
func BaseDelay(risk float64, level models.RiskLevel) float64 {
	var d float64
	switch level {
	case models.RiskHigh:
		d = 24 + (risk-0.7)*120
	case models.RiskMedium:
		d = 6 + (risk-0.4)*40
	default:
		d = risk * 10
	}
	return math.Max(0, d)
}

type CascadeForecaster struct{}

func NewCascadeForecaster() *CascadeForecaster {
	return &CascadeForecaster{}
}

// PredictCascadingDelays returns one forecast per assessment, in input order.
// Only dependents present in assessments contribute, and only one hop deep.
func (f *CascadeForecaster) PredictCascadingDelays(assessments []models.RiskAssessment, graph DependencyGraph) []models.DelayForecast {
	base := make(map[string]float64, len(assessments))
	for _, a := range assessments {
		base[a.RouteID] = BaseDelay(a.TotalRisk, a.RiskLevel)
	}

	out := make([]models.DelayForecast, 0, len(assessments))
	for _, a := range assessments {
		own := base[a.RouteID]
		var cascading float64
		for _, dep := range graph[a.RouteID] {
			if d, ok := base[dep]; ok {
				cascading += d * cascadeFactor
			}
		}
		confidence := 0.5
		if a.TotalRisk > 0.5 {
			confidence = 0.7
		}
		out = append(out, models.DelayForecast{
			RouteID:             a.RouteID,
			PredictedDelayHours: own + cascading,
			BaseDelay:           own,
			CascadingDelay:      cascading,
			RiskLevel:           a.RiskLevel,
			Confidence:          confidence,
		})
	}
	return out
}

// SharedPortGraph links every route to the other routes touching one of its ports.
// Dependents are listed in route id order.
func SharedPortGraph(routes []models.Route) DependencyGraph {
	byPort := make(map[string][]string)
	for _, r := range routes {
		byPort[r.OriginPortID] = append(byPort[r.OriginPortID], r.ID)
		byPort[r.DestinationPortID] = append(byPort[r.DestinationPortID], r.ID)
	}

	graph := make(DependencyGraph, len(routes))
	for _, r := range routes {
		seen := map[string]bool{r.ID: true}
		var deps []string
		for _, portID := range []string{r.OriginPortID, r.DestinationPortID} {
			for _, id := range byPort[portID] {
				if !seen[id] {
					seen[id] = true
					deps = append(deps, id)
				}
			}
		}
		sort.Strings(deps)
		graph[r.ID] = deps
	}
	return graph
}
