package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/jwolfsohn/Atlas-Sentinel/forecast"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
	"github.com/jwolfsohn/Atlas-Sentinel/orchestrator"

	"github.com/gin-gonic/gin"
)

const defaultAlertThreshold = 0.7

type RouteHandler struct {
	orch *orchestrator.Orchestrator
}

func NewRouteHandler(orch *orchestrator.Orchestrator) *RouteHandler {
	return &RouteHandler{orch: orch}
}

type EndpointView struct {
	PortID      string  `json:"port_id"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Congestion  float64 `json:"congestion"`
	VesselCount int     `json:"vessel_count"`
}

type RouteView struct {
	RouteID             string                   `json:"route_id"`
	Name                string                   `json:"name"`
	Origin              EndpointView             `json:"origin"`
	Destination         EndpointView             `json:"destination"`
	RiskScore           float64                  `json:"risk_score"`
	RiskLevel           models.RiskLevel         `json:"risk_level"`
	RiskComponents      models.RiskFactors       `json:"risk_components"`
	Weather             models.WeatherAlert      `json:"weather"`
	Sentiment           models.SentimentSummary  `json:"sentiment"`
	Congestion          models.CongestionMetrics `json:"congestion"`
	PredictedDelayHours *float64                 `json:"predicted_delay_hours,omitempty"`
	CascadingDelay      *float64                 `json:"cascading_delay,omitempty"`
}

func endpointView(s models.EndpointSignals) EndpointView {
	return EndpointView{
		PortID:      s.PortID,
		Name:        s.PortName,
		Latitude:    s.Traffic.Latitude,
		Longitude:   s.Traffic.Longitude,
		Congestion:  s.Congestion.CongestionIndex,
		VesselCount: s.Traffic.VesselCount,
	}
}

func routeView(rr models.RouteRisk) RouteView {
	return RouteView{
		RouteID:        rr.Route.ID,
		Name:           rr.Route.Name,
		Origin:         endpointView(rr.Origin),
		Destination:    endpointView(rr.Destination),
		RiskScore:      rr.Assessment.TotalRisk,
		RiskLevel:      rr.Assessment.RiskLevel,
		RiskComponents: rr.Assessment.Components,
		Weather:        rr.Weather,
		Sentiment:      rr.Sentiment,
		Congestion:     rr.Congestion,
	}
}

func routeViews(results []models.RouteRisk) []RouteView {
	out := make([]RouteView, len(results))
	for i, rr := range results {
		out[i] = routeView(rr)
	}
	return out
}

// List evaluates every route and returns them riskiest first.
func (h *RouteHandler) List(c *gin.Context) {
	results, err := h.orch.Evaluate(c.Request.Context(), false)
	if err != nil {
		respondError(c, err)
		return
	}
	page, info := Paginate(routeViews(results), ParsePagination(c))
	c.JSON(http.StatusOK, gin.H{"routes": page, "page": info, "timestamp": now()})
}

// TopRisk returns the riskiest routes with their predicted delays.
func (h *RouteHandler) TopRisk(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = l
	}

	results, err := h.orch.Evaluate(c.Request.Context(), false)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(results) > limit {
		results = results[:limit]
	}

	assessments := make([]models.RiskAssessment, len(results))
	for i, rr := range results {
		assessments[i] = rr.Assessment
	}
	delays := make(map[string]models.DelayForecast, len(results))
	for _, d := range h.orch.PredictDelays(assessments, nil) {
		delays[d.RouteID] = d
	}

	views := routeViews(results)
	for i := range views {
		if d, ok := delays[views[i].RouteID]; ok {
			views[i].PredictedDelayHours = &d.PredictedDelayHours
			views[i].CascadingDelay = &d.CascadingDelay
		}
	}
	c.JSON(http.StatusOK, gin.H{"routes": views, "limit": limit, "timestamp": now()})
}

type portDetail struct {
	Data       models.TrafficSnapshot   `json:"data"`
	Sentiment  models.SentimentSummary  `json:"sentiment"`
	Congestion models.CongestionMetrics `json:"congestion"`
	Weather    models.WeatherAlert      `json:"weather"`
	News       []models.NewsArticle     `json:"news"`
}

func detail(s models.EndpointSignals) portDetail {
	return portDetail{
		Data:       s.Traffic,
		Sentiment:  s.Sentiment,
		Congestion: s.Congestion,
		Weather:    s.Weather,
		News:       s.News,
	}
}

func (h *RouteHandler) Detail(c *gin.Context) {
	rr, err := h.orch.EvaluateRoute(c.Request.Context(), c.Param("id"), false)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"route_id":         rr.Route.ID,
		"route_name":       rr.Route.Name,
		"risk_assessment":  rr.Assessment,
		"origin_port":      detail(rr.Origin),
		"destination_port": detail(rr.Destination),
		"timestamp":        now(),
	})
}

// Alerts lists routes scoring at or above threshold.
func (h *RouteHandler) Alerts(c *gin.Context) {
	threshold := defaultAlertThreshold
	v, err := queryFloat(c, "threshold")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if v != nil {
		threshold = *v
	}

	results, err := h.orch.Evaluate(c.Request.Context(), false)
	if err != nil {
		respondError(c, err)
		return
	}
	alerts := make([]RouteView, 0)
	for _, rr := range results {
		if rr.Assessment.TotalRisk >= threshold {
			alerts = append(alerts, routeView(rr))
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts":    alerts,
		"count":     len(alerts),
		"threshold": threshold,
		"timestamp": now(),
	})
}

type DelayRequest struct {
	Assessments []models.RiskAssessment  `json:"assessments" binding:"required"`
	Graph       forecast.DependencyGraph `json:"graph"`
}

// Delays forecasts cascading delays for caller supplied assessments.
func (h *RouteHandler) Delays(c *gin.Context) {
	var req DelayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for i, a := range req.Assessments {
		if a.RouteID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "assessments[" + strconv.Itoa(i) + "].route_id is required"})
			return
		}
		if a.TotalRisk < 0 || a.TotalRisk > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "assessments[" + strconv.Itoa(i) + "].total_risk must be within [0, 1]"})
			return
		}
		level := h.orch.Classify(a.TotalRisk)
		switch a.RiskLevel {
		case "":
			req.Assessments[i].RiskLevel = level
		case models.RiskLow, models.RiskMedium, models.RiskHigh:
			if a.RiskLevel != level {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf(
					"assessments[%d].risk_level %q does not match total_risk %.3f (%s)", i, a.RiskLevel, a.TotalRisk, level)})
				return
			}
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "assessments[" + strconv.Itoa(i) + "].risk_level is invalid"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"forecasts": h.orch.PredictDelays(req.Assessments, req.Graph)})
}
