package handlers

import (
	"net/http"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/analysis"
	"github.com/jwolfsohn/Atlas-Sentinel/forecast"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
	"github.com/jwolfsohn/Atlas-Sentinel/pipeline"
	"github.com/jwolfsohn/Atlas-Sentinel/registry"

	"github.com/gin-gonic/gin"
)

type PortHandler struct {
	registry   registry.Store
	traffic    *pipeline.TrafficPipeline
	forecaster *forecast.CongestionForecaster
	congestion *analysis.CongestionAnalyzer
}

func NewPortHandler(reg registry.Store, traffic *pipeline.TrafficPipeline, forecaster *forecast.CongestionForecaster) *PortHandler {
	return &PortHandler{
		registry:   reg,
		traffic:    traffic,
		forecaster: forecaster,
		congestion: analysis.NewCongestionAnalyzer(0),
	}
}

type PortView struct {
	models.Port
	Trend      models.Trend             `json:"trend"`
	Congestion models.CongestionMetrics `json:"congestion"`
}

// List returns every port, or the ports of one region, with live traffic served from
// cache while it is fresh.
func (h *PortHandler) List(c *gin.Context) {
	ports := h.registry.Ports()
	if region := c.Query("region"); region != "" {
		ports = registry.PortsInRegion(h.registry, region)
		if len(ports) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown region " + region})
			return
		}
	}
	out := make([]PortView, 0, len(ports))
	for _, port := range ports {
		snap, err := h.traffic.Ingest(c.Request.Context(), port.ID, false)
		if err != nil {
			respondError(c, err)
			return
		}
		view := PortView{Port: port, Trend: snap.Trend, Congestion: h.congestion.FromSnapshot(snap)}
		if !snap.Timestamp.IsZero() {
			view.VesselCount = snap.VesselCount
			view.WaitTimeHours = snap.WaitTimeHours
			view.CongestionIndex = snap.CongestionIndex
			view.UpdatedAt = snap.Timestamp
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{"ports": out, "timestamp": now()})
}

// History lists the points of the last n hours together with rolling metrics over the
// same window. Points from the week before feed the rolling historical wait.
func (h *PortHandler) History(c *gin.Context) {
	n, err := queryHours(c, "hours", 24)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	port, err := h.registry.Port(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	points, err := h.traffic.History(c.Request.Context(), port.ID, hours(max(n, 7*24)))
	if err != nil {
		respondError(c, err)
		return
	}

	at := time.Now()
	start := at.Add(-hours(n))
	window := make([]models.TrafficHistoryPoint, 0, len(points))
	for _, p := range points {
		if !p.Timestamp.Before(start) {
			window = append(window, p)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"port_id": port.ID,
		"hours":   n,
		"history": window,
		"count":   len(window),
		"rolling": analysis.NewCongestionAnalyzer(hours(n)).Rolling(points, port.Capacity, at),
	})
}

// Routes lists the routes touching a port, riskiest first.
func (h *PortHandler) Routes(c *gin.Context) {
	port, err := h.registry.Port(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	routes := registry.RoutesForPort(h.registry, port.ID)
	c.JSON(http.StatusOK, gin.H{"port_id": port.ID, "routes": routes, "count": len(routes)})
}

// Projection projects the port a day ahead from its live traffic, the vessels expected
// to arrive and the hourly processing rate.
func (h *PortHandler) Projection(c *gin.Context) {
	incoming, err := queryCount(c, "incoming", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rate, err := queryFloat(c, "rate")
	if err != nil || rate == nil || *rate < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rate must be a non-negative number of vessels per hour"})
		return
	}
	port, err := h.registry.Port(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	snap, err := h.traffic.Ingest(c.Request.Context(), port.ID, false)
	if err != nil {
		respondError(c, err)
		return
	}
	current := h.congestion.FromSnapshot(snap)
	c.JSON(http.StatusOK, gin.H{
		"port_id":    port.ID,
		"current":    current,
		"projection": forecast.Project(current, port.Capacity, incoming, *rate),
		"timestamp":  now(),
	})
}

// Forecast extrapolates congestion from the last week of history.
func (h *PortHandler) Forecast(c *gin.Context) {
	ahead, err := queryHours(c, "hours", 24)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	portID := c.Param("id")
	points, err := h.traffic.History(c.Request.Context(), portID, hours(7*24))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"port_id":  portID,
		"forecast": h.forecaster.Forecast(points, ahead),
		"points":   len(points),
	})
}
