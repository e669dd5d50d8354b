package handlers

import (
	"net/http"
	"strconv"

	"github.com/jwolfsohn/Atlas-Sentinel/analysis"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
	"github.com/jwolfsohn/Atlas-Sentinel/pipeline"
	"github.com/jwolfsohn/Atlas-Sentinel/registry"

	"github.com/gin-gonic/gin"
)

type SignalHandler struct {
	registry  registry.Store
	weather   *pipeline.WeatherPipeline
	news      *pipeline.NewsPipeline
	sentiment *analysis.SentimentAnalyzer
}

func NewSignalHandler(reg registry.Store, weather *pipeline.WeatherPipeline, news *pipeline.NewsPipeline) *SignalHandler {
	return &SignalHandler{registry: reg, weather: weather, news: news, sentiment: analysis.NewSentimentAnalyzer()}
}

func (h *SignalHandler) ActiveWeather(c *gin.Context) {
	minSeverity := models.SeverityModerate
	if raw := c.Query("min_severity"); raw != "" {
		s, ok := models.ParseSeverity(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown min_severity " + raw})
			return
		}
		minSeverity = s
	}

	alerts, err := h.weather.ActiveAlerts(c.Request.Context(), minSeverity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts":       alerts,
		"count":        len(alerts),
		"min_severity": minSeverity,
		"timestamp":    now(),
	})
}

// RecentNews lists stored articles, optionally for one port and below a sentiment ceiling.
func (h *SignalHandler) RecentNews(c *gin.Context) {
	n, err := queryHours(c, "hours", 24)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ceiling, err := queryFloat(c, "max_sentiment")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	portID := c.Query("port_id")
	if portID != "" {
		if _, err := h.registry.Port(portID); err != nil {
			respondError(c, err)
			return
		}
	}

	articles, err := h.news.Recent(c.Request.Context(), portID, hours(n), ceiling)
	if err != nil {
		respondError(c, err)
		return
	}
	page, info := Paginate(articles, ParsePagination(c))
	c.JSON(http.StatusOK, gin.H{"articles": page, "page": info, "hours": n})
}

// SentimentGroups buckets the last week of articles by sentiment label.
func (h *SignalHandler) SentimentGroups(c *gin.Context) {
	negativeOnly := false
	if raw := c.Query("negative_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "negative_only must be a boolean"})
			return
		}
		negativeOnly = v
	}
	portID := c.Query("port_id")
	if portID != "" {
		if _, err := h.registry.Port(portID); err != nil {
			respondError(c, err)
			return
		}
	}

	groups, err := h.news.BySentiment(c.Request.Context(), portID, negativeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"port_id": portID, "groups": groups, "negative_only": negativeOnly})
}

// RegionSentiment summarizes the stored articles of every port in a region.
func (h *SignalHandler) RegionSentiment(c *gin.Context) {
	n, err := queryHours(c, "hours", 24)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	region := c.Param("region")
	ports := registry.PortsInRegion(h.registry, region)
	if len(ports) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown region " + region})
		return
	}

	var articles []models.NewsArticle
	portIDs := make([]string, len(ports))
	for i, port := range ports {
		portIDs[i] = port.ID
		recent, err := h.news.Recent(c.Request.Context(), port.ID, hours(n), nil)
		if err != nil {
			respondError(c, err)
			return
		}
		articles = append(articles, recent...)
	}
	c.JSON(http.StatusOK, gin.H{
		"sentiment": h.sentiment.AnalyzeRegion(region, articles),
		"ports":     portIDs,
		"hours":     n,
	})
}
