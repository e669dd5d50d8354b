package handlers

import (
	"net/http"

	"github.com/jwolfsohn/Atlas-Sentinel/app"
	"github.com/jwolfsohn/Atlas-Sentinel/middleware"
	"github.com/jwolfsohn/Atlas-Sentinel/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers every REST and websocket route of the API.
func NewRouter(e *app.Engine, authService *services.AuthService) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.SetupCORS(e.Config.CORS))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "UP",
			"message": "Atlas Sentinel API is running",
			"runner":  e.Runner.Status(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ports := NewPortHandler(e.Registry, e.Traffic, e.Forecaster)
	routes := NewRouteHandler(e.Orchestrator)
	signals := NewSignalHandler(e.Registry, e.Weather, e.News)
	data := NewDataHandler(e.Orchestrator, e.Runner)
	auth := NewAuthHandler(authService)

	api := router.Group("/api")
	{
		api.GET("/ports", ports.List)
		api.GET("/ports/:id/history", ports.History)
		api.GET("/ports/:id/forecast", ports.Forecast)
		api.GET("/ports/:id/projection", ports.Projection)
		api.GET("/ports/:id/routes", ports.Routes)

		api.GET("/routes", routes.List)
		api.GET("/routes/top-risk", routes.TopRisk)
		api.GET("/route/:id", routes.Detail)
		api.GET("/alerts", routes.Alerts)
		api.POST("/delays", routes.Delays)

		api.GET("/weather/active", signals.ActiveWeather)
		api.GET("/news/recent", signals.RecentNews)
		api.GET("/news/sentiment", signals.SentimentGroups)
		api.GET("/news/regions/:region", signals.RegionSentiment)

		api.GET("/data/summary", data.Summary)
		api.POST("/data/refresh", middleware.RequireOperator(authService), data.Refresh)

		api.POST("/auth/login", auth.Login)
	}

	var sub Subscriber
	if e.Redis != nil {
		sub = e.Redis
	}
	router.GET("/ws/risk", LiveRiskWebSocket(sub, e.Config.Redis.Channel, authService, middleware.OriginChecker(e.Config.CORS)))

	return router
}
