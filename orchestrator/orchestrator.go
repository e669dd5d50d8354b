// Package orchestrator fans route evaluation out over the signal pipelines, merges
// each route's endpoint signals, scores it and keeps the registry's route risk current.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jwolfsohn/Atlas-Sentinel/analysis"
	"github.com/jwolfsohn/Atlas-Sentinel/forecast"
	"github.com/jwolfsohn/Atlas-Sentinel/metrics"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
	"github.com/jwolfsohn/Atlas-Sentinel/pipeline"
	"github.com/jwolfsohn/Atlas-Sentinel/publish"
	"github.com/jwolfsohn/Atlas-Sentinel/registry"
	"github.com/jwolfsohn/Atlas-Sentinel/risk"
	"github.com/jwolfsohn/Atlas-Sentinel/storage"
)

const (
	routeNewsLimit  = 5
	regionNewsLimit = 10
	defaultTopN     = 10
)

type Config struct {
	Registry   registry.Store
	History    storage.HistoryStore
	Traffic    *pipeline.TrafficPipeline
	Weather    *pipeline.WeatherPipeline
	News       *pipeline.NewsPipeline
	Aggregator *risk.Aggregator
	Forecaster *forecast.CascadeForecaster
	Publisher  publish.Publisher
	// Parallelism bounds concurrent endpoint and route evaluations.
	Parallelism int
	// SharedPortGraph makes PredictDelays derive a graph when none is given.
	SharedPortGraph bool
}

type Orchestrator struct {
	registry        registry.Store
	history         storage.HistoryStore
	traffic         *pipeline.TrafficPipeline
	weather         *pipeline.WeatherPipeline
	news            *pipeline.NewsPipeline
	aggregator      *risk.Aggregator
	forecaster      *forecast.CascadeForecaster
	publisher       publish.Publisher
	sentiment       *analysis.SentimentAnalyzer
	congestion      *analysis.CongestionAnalyzer
	parallelism     int
	sharedPortGraph bool
}

func New(cfg Config) *Orchestrator {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 8
	}
	if cfg.Publisher == nil {
		cfg.Publisher = publish.Nop{}
	}
	if cfg.Forecaster == nil {
		cfg.Forecaster = forecast.NewCascadeForecaster()
	}
	return &Orchestrator{
		registry:        cfg.Registry,
		history:         cfg.History,
		traffic:         cfg.Traffic,
		weather:         cfg.Weather,
		news:            cfg.News,
		aggregator:      cfg.Aggregator,
		forecaster:      cfg.Forecaster,
		publisher:       cfg.Publisher,
		sentiment:       analysis.NewSentimentAnalyzer(),
		congestion:      analysis.NewCongestionAnalyzer(0),
		parallelism:     cfg.Parallelism,
		sharedPortGraph: cfg.SharedPortGraph,
	}
}

// Evaluate scores every route. Endpoint signals are gathered once per port, then
// routes are merged and scored in parallel. A route whose endpoints could not be
// gathered is skipped; the error is non-nil only when ctx ends.
func (o *Orchestrator) Evaluate(ctx context.Context, force bool) ([]models.RouteRisk, error) {
	start := time.Now()
	defer func() {
		metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	}()

	endpoints := o.gatherEndpoints(ctx, o.registry.Ports(), force)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	routes := o.registry.Routes()
	results := make([]*models.RouteRisk, len(routes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for i, route := range routes {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			origin, okOrigin := endpoints[route.OriginPortID]
			destination, okDest := endpoints[route.DestinationPortID]
			if !okOrigin || !okDest {
				metrics.RouteFailures.Inc()
				log.Printf("route %s skipped: endpoint signals unavailable", route.ID)
				return nil
			}
			rr, err := o.score(route, origin, destination)
			if err != nil {
				metrics.RouteFailures.Inc()
				log.Printf("route %s evaluation failed: %v", route.ID, err)
				return nil
			}
			results[i] = &rr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.RouteRisk, 0, len(results))
	for _, rr := range results {
		if rr != nil {
			out = append(out, *rr)
		}
	}
	SortRouteRisks(out)
	o.publish(ctx, out)
	return out, nil
}

// EvaluateRoute scores a single route.
func (o *Orchestrator) EvaluateRoute(ctx context.Context, routeID string, force bool) (models.RouteRisk, error) {
	route, err := o.registry.Route(routeID)
	if err != nil {
		return models.RouteRisk{}, err
	}
	origin, err := o.endpoint(ctx, route.OriginPortID, force)
	if err != nil {
		return models.RouteRisk{}, fmt.Errorf("route %s origin: %w", route.ID, err)
	}
	destination, err := o.endpoint(ctx, route.DestinationPortID, force)
	if err != nil {
		return models.RouteRisk{}, fmt.Errorf("route %s destination: %w", route.ID, err)
	}
	return o.score(route, origin, destination)
}

// TopRiskRoutes returns the n riskiest routes as last scored; n <= 0 means 10.
func (o *Orchestrator) TopRiskRoutes(n int) []models.Route {
	if n <= 0 {
		n = defaultTopN
	}
	routes := o.registry.Routes()
	registry.SortByRisk(routes)
	if len(routes) > n {
		routes = routes[:n]
	}
	return routes
}

// PredictDelays forecasts delays for assessments. With a nil graph and the shared
// port graph enabled, routes sharing a port are treated as dependents.
func (o *Orchestrator) PredictDelays(assessments []models.RiskAssessment, graph forecast.DependencyGraph) []models.DelayForecast {
	if graph == nil && o.sharedPortGraph {
		graph = forecast.SharedPortGraph(o.registry.Routes())
	}
	return o.forecaster.PredictCascadingDelays(assessments, graph)
}

// Classify maps a score to a level under the configured thresholds.
func (o *Orchestrator) Classify(score float64) models.RiskLevel {
	return o.aggregator.Thresholds().Level(score)
}

type IngestSummary struct {
	Ports         int            `json:"ports"`
	WeatherAlerts int            `json:"weather_alerts"`
	NewsArticles  map[string]int `json:"news_articles"`
	Duration      time.Duration  `json:"duration_ns"`
}

// IngestAll refreshes traffic for every port, weather for every region and news per
// region, and writes port live metrics back to the registry.
func (o *Orchestrator) IngestAll(ctx context.Context, force bool) (IngestSummary, error) {
	start := time.Now()
	summary := IngestSummary{NewsArticles: make(map[string]int)}

	ports := o.registry.Ports()
	snaps, err := o.traffic.IngestAll(ctx, ports, force)
	if err != nil {
		return summary, err
	}
	for _, snap := range snaps {
		o.applyTraffic(snap)
	}
	summary.Ports = len(snaps)

	alerts, err := o.weather.Ingest(ctx, "", force)
	if err != nil {
		return summary, fmt.Errorf("ingest weather: %w", err)
	}
	summary.WeatherAlerts = len(alerts)

	for _, region := range registry.Regions(o.registry) {
		articles, err := o.news.Ingest(ctx, pipeline.NewsQuery{Region: region, Limit: regionNewsLimit}, force)
		if err != nil {
			return summary, fmt.Errorf("ingest news for %s: %w", region, err)
		}
		summary.NewsArticles[region] = len(articles)
	}

	summary.Duration = time.Since(start)
	return summary, ctx.Err()
}

// RefreshCycle is one background pass: force-refresh every signal, then rescore.
func (o *Orchestrator) RefreshCycle(ctx context.Context) error {
	start := time.Now()
	summary, err := o.IngestAll(ctx, true)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	results, err := o.Evaluate(ctx, false)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	articles := 0
	for _, n := range summary.NewsArticles {
		articles += n
	}
	log.Printf("refresh cycle completed: %d ports, %d alerts, %d articles, %d routes (%.2fs)",
		summary.Ports, summary.WeatherAlerts, articles, len(results), time.Since(start).Seconds())
	return nil
}

type DataSummary struct {
	Ports   int            `json:"ports"`
	Routes  int            `json:"routes"`
	Regions []string       `json:"regions"`
	History storage.Counts `json:"history"`
}

func (o *Orchestrator) Summary(ctx context.Context) (DataSummary, error) {
	counts, err := o.history.Counts(ctx)
	if err != nil {
		return DataSummary{}, err
	}
	return DataSummary{
		Ports:   len(o.registry.Ports()),
		Routes:  len(o.registry.Routes()),
		Regions: registry.Regions(o.registry),
		History: counts,
	}, nil
}

// SortRouteRisks orders by total risk, highest first, ties by route id.
func SortRouteRisks(results []models.RouteRisk) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Assessment, results[j].Assessment
		if a.TotalRisk != b.TotalRisk {
			return a.TotalRisk > b.TotalRisk
		}
		return a.RouteID < b.RouteID
	})
}

func (o *Orchestrator) gatherEndpoints(ctx context.Context, ports []models.Port, force bool) map[string]models.EndpointSignals {
	var mu sync.Mutex
	out := make(map[string]models.EndpointSignals, len(ports))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for _, port := range ports {
		g.Go(func() error {
			signals, err := o.endpoint(gctx, port.ID, force)
			if err != nil {
				log.Printf("endpoint %s signals failed: %v", port.ID, err)
				return nil
			}
			mu.Lock()
			out[port.ID] = signals
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (o *Orchestrator) endpoint(ctx context.Context, portID string, force bool) (models.EndpointSignals, error) {
	port, err := o.registry.Port(portID)
	if err != nil {
		return models.EndpointSignals{}, err
	}
	traffic, err := o.traffic.Ingest(ctx, portID, force)
	if err != nil {
		return models.EndpointSignals{}, fmt.Errorf("traffic: %w", err)
	}
	o.applyTraffic(traffic)

	weather, err := o.weather.ForPort(ctx, port, force)
	if err != nil {
		return models.EndpointSignals{}, fmt.Errorf("weather: %w", err)
	}
	if weather.Severity == "" {
		weather = models.NoWeather
	}

	news, err := o.news.Ingest(ctx, pipeline.NewsQuery{PortID: portID, Limit: routeNewsLimit}, force)
	if err != nil {
		return models.EndpointSignals{}, fmt.Errorf("news: %w", err)
	}
	if news == nil {
		news = []models.NewsArticle{}
	}

	return models.EndpointSignals{
		PortID:     port.ID,
		PortName:   port.Name,
		Traffic:    traffic,
		Weather:    weather,
		News:       news,
		Sentiment:  o.sentiment.AnalyzeArticles(news),
		Congestion: o.congestion.FromSnapshot(traffic),
	}, nil
}

// score merges the two endpoints, scores the route and records the result on it.
func (o *Orchestrator) score(route models.Route, origin, destination models.EndpointSignals) (models.RouteRisk, error) {
	weather := risk.MergeWeather(origin.Weather, destination.Weather)
	congestion := risk.MergeCongestion(origin.Congestion, destination.Congestion)
	sentiment := o.sentiment.AnalyzeArticles(risk.MergeNews(origin.News, destination.News))

	assessment := o.aggregator.ComputeRouteRisk(route.ID, weather, sentiment, congestion, nil)
	metrics.RoutesEvaluated.Inc()

	route.RiskScore = assessment.TotalRisk
	route.RiskLevel = assessment.RiskLevel
	route.UpdatedAt = assessment.Timestamp
	if err := o.registry.UpsertRoute(route); err != nil {
		return models.RouteRisk{}, fmt.Errorf("update route %s: %w", route.ID, err)
	}

	return models.RouteRisk{
		Route:       route,
		Origin:      origin,
		Destination: destination,
		Weather:     weather,
		Sentiment:   sentiment,
		Congestion:  congestion,
		Assessment:  assessment,
	}, nil
}

// applyTraffic records a newer observation on the registry's port record. The
// comparison happens inside the registry so an older concurrent pass cannot win.
func (o *Orchestrator) applyTraffic(snap models.TrafficSnapshot) {
	if _, err := o.registry.ApplyTraffic(snap); err != nil {
		log.Printf("update port %s failed: %v", snap.PortID, err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, results []models.RouteRisk) {
	if len(results) == 0 {
		return
	}
	assessments := make([]models.RiskAssessment, len(results))
	for i, rr := range results {
		assessments[i] = rr.Assessment
	}
	if _, err := o.publisher.Publish(ctx, assessments); err != nil {
		log.Printf("publish assessments failed: %v", err)
	}
}
