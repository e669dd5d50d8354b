package orchestrator

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/cache"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
	"github.com/jwolfsohn/Atlas-Sentinel/pipeline"
	"github.com/jwolfsohn/Atlas-Sentinel/registry"
	"github.com/jwolfsohn/Atlas-Sentinel/risk"
	"github.com/jwolfsohn/Atlas-Sentinel/source"
	"github.com/jwolfsohn/Atlas-Sentinel/storage"
)

type sources struct {
	traffic source.TrafficSource
	weather source.WeatherSource
	news    source.NewsSource
}

type recordingPublisher struct {
	mu    sync.Mutex
	count int
}

func (p *recordingPublisher) Publish(ctx context.Context, assessments []models.RiskAssessment) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count += len(assessments)
	return len(assessments), nil
}

func (p *recordingPublisher) Close() error { return nil }

type zoneWeather map[string]models.WeatherAlert

func (z zoneWeather) WeatherAlert(ctx context.Context, region string) (models.WeatherAlert, error) {
	alert, ok := z[region]
	if !ok {
		alert = models.WeatherAlert{Type: "none", Severity: models.SeverityNone}
	}
	alert.Zone = region
	alert.Timestamp = time.Now().UTC()
	return alert, nil
}

type downTraffic struct{}

func (downTraffic) PortTraffic(ctx context.Context, port models.Port) (models.TrafficSnapshot, error) {
	return models.TrafficSnapshot{}, source.ErrUnavailable
}

type downWeather struct{}

func (downWeather) WeatherAlert(ctx context.Context, region string) (models.WeatherAlert, error) {
	return models.WeatherAlert{}, source.ErrUnavailable
}

type downNews struct{}

func (downNews) NewsArticle(ctx context.Context, portID, region string) (models.NewsArticle, error) {
	return models.NewsArticle{}, source.ErrUnavailable
}

func simulated() sources {
	sim := source.NewSimulator(42, registry.DefaultPorts())
	return sources{traffic: sim, weather: sim, news: sim}
}

func newOrchestrator(t *testing.T, src sources, pub *recordingPublisher, sharedGraph bool) (*Orchestrator, *registry.MemoryStore) {
	t.Helper()
	reg := registry.NewSeeded()
	history := storage.NewMemoryStore()
	backend := cache.NewMemoryBackend()

	traffic := pipeline.NewTrafficPipeline(src.traffic, reg,
		cache.New[models.TrafficSnapshot](backend, pipeline.SignalTraffic, 5*time.Minute), history)
	weather := pipeline.NewWeatherPipeline(src.weather, func() []string { return registry.Regions(reg) },
		cache.New[[]models.WeatherAlert](backend, pipeline.SignalWeather, 10*time.Minute), history)
	news := pipeline.NewNewsPipeline(src.news, reg,
		cache.New[[]models.NewsArticle](backend, pipeline.SignalNews, 15*time.Minute), history).
		WithArticleCount(func(limit int) int { return 2 })

	agg, err := risk.NewAggregator(risk.DefaultWeights, risk.DefaultThresholds, nil)
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}

	cfg := Config{
		Registry:        reg,
		History:         history,
		Traffic:         traffic,
		Weather:         weather,
		News:            news,
		Aggregator:      agg,
		Parallelism:     4,
		SharedPortGraph: sharedGraph,
	}
	if pub != nil {
		cfg.Publisher = pub
	}
	return New(cfg), reg
}

func TestEvaluate(t *testing.T) {
	pub := &recordingPublisher{}
	o, reg := newOrchestrator(t, simulated(), pub, false)

	results, err := o.Evaluate(context.Background(), false)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(results) != 45 {
		t.Fatalf("len(results) = %d, want 45", len(results))
	}

	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1].Assessment, results[i].Assessment
		if prev.TotalRisk < cur.TotalRisk || (prev.TotalRisk == cur.TotalRisk && prev.RouteID > cur.RouteID) {
			t.Fatalf("results not sorted at %d: %v/%s before %v/%s", i, prev.TotalRisk, prev.RouteID, cur.TotalRisk, cur.RouteID)
		}
	}

	for _, rr := range results {
		a := rr.Assessment
		if a.TotalRisk < 0 || a.TotalRisk > 1 {
			t.Errorf("%s TotalRisk = %v out of range", a.RouteID, a.TotalRisk)
		}
		stored, err := reg.Route(a.RouteID)
		if err != nil {
			t.Fatalf("Route(%s) error = %v", a.RouteID, err)
		}
		if stored.RiskScore != a.TotalRisk || stored.RiskLevel != a.RiskLevel {
			t.Errorf("%s registry risk = %v/%s, want %v/%s", a.RouteID, stored.RiskScore, stored.RiskLevel, a.TotalRisk, a.RiskLevel)
		}
		if rr.Origin.PortID != rr.Route.OriginPortID || rr.Destination.PortID != rr.Route.DestinationPortID {
			t.Errorf("%s endpoints = %s/%s", a.RouteID, rr.Origin.PortID, rr.Destination.PortID)
		}
		if rr.Sentiment.ArticleCount != 4 {
			t.Errorf("%s merged article count = %d, want 4", a.RouteID, rr.Sentiment.ArticleCount)
		}
	}

	if pub.count != 45 {
		t.Errorf("published %d assessments, want 45", pub.count)
	}

	port, _ := reg.Port("LAX")
	if port.VesselCount == 0 || port.UpdatedAt.IsZero() {
		t.Errorf("port live metrics not updated: %+v", port)
	}
}

func TestEvaluateBottleneckWeather(t *testing.T) {
	src := simulated()
	src.weather = zoneWeather{
		"Asia":   {Type: "typhoon", Severity: models.SeverityExtreme, DurationHours: 48},
		"Europe": {Type: "fog", Severity: models.SeverityModerate, DurationHours: 4},
	}
	o, _ := newOrchestrator(t, src, nil, false)
	ctx := context.Background()

	tests := []struct {
		routeID string
		want    models.Severity
		zone    string
	}{
		{"LAX-SHG", models.SeverityExtreme, "Asia"},
		{"RTM-HKG", models.SeverityExtreme, "Asia"},
		{"LAX-RTM", models.SeverityModerate, "Europe"},
		{"LAX-NYC", models.SeverityNone, "North America"},
	}
	for _, tt := range tests {
		t.Run(tt.routeID, func(t *testing.T) {
			rr, err := o.EvaluateRoute(ctx, tt.routeID, false)
			if err != nil {
				t.Fatalf("EvaluateRoute() error = %v", err)
			}
			if rr.Weather.Severity != tt.want || rr.Weather.Zone != tt.zone {
				t.Errorf("merged weather = %s/%s, want %s/%s", rr.Weather.Zone, rr.Weather.Severity, tt.zone, tt.want)
			}
		})
	}

	extreme, _ := o.EvaluateRoute(ctx, "LAX-SHG", false)
	if extreme.Assessment.Components.Weather != 1 {
		t.Errorf("typhoon weather component = %v, want 1", extreme.Assessment.Components.Weather)
	}
}

func TestEvaluateRouteUnknown(t *testing.T) {
	o, _ := newOrchestrator(t, simulated(), nil, false)
	if _, err := o.EvaluateRoute(context.Background(), "LAX-MARS", false); !errors.Is(err, registry.ErrUnknownRoute) {
		t.Errorf("EvaluateRoute() error = %v, want ErrUnknownRoute", err)
	}
}

func TestEvaluateSourcesDown(t *testing.T) {
	o, reg := newOrchestrator(t, sources{traffic: downTraffic{}, weather: downWeather{}, news: downNews{}}, nil, false)

	results, err := o.Evaluate(context.Background(), true)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(results) != 45 {
		t.Fatalf("len(results) = %d, want 45 with neutral signals", len(results))
	}
	for _, rr := range results {
		if rr.Weather.Severity != models.SeverityNone || rr.Assessment.Components.Weather != 0 {
			t.Errorf("%s weather = %+v", rr.Route.ID, rr.Weather)
		}
		if rr.Congestion.VesselCount != 0 || rr.Sentiment.ArticleCount != 0 {
			t.Errorf("%s not neutral: congestion=%+v sentiment=%+v", rr.Route.ID, rr.Congestion, rr.Sentiment)
		}
	}

	port, _ := reg.Port("SHG")
	if !port.UpdatedAt.IsZero() {
		t.Errorf("neutral snapshot overwrote port metrics: %+v", port)
	}
}

func TestEvaluateCancelled(t *testing.T) {
	o, _ := newOrchestrator(t, simulated(), nil, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Evaluate(ctx, false); !errors.Is(err, context.Canceled) {
		t.Errorf("Evaluate() error = %v, want context.Canceled", err)
	}
}

func TestTopRiskRoutes(t *testing.T) {
	o, _ := newOrchestrator(t, simulated(), nil, false)
	results, err := o.Evaluate(context.Background(), false)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	top := o.TopRiskRoutes(5)
	if len(top) != 5 {
		t.Fatalf("len(top) = %d, want 5", len(top))
	}
	for i := range top {
		if top[i].ID != results[i].Route.ID {
			t.Errorf("top[%d] = %s, want %s", i, top[i].ID, results[i].Route.ID)
		}
	}
	if len(o.TopRiskRoutes(0)) != 10 {
		t.Errorf("TopRiskRoutes(0) should default to 10")
	}
	if len(o.TopRiskRoutes(100)) != 45 {
		t.Errorf("TopRiskRoutes(100) should return every route")
	}
}

func TestPredictDelays(t *testing.T) {
	assessments := []models.RiskAssessment{
		{RouteID: "LAX-NYC", TotalRisk: 0.8, RiskLevel: models.RiskHigh},
		{RouteID: "LAX-SHG", TotalRisk: 0.5, RiskLevel: models.RiskMedium},
		{RouteID: "RTM-HAM", TotalRisk: 0.2, RiskLevel: models.RiskLow},
	}

	plain, _ := newOrchestrator(t, simulated(), nil, false)
	for _, f := range plain.PredictDelays(assessments, nil) {
		if f.CascadingDelay != 0 {
			t.Errorf("%s cascading = %v without a graph", f.RouteID, f.CascadingDelay)
		}
	}

	shared, _ := newOrchestrator(t, simulated(), nil, true)
	got := shared.PredictDelays(assessments, nil)
	if math.Abs(got[0].CascadingDelay-0.3*10) > 1e-9 {
		t.Errorf("LAX-NYC cascading = %v, want %v from LAX-SHG", got[0].CascadingDelay, 0.3*10)
	}
	if got[2].CascadingDelay != 0 {
		t.Errorf("RTM-HAM shares no port with the others, cascading = %v", got[2].CascadingDelay)
	}

	explicit := shared.PredictDelays(assessments, map[string][]string{"RTM-HAM": {"LAX-SHG"}})
	if explicit[0].CascadingDelay != 0 || math.Abs(explicit[2].CascadingDelay-0.3*10) > 1e-9 {
		t.Errorf("explicit graph ignored: %+v", explicit)
	}
}

func TestIngestAll(t *testing.T) {
	o, reg := newOrchestrator(t, simulated(), nil, false)

	summary, err := o.IngestAll(context.Background(), true)
	if err != nil {
		t.Fatalf("IngestAll() error = %v", err)
	}
	if summary.Ports != 10 || summary.WeatherAlerts != 4 || len(summary.NewsArticles) != 4 {
		t.Errorf("summary = %+v", summary)
	}
	for _, p := range reg.Ports() {
		if p.UpdatedAt.IsZero() || p.VesselCount == 0 {
			t.Errorf("port %s not refreshed: %+v", p.ID, p)
		}
	}

	data, err := o.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if data.Ports != 10 || data.Routes != 45 || data.History.TrafficPoints != 10 || data.History.Alerts != 4 {
		t.Errorf("data summary = %+v", data)
	}
}

func TestRefreshCycle(t *testing.T) {
	pub := &recordingPublisher{}
	o, _ := newOrchestrator(t, simulated(), pub, false)
	if err := o.RefreshCycle(context.Background()); err != nil {
		t.Fatalf("RefreshCycle() error = %v", err)
	}
	if pub.count != 45 {
		t.Errorf("published %d, want 45", pub.count)
	}
}
