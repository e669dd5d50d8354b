package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/cache"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
	"github.com/jwolfsohn/Atlas-Sentinel/registry"
	"github.com/jwolfsohn/Atlas-Sentinel/storage"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeTraffic struct {
	clock   *clock
	vessels []int
	calls   int
	fail    bool
}

func (f *fakeTraffic) PortTraffic(ctx context.Context, port models.Port) (models.TrafficSnapshot, error) {
	if f.fail {
		return models.TrafficSnapshot{}, fmt.Errorf("%w: feed down", ErrSourceUnavailable)
	}
	v := f.vessels[f.calls%len(f.vessels)]
	f.calls++
	return models.TrafficSnapshot{
		PortID:          port.ID,
		PortName:        port.Name,
		VesselCount:     v,
		Capacity:        100,
		WaitTimeHours:   12,
		CongestionIndex: float64(v) / 100,
		Timestamp:       f.clock.Now(),
	}, nil
}

type fakeWeather struct {
	clock    *clock
	severity map[string]models.Severity
	calls    int
	fail     bool
}

func (f *fakeWeather) WeatherAlert(ctx context.Context, region string) (models.WeatherAlert, error) {
	f.calls++
	if f.fail {
		return models.WeatherAlert{}, ErrSourceUnavailable
	}
	return models.WeatherAlert{
		Zone:          region,
		Type:          "storm",
		Severity:      f.severity[region],
		DurationHours: 6,
		Timestamp:     f.clock.Now(),
	}, nil
}

type fakeNews struct {
	clock  *clock
	scores []float64
	calls  int
	fail   bool
}

func (f *fakeNews) NewsArticle(ctx context.Context, portID, region string) (models.NewsArticle, error) {
	if f.fail {
		return models.NewsArticle{}, ErrSourceUnavailable
	}
	score := f.scores[f.calls%len(f.scores)]
	f.calls++
	return models.NewsArticle{
		ID:             fmt.Sprintf("n%d", f.calls),
		Title:          "headline",
		Content:        "body",
		Source:         "Trade Journal",
		PortID:         portID,
		Region:         region,
		SentimentScore: score,
		Timestamp:      f.clock.Now(),
	}, nil
}

func newTraffic(t *testing.T, c *clock, src *fakeTraffic) (*TrafficPipeline, storage.HistoryStore) {
	t.Helper()
	history := storage.NewMemoryStore()
	tc := cache.New[models.TrafficSnapshot](cache.NewMemoryBackend(), SignalTraffic, 5*time.Minute).WithClock(c.Now)
	p := NewTrafficPipeline(src, registry.NewSeeded(), tc, history)
	p.now = c.Now
	return p, history
}

func TestTrafficIngest(t *testing.T) {
	c := newClock()
	src := &fakeTraffic{clock: c, vessels: []int{40, 55, 30}}
	p, history := newTraffic(t, c, src)
	ctx := context.Background()

	first, err := p.Ingest(ctx, "LAX", false)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if first.Trend != models.TrendStable || first.PreviousVesselCount != nil {
		t.Errorf("first snapshot trend = %q prev = %v, want stable and nil", first.Trend, first.PreviousVesselCount)
	}

	c.Advance(time.Minute)
	again, _ := p.Ingest(ctx, "LAX", false)
	if src.calls != 1 || again.VesselCount != 40 {
		t.Errorf("fresh entry not served from cache: calls=%d vessels=%d", src.calls, again.VesselCount)
	}

	forced, _ := p.Ingest(ctx, "LAX", true)
	if src.calls != 2 {
		t.Fatalf("force refresh did not call source, calls=%d", src.calls)
	}
	if forced.Trend != models.TrendIncreasing || forced.PreviousVesselCount == nil || *forced.PreviousVesselCount != 40 {
		t.Errorf("forced snapshot = %+v, want increasing from 40", forced)
	}
	if cachedSnap, _ := p.Ingest(ctx, "LAX", false); cachedSnap.VesselCount != 55 {
		t.Errorf("force refresh not written through, cached vessels = %d", cachedSnap.VesselCount)
	}

	c.Advance(10 * time.Minute)
	expired, _ := p.Ingest(ctx, "LAX", false)
	if src.calls != 3 || expired.Trend != models.TrendDecreasing {
		t.Errorf("expired entry: calls=%d trend=%q, want 3 and decreasing", src.calls, expired.Trend)
	}

	points, err := history.TrafficHistory(ctx, "LAX", time.Time{})
	if err != nil {
		t.Fatalf("TrafficHistory() error = %v", err)
	}
	if len(points) != 3 {
		t.Errorf("history has %d points, want 3", len(points))
	}
}

func TestTrafficSelectors(t *testing.T) {
	c := newClock()
	p, _ := newTraffic(t, c, &fakeTraffic{clock: c, vessels: []int{10}})
	ctx := context.Background()

	if _, err := p.Ingest(ctx, "  ", false); !errors.Is(err, ErrInvalidSelector) {
		t.Errorf("empty id error = %v, want ErrInvalidSelector", err)
	}
	if _, err := p.Ingest(ctx, "XXX", false); !errors.Is(err, registry.ErrUnknownPort) {
		t.Errorf("unknown id error = %v, want ErrUnknownPort", err)
	}
}

func TestTrafficSourceUnavailable(t *testing.T) {
	c := newClock()
	src := &fakeTraffic{clock: c, vessels: []int{64}}
	p, _ := newTraffic(t, c, src)
	ctx := context.Background()

	t.Run("no cached entry yields neutral snapshot", func(t *testing.T) {
		src.fail = true
		snap, err := p.Ingest(ctx, "SGP", false)
		if err != nil {
			t.Fatalf("Ingest() error = %v, want nil", err)
		}
		if snap.PortID != "SGP" || snap.VesselCount != 0 || snap.CongestionIndex != 0 || snap.Trend != models.TrendStable {
			t.Errorf("neutral snapshot = %+v", snap)
		}
	})

	t.Run("stale entry is served", func(t *testing.T) {
		src.fail = false
		if _, err := p.Ingest(ctx, "HKG", false); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		c.Advance(time.Hour)
		src.fail = true
		snap, err := p.Ingest(ctx, "HKG", false)
		if err != nil {
			t.Fatalf("Ingest() error = %v, want nil", err)
		}
		if snap.VesselCount != 64 {
			t.Errorf("VesselCount = %d, want stale 64", snap.VesselCount)
		}
	})
}

func TestTrafficHistoryWindowAndPrune(t *testing.T) {
	c := newClock()
	p, history := newTraffic(t, c, &fakeTraffic{clock: c, vessels: []int{20}})
	ctx := context.Background()

	old := models.TrafficHistoryPoint{PortID: "RTM", Timestamp: c.Now().Add(-8 * 24 * time.Hour)}
	earlier := models.TrafficHistoryPoint{PortID: "RTM", Timestamp: c.Now().Add(-30 * time.Hour)}
	_ = history.AppendTraffic(ctx, old)
	_ = history.AppendTraffic(ctx, earlier)

	if _, err := p.Ingest(ctx, "RTM", false); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	all, _ := history.TrafficHistory(ctx, "RTM", time.Time{})
	if len(all) != 2 {
		t.Errorf("points after prune = %d, want 2", len(all))
	}

	day, err := p.History(ctx, "RTM", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(day) != 1 || day[0].VesselCount != 20 {
		t.Errorf("24h history = %+v", day)
	}
	week, _ := p.History(ctx, "RTM", 48*time.Hour)
	if len(week) != 2 || !week[0].Timestamp.Before(week[1].Timestamp) {
		t.Errorf("48h history = %+v, want 2 points oldest first", week)
	}

	if _, err := p.History(ctx, "XXX", 0); !errors.Is(err, registry.ErrUnknownPort) {
		t.Errorf("unknown port error = %v", err)
	}
}

func TestTrafficIngestAll(t *testing.T) {
	c := newClock()
	src := &fakeTraffic{clock: c, vessels: []int{33}}
	p, _ := newTraffic(t, c, src)

	ports := registry.DefaultPorts()
	snaps, err := p.IngestAll(context.Background(), ports, false)
	if err != nil {
		t.Fatalf("IngestAll() error = %v", err)
	}
	if len(snaps) != len(ports) || src.calls != len(ports) {
		t.Errorf("snapshots = %d calls = %d, want %d", len(snaps), src.calls, len(ports))
	}
	for i, s := range snaps {
		if s.PortID != ports[i].ID {
			t.Errorf("snaps[%d].PortID = %s, want %s", i, s.PortID, ports[i].ID)
		}
	}
}

func newWeather(c *clock, src *fakeWeather) (*WeatherPipeline, storage.HistoryStore) {
	history := storage.NewMemoryStore()
	wc := cache.New[[]models.WeatherAlert](cache.NewMemoryBackend(), SignalWeather, 10*time.Minute).WithClock(c.Now)
	regions := func() []string { return []string{"Asia", "Europe", "North America"} }
	p := NewWeatherPipeline(src, regions, wc, history)
	p.now = c.Now
	return p, history
}

func TestWeatherIngest(t *testing.T) {
	c := newClock()
	src := &fakeWeather{clock: c, severity: map[string]models.Severity{
		"Asia":          models.SeverityExtreme,
		"Europe":        models.SeverityLight,
		"North America": models.SeverityModerate,
	}}
	p, history := newWeather(c, src)
	ctx := context.Background()

	all, err := p.Ingest(ctx, "", false)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(all) != 3 || src.calls != 3 {
		t.Fatalf("alerts = %d calls = %d, want 3", len(all), src.calls)
	}
	if _, _ = p.Ingest(ctx, "", false); src.calls != 3 {
		t.Errorf("all-regions query not cached, calls = %d", src.calls)
	}

	europe, _ := p.Ingest(ctx, "Europe", false)
	if len(europe) != 1 || europe[0].Zone != "Europe" || src.calls != 4 {
		t.Errorf("region query = %+v calls = %d", europe, src.calls)
	}

	stored, _ := history.Alerts(ctx, time.Time{})
	if len(stored) != 3 {
		t.Errorf("stored alerts = %d, want 3 (same zone and time dedup)", len(stored))
	}
}

func TestWeatherForPortAndActive(t *testing.T) {
	c := newClock()
	src := &fakeWeather{clock: c, severity: map[string]models.Severity{
		"Asia":          models.SeveritySevere,
		"Europe":        models.SeverityLight,
		"North America": models.SeverityModerate,
	}}
	p, _ := newWeather(c, src)
	ctx := context.Background()

	alert, err := p.ForPort(ctx, models.Port{ID: "SHG", Region: "Asia", WeatherZone: "Asia"}, false)
	if err != nil {
		t.Fatalf("ForPort() error = %v", err)
	}
	if alert.Severity != models.SeveritySevere {
		t.Errorf("ForPort severity = %q", alert.Severity)
	}

	active, _ := p.ActiveAlerts(ctx, models.SeverityModerate)
	if len(active) != 2 {
		t.Errorf("active moderate+ alerts = %d, want 2", len(active))
	}

	c.Advance(7 * time.Hour)
	src.fail = true
	expired, _ := p.ActiveAlerts(ctx, models.SeverityLight)
	if len(expired) != 0 {
		t.Errorf("alerts past their duration still active: %+v", expired)
	}
}

func TestWeatherSourceUnavailable(t *testing.T) {
	c := newClock()
	src := &fakeWeather{clock: c, fail: true, severity: map[string]models.Severity{}}
	p, _ := newWeather(c, src)

	alerts, err := p.Ingest(context.Background(), "Asia", false)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("alerts = %+v, want empty", alerts)
	}
	if got := MostSevere(alerts); got != models.NoWeather {
		t.Errorf("MostSevere(empty) = %+v, want NoWeather", got)
	}
}

func TestMostSevere(t *testing.T) {
	a := models.WeatherAlert{Zone: "first", Severity: models.SeverityModerate}
	b := models.WeatherAlert{Zone: "second", Severity: models.SeverityModerate}
	cc := models.WeatherAlert{Zone: "third", Severity: models.SeverityLight}
	if got := MostSevere([]models.WeatherAlert{cc, a, b}); got.Zone != "first" {
		t.Errorf("MostSevere tie picked %q, want first", got.Zone)
	}
}

func newNews(c *clock, src *fakeNews) (*NewsPipeline, storage.HistoryStore) {
	history := storage.NewMemoryStore()
	nc := cache.New[[]models.NewsArticle](cache.NewMemoryBackend(), SignalNews, 15*time.Minute).WithClock(c.Now)
	p := NewNewsPipeline(src, registry.NewSeeded(), nc, history).WithArticleCount(func(limit int) int { return limit })
	p.now = c.Now
	return p, history
}

func TestNewsQueryKey(t *testing.T) {
	tests := []struct {
		q    NewsQuery
		want string
	}{
		{NewsQuery{PortID: "LAX", Limit: 5}, "LAX_5"},
		{NewsQuery{Region: "Europe", Limit: 10}, "Europe_10"},
		{NewsQuery{PortID: "LAX", Region: "Asia", Limit: 3}, "LAX_3"},
		{NewsQuery{Limit: 10}, "all_10"},
	}
	for _, tt := range tests {
		if got := tt.q.Key(); got != tt.want {
			t.Errorf("%+v.Key() = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func TestNewsIngest(t *testing.T) {
	c := newClock()
	src := &fakeNews{clock: c, scores: []float64{-0.6}}
	p, history := newNews(c, src)
	ctx := context.Background()

	articles, err := p.Ingest(ctx, NewsQuery{PortID: "LAX"}, false)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(articles) != DefaultNewsLimit {
		t.Errorf("articles = %d, want default limit %d", len(articles), DefaultNewsLimit)
	}
	if _, _ = p.Ingest(ctx, NewsQuery{PortID: "LAX", Limit: 10}, false); src.calls != 10 {
		t.Errorf("default limit and explicit 10 should share a key, calls = %d", src.calls)
	}

	five, _ := p.Ingest(ctx, NewsQuery{PortID: "LAX", Limit: 5}, false)
	if len(five) != 5 || src.calls != 15 {
		t.Errorf("limit 5 returned %d articles after %d calls", len(five), src.calls)
	}

	c2, _ := history.Counts(ctx)
	if c2.Articles != 15 {
		t.Errorf("stored articles = %d, want 15", c2.Articles)
	}

	if _, err := p.Ingest(ctx, NewsQuery{Limit: -1}, false); !errors.Is(err, ErrInvalidSelector) {
		t.Errorf("negative limit error = %v", err)
	}
	if _, err := p.Ingest(ctx, NewsQuery{PortID: "XXX"}, false); !errors.Is(err, registry.ErrUnknownPort) {
		t.Errorf("unknown port error = %v", err)
	}
}

func TestNewsCountClamped(t *testing.T) {
	c := newClock()
	src := &fakeNews{clock: c, scores: []float64{0}}
	p, _ := newNews(c, src)
	p.WithArticleCount(func(limit int) int { return 0 })

	articles, _ := p.Ingest(context.Background(), NewsQuery{Region: "Asia", Limit: 4}, false)
	if len(articles) != 1 {
		t.Errorf("articles = %d, want at least one", len(articles))
	}
}

func TestNewsSourceUnavailable(t *testing.T) {
	c := newClock()
	src := &fakeNews{clock: c, scores: []float64{0.1}, fail: true}
	p, _ := newNews(c, src)

	articles, err := p.Ingest(context.Background(), NewsQuery{Region: "Asia"}, false)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if articles == nil || len(articles) != 0 {
		t.Errorf("articles = %v, want empty non-nil list", articles)
	}
}

func TestNewsRecentAndBySentiment(t *testing.T) {
	c := newClock()
	src := &fakeNews{clock: c, scores: []float64{-0.7, 0.0, 0.6, -0.2}}
	p, _ := newNews(c, src)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, NewsQuery{PortID: "RTM", Limit: 4}, false); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	c.Advance(30 * time.Hour)
	if _, err := p.Ingest(ctx, NewsQuery{PortID: "HAM", Limit: 2}, false); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	recent, _ := p.Recent(ctx, "", 24*time.Hour, nil)
	if len(recent) != 2 {
		t.Errorf("24h articles = %d, want 2", len(recent))
	}

	ceiling := -0.1
	negative, _ := p.Recent(ctx, "RTM", 48*time.Hour, &ceiling)
	if len(negative) != 2 {
		t.Errorf("RTM articles <= -0.1 = %d, want 2", len(negative))
	}
	for _, a := range negative {
		if a.SentimentScore > ceiling {
			t.Errorf("article %s scored %v above ceiling", a.ID, a.SentimentScore)
		}
	}

	groups, err := p.BySentiment(ctx, "RTM", false)
	if err != nil {
		t.Fatalf("BySentiment() error = %v", err)
	}
	if len(groups.Negative) != 1 || len(groups.Neutral) != 2 || len(groups.Positive) != 1 {
		t.Errorf("groups = %d/%d/%d, want 1/2/1", len(groups.Negative), len(groups.Neutral), len(groups.Positive))
	}

	onlyNeg, _ := p.BySentiment(ctx, "RTM", true)
	if len(onlyNeg.Negative) != 1 || onlyNeg.Neutral != nil || onlyNeg.Positive != nil {
		t.Errorf("negative-only groups = %+v", onlyNeg)
	}
}
