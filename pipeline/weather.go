package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/cache"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
	"github.com/jwolfsohn/Atlas-Sentinel/source"
	"github.com/jwolfsohn/Atlas-Sentinel/storage"
)

const allRegions = "all"

type WeatherPipeline struct {
	source  source.WeatherSource
	regions func() []string
	cache   *cache.Cache[[]models.WeatherAlert]
	history storage.HistoryStore
	now     func() time.Time
}

// NewWeatherPipeline builds the pipeline; regions lists the zones covered by an "all" query.
func NewWeatherPipeline(src source.WeatherSource, regions func() []string, c *cache.Cache[[]models.WeatherAlert], history storage.HistoryStore) *WeatherPipeline {
	return &WeatherPipeline{
		source:  src,
		regions: regions,
		cache:   c,
		history: history,
		now:     time.Now,
	}
}

// Ingest returns one alert per region, or per known region when region is empty.
func (p *WeatherPipeline) Ingest(ctx context.Context, region string, force bool) ([]models.WeatherAlert, error) {
	region = strings.TrimSpace(region)
	key, regions := region, []string{region}
	if region == "" {
		key, regions = allRegions, p.regions()
	}

	if alerts, ok := cached(ctx, p.cache, SignalWeather, key, force); ok {
		return alerts, nil
	}

	alerts := make([]models.WeatherAlert, 0, len(regions))
	var failures []error
	for _, r := range regions {
		alert, err := p.source.WeatherAlert(ctx, r)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		alerts = append(alerts, alert)
	}

	p.record(ctx, alerts)
	if len(failures) > 0 {
		return fallback(ctx, p.cache, SignalWeather, key, errors.Join(failures...), alerts), nil
	}
	store(ctx, p.cache, key, alerts)
	return alerts, nil
}

// ForPort returns the most severe alert of the port's weather zone, or NoWeather.
func (p *WeatherPipeline) ForPort(ctx context.Context, port models.Port, force bool) (models.WeatherAlert, error) {
	zone := port.WeatherZone
	if zone == "" {
		zone = port.Region
	}
	alerts, err := p.Ingest(ctx, zone, force)
	if err != nil {
		return models.NoWeather, err
	}
	return MostSevere(alerts), nil
}

// ActiveAlerts returns alerts at or above minSeverity whose duration has not elapsed.
func (p *WeatherPipeline) ActiveAlerts(ctx context.Context, minSeverity models.Severity) ([]models.WeatherAlert, error) {
	alerts, err := p.Ingest(ctx, "", false)
	if err != nil {
		return nil, err
	}
	now := p.now()
	active := make([]models.WeatherAlert, 0, len(alerts))
	for _, a := range alerts {
		if a.Severity.Level() >= minSeverity.Level() && a.IsActive(now) {
			active = append(active, a)
		}
	}
	return active, nil
}

// MostSevere picks the highest severity alert; the first one wins ties.
func MostSevere(alerts []models.WeatherAlert) models.WeatherAlert {
	if len(alerts) == 0 {
		return models.NoWeather
	}
	worst := alerts[0]
	for _, a := range alerts[1:] {
		if a.Severity.Level() > worst.Severity.Level() {
			worst = a
		}
	}
	return worst
}

func (p *WeatherPipeline) record(ctx context.Context, alerts []models.WeatherAlert) {
	for _, a := range alerts {
		if err := p.history.SaveAlert(ctx, a); err != nil {
			historyFailed(SignalWeather, err)
		}
	}
}
