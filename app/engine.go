// Package app assembles the engine from configuration. The api, ingestor and riskctl
// binaries all build on it.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/jwolfsohn/Atlas-Sentinel/cache"
	"github.com/jwolfsohn/Atlas-Sentinel/config"
	"github.com/jwolfsohn/Atlas-Sentinel/forecast"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
	"github.com/jwolfsohn/Atlas-Sentinel/orchestrator"
	"github.com/jwolfsohn/Atlas-Sentinel/pipeline"
	"github.com/jwolfsohn/Atlas-Sentinel/publish"
	"github.com/jwolfsohn/Atlas-Sentinel/registry"
	"github.com/jwolfsohn/Atlas-Sentinel/risk"
	"github.com/jwolfsohn/Atlas-Sentinel/source"
	"github.com/jwolfsohn/Atlas-Sentinel/storage"
)

type Engine struct {
	Config       *config.Config
	Registry     registry.Store
	History      storage.HistoryStore
	Traffic      *pipeline.TrafficPipeline
	Weather      *pipeline.WeatherPipeline
	News         *pipeline.NewsPipeline
	Aggregator   *risk.Aggregator
	Forecaster   *forecast.CongestionForecaster
	Orchestrator *orchestrator.Orchestrator
	Publisher    publish.Publisher
	Runner       *orchestrator.Runner
	// Redis is nil unless REDIS_ENABLED is set.
	Redis *redis.Client

	closers []func()
}

// Sources overrides the simulator. Nil fields keep the simulated source.
type Sources struct {
	Traffic source.TrafficSource
	Weather source.WeatherSource
	News    source.NewsSource
}

// New builds an engine from cfg with simulated sources.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	return NewWithSources(ctx, cfg, Sources{})
}

// NewWithSources builds an engine from cfg. On error everything opened so far is closed.
func NewWithSources(ctx context.Context, cfg *config.Config, override Sources) (*Engine, error) {
	e := &Engine{Config: cfg}
	if err := e.build(ctx, override); err != nil {
		e.Close()
		return nil, err
	}
	log.Printf("engine ready: model=%s storage=%s ports=%d routes=%d",
		e.Aggregator.ModelName(), cfg.Storage.Driver, len(e.Registry.Ports()), len(e.Registry.Routes()))
	return e, nil
}

func (e *Engine) build(ctx context.Context, override Sources) error {
	cfg := e.Config
	if err := e.openRegistry(); err != nil {
		return err
	}

	history, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	e.History = history
	e.closers = append(e.closers, func() { _ = history.Close() })

	var backend cache.Backend = cache.NewMemoryBackend()
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		e.Redis = client
		e.closers = append(e.closers, func() { _ = client.Close() })
		backend = cache.NewRedisBackend(client)
		log.Printf("redis cache connected at %s:%d", cfg.Redis.Host, cfg.Redis.Port)
	}

	src, err := e.sources(override)
	if err != nil {
		return err
	}

	e.Traffic = pipeline.NewTrafficPipeline(src.Traffic, e.Registry,
		cache.New[models.TrafficSnapshot](backend, pipeline.SignalTraffic, cfg.Cache.TrafficTTL()), history)
	e.Weather = pipeline.NewWeatherPipeline(src.Weather, func() []string { return registry.Regions(e.Registry) },
		cache.New[[]models.WeatherAlert](backend, pipeline.SignalWeather, cfg.Cache.WeatherTTL()), history)
	e.News = pipeline.NewNewsPipeline(src.News, e.Registry,
		cache.New[[]models.NewsArticle](backend, pipeline.SignalNews, cfg.Cache.NewsTTL()), history)

	weights := models.RiskFactors{
		Weather:    cfg.Risk.WeatherWeight,
		Sentiment:  cfg.Risk.SentimentWeight,
		Congestion: cfg.Risk.CongestionWeight,
		Historical: cfg.Risk.HistoricalWeight,
	}
	model, err := risk.NewModel(cfg.Risk.Model, weights, cfg.Source.Seed)
	if err != nil {
		return err
	}
	agg, err := risk.NewAggregator(weights, risk.Thresholds{
		High:   cfg.Risk.HighThreshold,
		Medium: cfg.Risk.MediumThreshold,
	}, model)
	if err != nil {
		return err
	}
	e.Aggregator = agg
	e.Forecaster = forecast.NewCongestionForecaster(0)

	e.Publisher = e.publisher()
	e.closers = append(e.closers, func() { _ = e.Publisher.Close() })

	e.Orchestrator = orchestrator.New(orchestrator.Config{
		Registry:        e.Registry,
		History:         history,
		Traffic:         e.Traffic,
		Weather:         e.Weather,
		News:            e.News,
		Aggregator:      e.Aggregator,
		Forecaster:      forecast.NewCascadeForecaster(),
		Publisher:       e.Publisher,
		Parallelism:     cfg.Ingest.Parallelism,
		SharedPortGraph: cfg.Risk.SharedPortGraph,
	})
	e.Runner = orchestrator.NewRunner(e.Orchestrator.RefreshCycle, cfg.Ingest.Interval(), cfg.Ingest.Backoff())

	return nil
}

// Close stops the runner and releases every connection, newest first.
func (e *Engine) Close() {
	if e.Runner != nil {
		e.Runner.Stop()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func (e *Engine) openRegistry() error {
	if !e.Config.Database.Enabled {
		e.Registry = registry.NewSeeded()
		return nil
	}

	db, err := gorm.Open(postgres.Open(e.Config.Database.GetDSN()), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("connect registry database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("registry sql db handle: %w", err)
	}
	e.closers = append(e.closers, func() { _ = sqlDB.Close() })
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("ping registry database: %w", err)
	}

	store, err := registry.OpenPersistent(registry.NewMemoryStore(), registry.NewGormPersister(db))
	if err != nil {
		return err
	}
	e.Registry = store
	return nil
}

func (e *Engine) sources(override Sources) (Sources, error) {
	cfg := e.Config.Source
	sim := source.NewSimulator(cfg.Seed, e.Registry.Ports())

	out := Sources{
		Traffic: source.LimitedTraffic{Source: sim, Limiter: source.NewLimiter(cfg.RatePerSecond, cfg.Burst, cfg.Timeout())},
		Weather: source.LimitedWeather{Source: sim, Limiter: source.NewLimiter(cfg.RatePerSecond, cfg.Burst, cfg.Timeout())},
		News:    source.LimitedNews{Source: sim, Limiter: source.NewLimiter(cfg.RatePerSecond, cfg.Burst, cfg.Timeout())},
	}
	if override.Traffic != nil {
		out.Traffic = override.Traffic
	}
	if override.Weather != nil {
		out.Weather = override.Weather
	}
	if override.News != nil {
		out.News = override.News
	}

	if e.Config.MQTT.Enabled {
		feed := source.NewMQTTTrafficFeed(e.Config.MQTT.URL, e.Config.MQTT.Topic, e.Config.MQTT.MaxAge(), out.Traffic)
		if err := feed.Connect(); err != nil {
			return Sources{}, err
		}
		e.closers = append(e.closers, feed.Close)
		out.Traffic = feed
	}
	return out, nil
}

func (e *Engine) publisher() publish.Publisher {
	var pubs publish.Fanout
	if e.Redis != nil {
		pubs = append(pubs, publish.NewRedisPublisher(e.Redis, e.Config.Redis.Channel))
	}
	if e.Config.Kafka.Enabled {
		pubs = append(pubs, publish.NewKafkaPublisher(e.Config.Kafka.Brokers, e.Config.Kafka.Topic))
		log.Printf("kafka publisher writing to topic=%s", e.Config.Kafka.Topic)
	}
	switch len(pubs) {
	case 0:
		return publish.Nop{}
	case 1:
		return pubs[0]
	default:
		return pubs
	}
}
