package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/models"

	"golang.org/x/time/rate"
)

// Limiter bounds how often and how long a source may be called. A call the limiter
// denies fails immediately with ErrRateLimited instead of waiting.
type Limiter struct {
	limiter *rate.Limiter
	timeout time.Duration
}

func NewLimiter(perSecond float64, burst int, timeout time.Duration) *Limiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst), timeout: timeout}
}

func (l *Limiter) do(ctx context.Context, call func(ctx context.Context) error) error {
	if !l.limiter.Allow() {
		return fmt.Errorf("%w: %w", ErrUnavailable, ErrRateLimited)
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	return call(ctx)
}

type LimitedTraffic struct {
	Source  TrafficSource
	Limiter *Limiter
}

func (l LimitedTraffic) PortTraffic(ctx context.Context, port models.Port) (models.TrafficSnapshot, error) {
	var out models.TrafficSnapshot
	err := l.Limiter.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.Source.PortTraffic(ctx, port)
		return err
	})
	return out, err
}

type LimitedWeather struct {
	Source  WeatherSource
	Limiter *Limiter
}

func (l LimitedWeather) WeatherAlert(ctx context.Context, region string) (models.WeatherAlert, error) {
	var out models.WeatherAlert
	err := l.Limiter.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.Source.WeatherAlert(ctx, region)
		return err
	})
	return out, err
}

type LimitedNews struct {
	Source  NewsSource
	Limiter *Limiter
}

func (l LimitedNews) NewsArticle(ctx context.Context, portID, region string) (models.NewsArticle, error) {
	var out models.NewsArticle
	err := l.Limiter.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.Source.NewsArticle(ctx, portID, region)
		return err
	})
	return out, err
}
