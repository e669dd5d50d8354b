// Package source adapts external signal producers: AIS traffic, weather alerts and
// news. Adapters return ErrUnavailable, possibly wrapped, when they cannot answer.
package source

import (
	"context"
	"errors"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

var (
	ErrUnavailable = errors.New("source unavailable")
	ErrRateLimited = errors.New("source rate limited")
)

type TrafficSource interface {
	PortTraffic(ctx context.Context, port models.Port) (models.TrafficSnapshot, error)
}

type WeatherSource interface {
	WeatherAlert(ctx context.Context, region string) (models.WeatherAlert, error)
}

// NewsSource produces one article about portID, or about a port in region when
// portID is empty, or about any port when both are empty.
type NewsSource interface {
	NewsArticle(ctx context.Context, portID, region string) (models.NewsArticle, error)
}
