package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/analysis"
	"github.com/jwolfsohn/Atlas-Sentinel/cache"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
	"github.com/jwolfsohn/Atlas-Sentinel/source"
	"github.com/jwolfsohn/Atlas-Sentinel/storage"
)

const (
	DefaultNewsLimit = 10
	sentimentWindow  = 168 * time.Hour
)

// NewsQuery selects articles about a port, a region, or everything when both are empty.
type NewsQuery struct {
	PortID string
	Region string
	Limit  int
}

func (q NewsQuery) Key() string {
	scope := allRegions
	switch {
	case q.PortID != "":
		scope = q.PortID
	case q.Region != "":
		scope = q.Region
	}
	return fmt.Sprintf("%s_%d", scope, q.Limit)
}

type NewsPipeline struct {
	source  source.NewsSource
	ports   PortLookup
	cache   *cache.Cache[[]models.NewsArticle]
	history storage.HistoryStore
	now     func() time.Time
	// count decides how many articles a fetch of up to limit returns.
	count func(limit int) int
}

func NewNewsPipeline(src source.NewsSource, ports PortLookup, c *cache.Cache[[]models.NewsArticle], history storage.HistoryStore) *NewsPipeline {
	return &NewsPipeline{
		source:  src,
		ports:   ports,
		cache:   c,
		history: history,
		now:     time.Now,
		count:   func(limit int) int { return 1 + rand.Intn(limit) },
	}
}

// WithArticleCount overrides how many articles each fetch requests.
func (p *NewsPipeline) WithArticleCount(count func(limit int) int) *NewsPipeline {
	p.count = count
	return p
}

func (p *NewsPipeline) Ingest(ctx context.Context, q NewsQuery, force bool) ([]models.NewsArticle, error) {
	q.PortID = strings.TrimSpace(q.PortID)
	q.Region = strings.TrimSpace(q.Region)
	if q.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", ErrInvalidSelector, q.Limit)
	}
	if q.Limit == 0 {
		q.Limit = DefaultNewsLimit
	}
	if q.PortID != "" {
		if _, err := p.ports.Port(q.PortID); err != nil {
			return nil, err
		}
	}

	key := q.Key()
	if articles, ok := cached(ctx, p.cache, SignalNews, key, force); ok {
		return articles, nil
	}

	n := min(q.Limit, max(1, p.count(q.Limit)))
	articles := make([]models.NewsArticle, 0, n)
	for i := 0; i < n; i++ {
		article, err := p.source.NewsArticle(ctx, q.PortID, q.Region)
		if err != nil {
			p.record(ctx, articles)
			return fallback(ctx, p.cache, SignalNews, key, err, []models.NewsArticle{}), nil
		}
		articles = append(articles, article)
	}

	store(ctx, p.cache, key, articles)
	p.record(ctx, articles)
	return articles, nil
}

// Recent lists stored articles newer than window, newest first. With a ceiling,
// only articles scoring at or below it are kept.
func (p *NewsPipeline) Recent(ctx context.Context, portID string, window time.Duration, ceiling *float64) ([]models.NewsArticle, error) {
	if window <= 0 {
		window = defaultHistoryWindow
	}
	stored, err := p.history.Articles(ctx, portID, p.now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("load recent articles: %w", err)
	}
	if ceiling == nil {
		return stored, nil
	}
	out := make([]models.NewsArticle, 0, len(stored))
	for _, a := range stored {
		if a.SentimentScore <= *ceiling {
			out = append(out, a)
		}
	}
	return out, nil
}

// BySentiment groups the last week of articles by sentiment label.
func (p *NewsPipeline) BySentiment(ctx context.Context, portID string, negativeOnly bool) (models.SentimentGroups, error) {
	articles, err := p.Recent(ctx, portID, sentimentWindow, nil)
	if err != nil {
		return models.SentimentGroups{}, err
	}
	groups := models.SentimentGroups{Negative: []models.NewsArticle{}}
	if !negativeOnly {
		groups.Neutral = []models.NewsArticle{}
		groups.Positive = []models.NewsArticle{}
	}
	for _, a := range articles {
		switch analysis.LabelFor(a.SentimentScore) {
		case analysis.LabelNegative:
			groups.Negative = append(groups.Negative, a)
		case analysis.LabelPositive:
			if !negativeOnly {
				groups.Positive = append(groups.Positive, a)
			}
		default:
			if !negativeOnly {
				groups.Neutral = append(groups.Neutral, a)
			}
		}
	}
	return groups, nil
}

func (p *NewsPipeline) record(ctx context.Context, articles []models.NewsArticle) {
	for _, a := range articles {
		if err := p.history.SaveArticle(ctx, a); err != nil {
			historyFailed(SignalNews, err)
		}
	}
}
