// Package analysis derives sentiment and congestion metrics from raw signal records.
package analysis

import (
	"math"
	"strings"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

// UrgencyKeywords mark text that points at an operational disruption.
var UrgencyKeywords = []string{
	"delay", "disruption", "closure", "shutdown", "strike",
	"congestion", "backlog", "shortage", "crisis", "emergency",
	"blockade", "storm", "hurricane", "typhoon", "flood",
	"accident", "incident", "breakdown", "failure", "outage",
}

var (
	negativeWords = []string{"delay", "disruption", "problem", "issue", "crisis", "failure"}
	positiveWords = []string{"smooth", "efficient", "resolved", "improved", "success"}
)

type Label string

const (
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
	LabelPositive Label = "positive"
)

type TextSentiment struct {
	Score      float64 `json:"sentiment_score"`
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// SentimentAnalyzer scores article text with keyword lexicons.
type SentimentAnalyzer struct {
	urgency []string
}

func NewSentimentAnalyzer() *SentimentAnalyzer {
	return &SentimentAnalyzer{urgency: UrgencyKeywords}
}

func (a *SentimentAnalyzer) AnalyzeText(text string) TextSentiment {
	lower := strings.ToLower(text)
	negative := countMatches(lower, negativeWords)
	positive := countMatches(lower, positiveWords)

	var score float64
	switch {
	case negative > positive:
		score = -0.5 - float64(negative)*0.1
	case positive > negative:
		score = 0.3 + float64(positive)*0.1
	}
	score = math.Max(-1, math.Min(1, score))

	return TextSentiment{Score: score, Label: LabelFor(score), Confidence: 0.75}
}

// LabelFor buckets a score into negative (< -0.3), positive (> 0.3) or neutral.
func LabelFor(score float64) Label {
	switch {
	case score < -0.3:
		return LabelNegative
	case score > 0.3:
		return LabelPositive
	default:
		return LabelNeutral
	}
}

// UrgencyCount returns how many distinct urgency keywords occur in text.
func (a *SentimentAnalyzer) UrgencyCount(text string) int {
	return countMatches(strings.ToLower(text), a.urgency)
}

// AnalyzeArticles summarizes a batch. Articles with text are scored from their text;
// articles without text keep the score they arrived with.
func (a *SentimentAnalyzer) AnalyzeArticles(articles []models.NewsArticle) models.SentimentSummary {
	if len(articles) == 0 {
		return models.SentimentSummary{IndividualScores: []float64{}}
	}

	scores := make([]float64, 0, len(articles))
	urgency := 0
	var total float64
	for _, article := range articles {
		text := strings.TrimSpace(article.Title + " " + article.Content)
		score := math.Max(-1, math.Min(1, article.SentimentScore))
		if text != "" {
			score = a.AnalyzeText(text).Score
			urgency += a.UrgencyCount(text)
		}
		scores = append(scores, score)
		total += score
	}

	return models.SentimentSummary{
		SentimentScore:   total / float64(len(scores)),
		ArticleCount:     len(articles),
		UrgencyKeywords:  urgency,
		IndividualScores: scores,
	}
}

type RegionSentiment struct {
	Region string `json:"region"`
	models.SentimentSummary
}

// AnalyzeRegion summarizes the articles gathered for one region.
func (a *SentimentAnalyzer) AnalyzeRegion(region string, articles []models.NewsArticle) RegionSentiment {
	return RegionSentiment{Region: region, SentimentSummary: a.AnalyzeArticles(articles)}
}

func countMatches(lower string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			n++
		}
	}
	return n
}
