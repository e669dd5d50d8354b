package models

import "time"

type NewsArticle struct {
	ID             string    `json:"article_id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Source         string    `json:"source"`
	PortID         string    `json:"port_id,omitempty"`
	PortName       string    `json:"port_name,omitempty"`
	Region         string    `json:"region,omitempty"`
	SentimentScore float64   `json:"sentiment_score"`
	Timestamp      time.Time `json:"timestamp"`
}

type SentimentSummary struct {
	SentimentScore   float64   `json:"sentiment_score"`
	ArticleCount     int       `json:"article_count"`
	UrgencyKeywords  int       `json:"urgency_keywords"`
	IndividualScores []float64 `json:"individual_scores"`
}

type SentimentGroups struct {
	Negative []NewsArticle `json:"negative"`
	Neutral  []NewsArticle `json:"neutral,omitempty"`
	Positive []NewsArticle `json:"positive,omitempty"`
}
