package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jwolfsohn/Atlas-Sentinel/config"
	"github.com/jwolfsohn/Atlas-Sentinel/publish"
	"github.com/jwolfsohn/Atlas-Sentinel/risk"
)

func TestNewDefaultEngine(t *testing.T) {
	e, err := New(context.Background(), config.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()

	if got := len(e.Registry.Ports()); got != 10 {
		t.Errorf("ports = %d, want 10", got)
	}
	if got := len(e.Registry.Routes()); got != 45 {
		t.Errorf("routes = %d, want 45", got)
	}
	if e.Redis != nil {
		t.Error("redis client opened while disabled")
	}
	if _, ok := e.Publisher.(publish.Nop); !ok {
		t.Errorf("publisher = %T, want publish.Nop", e.Publisher)
	}
	if e.Aggregator.ModelName() != risk.ModelHeuristic {
		t.Errorf("model = %q", e.Aggregator.ModelName())
	}

	if err := e.Orchestrator.RefreshCycle(context.Background()); err != nil {
		t.Fatalf("RefreshCycle() error = %v", err)
	}
	counts, err := e.History.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if counts.TrafficPoints == 0 || counts.Articles == 0 {
		t.Errorf("history after refresh = %+v", counts)
	}
}

func TestNewSQLiteEngine(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "history.db")
	cfg.Risk.Model = risk.ModelRegression

	e, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()

	results, err := e.Orchestrator.Evaluate(context.Background(), false)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(results) != 45 {
		t.Errorf("results = %d, want 45", len(results))
	}
	for _, rr := range results {
		if rr.Assessment.Model != risk.ModelRegression {
			t.Fatalf("assessment model = %q", rr.Assessment.Model)
		}
	}
}

func TestNewRejectsBadRiskSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown model", func(c *config.Config) { c.Risk.Model = "oracle" }},
		{"zero weights", func(c *config.Config) {
			c.Risk.WeatherWeight, c.Risk.SentimentWeight, c.Risk.CongestionWeight, c.Risk.HistoricalWeight = 0, 0, 0, 0
		}},
		{"inverted thresholds", func(c *config.Config) { c.Risk.HighThreshold, c.Risk.MediumThreshold = 0.3, 0.6 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			e, err := New(context.Background(), cfg)
			if !errors.Is(err, risk.ErrInvalidConfiguration) {
				t.Fatalf("err = %v, want ErrInvalidConfiguration", err)
			}
			if e != nil {
				t.Error("engine returned alongside error")
			}
		})
	}
}

func TestCloseStopsRunner(t *testing.T) {
	e, err := New(context.Background(), config.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	e.Runner.Start(context.Background())
	e.Close()
	e.Close()
}
