package source

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/models"

	"github.com/google/uuid"
)

var weatherZones = map[string][]string{
	"North America": {"storm", "hurricane", "fog"},
	"Asia":          {"typhoon", "storm", "fog"},
	"Europe":        {"storm", "wind", "ice"},
	"Middle East":   {"wind", "storm"},
}

var (
	negativeTemplates = []string{
		"Port {port} experiencing delays due to {issue}",
		"Weather alert: severe storm affecting {region} shipping lanes",
		"Congestion at {port} port reaches critical levels",
		"Supply chain disruption reported in {region}",
		"Vessel backlog at {port} causing extended wait times",
		"Storm system impacting {region} maritime operations",
	}
	positiveTemplates = []string{
		"Port {port} operations running smoothly",
		"Improved efficiency at {port} reduces wait times",
	}
	issues      = []string{"congestion", "weather delays", "equipment failure", "labor strike", "backlog"}
	newsOutlets = []string{"Maritime News", "Shipping Times", "Port Authority", "Trade Journal"}

	severities       = []models.Severity{models.SeverityLight, models.SeverityModerate, models.SeveritySevere, models.SeverityExtreme}
	severityWeights  = []float64{0.3, 0.4, 0.25, 0.05}
	congestedHubPort = map[string]bool{"LAX": true, "SHG": true, "SGP": true}
)

// Simulator produces synthetic traffic, weather and news for a fixed port list.
// Output is reproducible for a given seed and call order.
type Simulator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	ports []models.Port
	now   func() time.Time
}

func NewSimulator(seed int64, ports []models.Port) *Simulator {
	cp := make([]models.Port, len(ports))
	copy(cp, ports)
	return &Simulator{
		rng:   rand.New(rand.NewSource(seed)),
		ports: cp,
		now:   time.Now,
	}
}

func (s *Simulator) PortTraffic(ctx context.Context, port models.Port) (models.TrafficSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.TrafficSnapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, ok := s.port(port.ID); !ok {
		return models.TrafficSnapshot{}, fmt.Errorf("%w: no feed for port %q", ErrUnavailable, port.ID)
	}

	s.mu.Lock()
	var base float64
	if congestedHubPort[port.ID] {
		base = s.uniform(0.2, 0.8)
	} else {
		base = s.uniform(0.1, 0.5)
	}
	wait := math.Max(0, base*48+s.uniform(-10, 10))
	s.mu.Unlock()

	return models.TrafficSnapshot{
		PortID:          port.ID,
		PortName:        port.Name,
		VesselCount:     int(30 + base*40),
		Capacity:        100,
		WaitTimeHours:   round(wait, 2),
		CongestionIndex: round(base, 3),
		Latitude:        port.Latitude,
		Longitude:       port.Longitude,
		Timestamp:       s.now().UTC(),
	}, nil
}

func (s *Simulator) WeatherAlert(ctx context.Context, region string) (models.WeatherAlert, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherAlert{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.ports) == 0 {
		return models.WeatherAlert{}, fmt.Errorf("%w: simulator has no ports", ErrUnavailable)
	}
	if region == "" {
		region = s.pickRegion()
	}
	types, ok := weatherZones[region]
	if !ok {
		types = []string{"storm"}
	}
	weatherType := types[s.rng.Intn(len(types))]
	severity := severities[s.weighted(severityWeights)]

	var duration float64
	if severity == models.SeveritySevere || severity == models.SeverityExtreme {
		duration = s.uniform(6, 72)
	} else {
		duration = s.uniform(2, 24)
	}

	affected := s.ports[0]
	if inRegion := s.portsIn(region); len(inRegion) > 0 {
		affected = inRegion[s.rng.Intn(len(inRegion))]
	}

	return models.WeatherAlert{
		Zone:             region,
		Type:             weatherType,
		Severity:         severity,
		DurationHours:    round(duration, 1),
		AffectedPortID:   affected.ID,
		AffectedPortName: affected.Name,
		Latitude:         affected.Latitude,
		Longitude:        affected.Longitude,
		Timestamp:        s.now().UTC(),
	}, nil
}

func (s *Simulator) NewsArticle(ctx context.Context, portID, region string) (models.NewsArticle, error) {
	if err := ctx.Err(); err != nil {
		return models.NewsArticle{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.ports) == 0 {
		return models.NewsArticle{}, fmt.Errorf("%w: simulator has no ports", ErrUnavailable)
	}
	var port models.Port
	switch {
	case portID != "":
		p, ok := s.port(portID)
		if !ok {
			return models.NewsArticle{}, fmt.Errorf("%w: no news feed for port %q", ErrUnavailable, portID)
		}
		port = p
	case region != "" && len(s.portsIn(region)) > 0:
		candidates := s.portsIn(region)
		port = candidates[s.rng.Intn(len(candidates))]
	default:
		port = s.ports[s.rng.Intn(len(s.ports))]
	}

	var template string
	var score float64
	if s.rng.Float64() < 0.6 {
		template = negativeTemplates[s.rng.Intn(len(negativeTemplates))]
		template = strings.ReplaceAll(template, "{issue}", issues[s.rng.Intn(len(issues))])
		score = s.uniform(-0.8, -0.2)
	} else {
		template = positiveTemplates[s.rng.Intn(len(positiveTemplates))]
		score = s.uniform(0.2, 0.8)
	}
	content := strings.NewReplacer("{port}", port.Name, "{region}", port.Region).Replace(template)

	return models.NewsArticle{
		ID:             uuid.NewString(),
		Title:          headline(content),
		Content:        content,
		Source:         newsOutlets[s.rng.Intn(len(newsOutlets))],
		PortID:         port.ID,
		PortName:       port.Name,
		Region:         port.Region,
		SentimentScore: round(score, 3),
		Timestamp:      s.now().UTC(),
	}, nil
}

func (s *Simulator) port(id string) (models.Port, bool) {
	for _, p := range s.ports {
		if p.ID == id {
			return p, true
		}
	}
	return models.Port{}, false
}

func (s *Simulator) portsIn(region string) []models.Port {
	var out []models.Port
	for _, p := range s.ports {
		if p.Region == region {
			out = append(out, p)
		}
	}
	return out
}

func (s *Simulator) pickRegion() string {
	regions := []string{"Asia", "Europe", "Middle East", "North America"}
	return regions[s.rng.Intn(len(regions))]
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Simulator) weighted(weights []float64) int {
	r := s.rng.Float64()
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}

func headline(content string) string {
	if len(content) <= 80 {
		return content
	}
	return content[:80] + "..."
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
