package registry

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

func TestSeedDefaultRegistry(t *testing.T) {
	s := NewSeeded()

	if got := len(s.Ports()); got != 10 {
		t.Fatalf("ports = %d, want 10", got)
	}
	routes := s.Routes()
	if len(routes) != 45 {
		t.Fatalf("routes = %d, want 45", len(routes))
	}

	pairs := make(map[string]bool)
	for _, r := range routes {
		if r.OriginPortID == r.DestinationPortID {
			t.Errorf("self route %s", r.ID)
		}
		key := pairKey(r.OriginPortID, r.DestinationPortID)
		if pairs[key] {
			t.Errorf("duplicate pair %s", key)
		}
		pairs[key] = true
		if r.ID != r.OriginPortID+"-"+r.DestinationPortID {
			t.Errorf("route id %q does not match endpoints", r.ID)
		}
		if r.DistanceKM <= 0 || math.Abs(r.TypicalDurationHours-r.DistanceKM/25) > 1e-9 {
			t.Errorf("route %s distance=%v duration=%v", r.ID, r.DistanceKM, r.TypicalDurationHours)
		}
		if r.RiskLevel != models.RiskLow {
			t.Errorf("route %s starts at level %s", r.ID, r.RiskLevel)
		}
	}

	first := routes[0]
	if first.ID != "LAX-NYC" || first.Name != "Los Angeles → New York" {
		t.Errorf("first route = %s %q", first.ID, first.Name)
	}
}

func TestHaversine(t *testing.T) {
	if d := Haversine(10, 10, 10, 10); d != 0 {
		t.Errorf("same point distance = %v", d)
	}
	// Rotterdam to Hamburg is roughly 410 km.
	d := Haversine(51.92, 4.48, 53.55, 9.99)
	if d < 380 || d > 440 {
		t.Errorf("RTM-HAM distance = %v, want ~410", d)
	}
}

func TestLookups(t *testing.T) {
	s := NewSeeded()

	if _, err := s.Port("XXX"); !errors.Is(err, ErrUnknownPort) {
		t.Errorf("Port(XXX) error = %v, want ErrUnknownPort", err)
	}
	if _, err := s.Route("LAX-XXX"); !errors.Is(err, ErrUnknownRoute) {
		t.Errorf("Route(LAX-XXX) error = %v, want ErrUnknownRoute", err)
	}
	p, err := s.Port("SGP")
	if err != nil || p.Region != "Asia" || p.Capacity != 100 || p.WeatherZone != "Asia" {
		t.Errorf("Port(SGP) = %+v, %v", p, err)
	}
}

func TestUpsertRouteValidation(t *testing.T) {
	s := NewSeeded()

	tests := []struct {
		name  string
		route models.Route
		want  error
	}{
		{"self route", models.Route{ID: "LAX-LAX", OriginPortID: "LAX", DestinationPortID: "LAX"}, ErrInvalidRoute},
		{"reverse duplicate", models.Route{ID: "NYC-LAX", OriginPortID: "NYC", DestinationPortID: "LAX"}, ErrInvalidRoute},
		{"unknown endpoint", models.Route{ID: "LAX-ZZZ", OriginPortID: "LAX", DestinationPortID: "ZZZ"}, ErrUnknownPort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.UpsertRoute(tt.route); !errors.Is(err, tt.want) {
				t.Errorf("UpsertRoute() error = %v, want %v", err, tt.want)
			}
		})
	}

	r, _ := s.Route("LAX-NYC")
	r.RiskScore = 0.82
	r.RiskLevel = models.RiskHigh
	if err := s.UpsertRoute(r); err != nil {
		t.Fatalf("updating existing route failed: %v", err)
	}
	got, _ := s.Route("LAX-NYC")
	if got.RiskScore != 0.82 || got.RiskLevel != models.RiskHigh {
		t.Errorf("route not updated: %+v", got)
	}
	if len(s.Routes()) != 45 {
		t.Errorf("update changed route count to %d", len(s.Routes()))
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := NewSeeded()
	ports := s.Ports()
	ports[0].VesselCount = 999

	p, _ := s.Port(ports[0].ID)
	if p.VesselCount == 999 {
		t.Error("mutating a returned port changed the store")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewSeeded()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for _, r := range s.Routes() {
				r.RiskScore = float64(i) / 10
				_ = s.UpsertRoute(r)
				_, _ = s.Port(r.OriginPortID)
			}
		}(i)
	}
	wg.Wait()
	if len(s.Routes()) != 45 {
		t.Errorf("routes = %d after concurrent upserts", len(s.Routes()))
	}
}

func TestRegionsAndSort(t *testing.T) {
	s := NewSeeded()
	regions := Regions(s)
	want := []string{"Asia", "Europe", "Middle East", "North America"}
	if len(regions) != len(want) {
		t.Fatalf("Regions() = %v", regions)
	}
	for i := range want {
		if regions[i] != want[i] {
			t.Errorf("Regions()[%d] = %q, want %q", i, regions[i], want[i])
		}
	}
	if got := len(PortsInRegion(s, "Asia")); got != 4 {
		t.Errorf("Asia ports = %d, want 4", got)
	}

	connected := RoutesForPort(s, "LAX")
	if len(connected) != 9 {
		t.Fatalf("LAX routes = %d, want 9", len(connected))
	}
	for _, r := range connected {
		if !r.Connects("LAX") {
			t.Errorf("route %s does not touch LAX", r.ID)
		}
	}
	if got := RoutesForPort(s, "ZZZ"); len(got) != 0 {
		t.Errorf("unknown port routes = %d, want 0", len(got))
	}

	routes := []models.Route{
		{ID: "B", RiskScore: 0.5},
		{ID: "A", RiskScore: 0.5},
		{ID: "C", RiskScore: 0.9},
	}
	SortByRisk(routes)
	if routes[0].ID != "C" || routes[1].ID != "A" || routes[2].ID != "B" {
		t.Errorf("SortByRisk order = %v, %v, %v", routes[0].ID, routes[1].ID, routes[2].ID)
	}
}

func TestApplyTrafficKeepsNewest(t *testing.T) {
	s := NewSeeded()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := func(vessels int, at time.Time) models.TrafficSnapshot {
		return models.TrafficSnapshot{PortID: "LAX", VesselCount: vessels, Timestamp: at}
	}

	tests := []struct {
		name        string
		snap        models.TrafficSnapshot
		wantApplied bool
		wantVessels int
	}{
		{"first observation", snap(40, base), true, 40},
		{"older observation", snap(10, base.Add(-time.Minute)), false, 40},
		{"same timestamp", snap(11, base), false, 40},
		{"nothing observed", snap(12, time.Time{}), false, 40},
		{"newer observation", snap(55, base.Add(time.Minute)), true, 55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied, err := s.ApplyTraffic(tt.snap)
			if err != nil {
				t.Fatalf("ApplyTraffic: %v", err)
			}
			if applied != tt.wantApplied {
				t.Errorf("applied = %v, want %v", applied, tt.wantApplied)
			}
			if p, _ := s.Port("LAX"); p.VesselCount != tt.wantVessels {
				t.Errorf("VesselCount = %d, want %d", p.VesselCount, tt.wantVessels)
			}
		})
	}

	if _, err := s.ApplyTraffic(models.TrafficSnapshot{PortID: "ZZZ", Timestamp: base}); !errors.Is(err, ErrUnknownPort) {
		t.Errorf("unknown port err = %v, want ErrUnknownPort", err)
	}
}

func TestApplyTrafficConcurrentWritersKeepNewest(t *testing.T) {
	s := NewSeeded()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.ApplyTraffic(models.TrafficSnapshot{
				PortID:      "SGP",
				VesselCount: i,
				Timestamp:   base.Add(time.Duration(i) * time.Second),
			})
		}(i)
	}
	wg.Wait()

	p, _ := s.Port("SGP")
	if p.VesselCount != 49 || !p.UpdatedAt.Equal(base.Add(49*time.Second)) {
		t.Errorf("port = %d vessels at %s, want the newest observation", p.VesselCount, p.UpdatedAt)
	}
}
