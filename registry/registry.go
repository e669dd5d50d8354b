// Package registry owns the port and route records. Callers always receive copies.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

var (
	ErrUnknownPort  = errors.New("unknown port")
	ErrUnknownRoute = errors.New("unknown route")
	ErrInvalidRoute = errors.New("invalid route")
)

type Store interface {
	Port(id string) (models.Port, error)
	Route(id string) (models.Route, error)
	Ports() []models.Port
	Routes() []models.Route
	UpsertPort(port models.Port) error
	UpsertRoute(route models.Route) error
	// ApplyTraffic copies live metrics from snap onto the port when snap is newer
	// than what the port already holds, and reports whether it did.
	ApplyTraffic(snap models.TrafficSnapshot) (bool, error)
}

type MemoryStore struct {
	mu         sync.RWMutex
	ports      map[string]models.Port
	routes     map[string]models.Route
	portOrder  []string
	routeOrder []string
	pairs      map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ports:  make(map[string]models.Port),
		routes: make(map[string]models.Route),
		pairs:  make(map[string]string),
	}
}

func (s *MemoryStore) Port(id string) (models.Port, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.ports[id]
	if !ok {
		return models.Port{}, fmt.Errorf("%w: %q", ErrUnknownPort, id)
	}
	return p, nil
}

func (s *MemoryStore) Route(id string) (models.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routes[id]
	if !ok {
		return models.Route{}, fmt.Errorf("%w: %q", ErrUnknownRoute, id)
	}
	return r, nil
}

// Ports returns ports in insertion order.
func (s *MemoryStore) Ports() []models.Port {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Port, 0, len(s.portOrder))
	for _, id := range s.portOrder {
		out = append(out, s.ports[id])
	}
	return out
}

// Routes returns routes in insertion order.
func (s *MemoryStore) Routes() []models.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Route, 0, len(s.routeOrder))
	for _, id := range s.routeOrder {
		out = append(out, s.routes[id])
	}
	return out
}

func (s *MemoryStore) UpsertPort(port models.Port) error {
	if strings.TrimSpace(port.ID) == "" {
		return fmt.Errorf("%w: empty port id", ErrUnknownPort)
	}
	if port.Capacity <= 0 {
		port.Capacity = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ports[port.ID]; !ok {
		s.portOrder = append(s.portOrder, port.ID)
	}
	s.ports[port.ID] = port
	return nil
}

func (s *MemoryStore) ApplyTraffic(snap models.TrafficSnapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	port, ok := s.ports[snap.PortID]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownPort, snap.PortID)
	}
	if snap.Timestamp.IsZero() || !snap.Timestamp.After(port.UpdatedAt) {
		return false, nil
	}
	port.VesselCount = snap.VesselCount
	port.WaitTimeHours = snap.WaitTimeHours
	port.CongestionIndex = snap.CongestionIndex
	port.UpdatedAt = snap.Timestamp
	s.ports[port.ID] = port
	return true, nil
}

// UpsertRoute stores a route between two known ports. A second route for the same
// unordered port pair is rejected.
func (s *MemoryStore) UpsertRoute(route models.Route) error {
	if route.OriginPortID == route.DestinationPortID {
		return fmt.Errorf("%w: %q connects a port to itself", ErrInvalidRoute, route.ID)
	}
	if route.ID == "" {
		route.ID = models.RouteID(route.OriginPortID, route.DestinationPortID)
	}
	if route.RiskLevel == "" {
		route.RiskLevel = models.RiskLow
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range []string{route.OriginPortID, route.DestinationPortID} {
		if _, ok := s.ports[id]; !ok {
			return fmt.Errorf("%w: %q on route %q", ErrUnknownPort, id, route.ID)
		}
	}
	key := pairKey(route.OriginPortID, route.DestinationPortID)
	if existing, ok := s.pairs[key]; ok && existing != route.ID {
		return fmt.Errorf("%w: ports already connected by %q", ErrInvalidRoute, existing)
	}
	if _, ok := s.routes[route.ID]; !ok {
		s.routeOrder = append(s.routeOrder, route.ID)
	}
	s.pairs[key] = route.ID
	s.routes[route.ID] = route
	return nil
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// Regions lists the distinct port regions in sorted order.
func Regions(store Store) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range store.Ports() {
		if p.Region == "" {
			continue
		}
		if _, ok := seen[p.Region]; ok {
			continue
		}
		seen[p.Region] = struct{}{}
		out = append(out, p.Region)
	}
	sort.Strings(out)
	return out
}

// PortsInRegion returns the ports tagged with region.
func PortsInRegion(store Store, region string) []models.Port {
	var out []models.Port
	for _, p := range store.Ports() {
		if p.Region == region {
			out = append(out, p)
		}
	}
	return out
}

// RoutesForPort returns the routes that start or end at portID, riskiest first.
func RoutesForPort(store Store, portID string) []models.Route {
	var out []models.Route
	for _, r := range store.Routes() {
		if r.Connects(portID) {
			out = append(out, r)
		}
	}
	SortByRisk(out)
	return out
}

// SortByRisk orders routes by risk score, highest first, ties by id.
func SortByRisk(routes []models.Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].RiskScore != routes[j].RiskScore {
			return routes[i].RiskScore > routes[j].RiskScore
		}
		return routes[i].ID < routes[j].ID
	})
}
