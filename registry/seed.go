package registry

import (
	"math"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

const (
	earthRadiusKM = 6371.0
	// averageSpeedKMH is the planning speed used for typical route duration.
	averageSpeedKMH = 25.0
)

func DefaultPorts() []models.Port {
	ports := []models.Port{
		{ID: "LAX", Name: "Los Angeles", Country: "USA", Latitude: 33.75, Longitude: -118.25, Region: "North America"},
		{ID: "NYC", Name: "New York", Country: "USA", Latitude: 40.68, Longitude: -74.04, Region: "North America"},
		{ID: "SHG", Name: "Shanghai", Country: "China", Latitude: 31.23, Longitude: 121.47, Region: "Asia"},
		{ID: "SGP", Name: "Singapore", Country: "Singapore", Latitude: 1.29, Longitude: 103.85, Region: "Asia"},
		{ID: "RTM", Name: "Rotterdam", Country: "Netherlands", Latitude: 51.92, Longitude: 4.48, Region: "Europe"},
		{ID: "HAM", Name: "Hamburg", Country: "Germany", Latitude: 53.55, Longitude: 9.99, Region: "Europe"},
		{ID: "DXB", Name: "Dubai", Country: "UAE", Latitude: 25.27, Longitude: 55.30, Region: "Middle East"},
		{ID: "HKG", Name: "Hong Kong", Country: "China", Latitude: 22.32, Longitude: 114.17, Region: "Asia"},
		{ID: "LON", Name: "London", Country: "UK", Latitude: 51.51, Longitude: -0.13, Region: "Europe"},
		{ID: "TOK", Name: "Tokyo", Country: "Japan", Latitude: 35.68, Longitude: 139.77, Region: "Asia"},
	}
	for i := range ports {
		ports[i].WeatherZone = ports[i].Region
		ports[i].Capacity = 100
	}
	return ports
}

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BuildRoutes connects every unordered pair of ports once, origin first in list order.
func BuildRoutes(ports []models.Port) []models.Route {
	routes := make([]models.Route, 0, len(ports)*(len(ports)-1)/2)
	for i, origin := range ports {
		for _, dest := range ports[i+1:] {
			distance := Haversine(origin.Latitude, origin.Longitude, dest.Latitude, dest.Longitude)
			routes = append(routes, models.Route{
				ID:                   models.RouteID(origin.ID, dest.ID),
				OriginPortID:         origin.ID,
				DestinationPortID:    dest.ID,
				Name:                 origin.Name + " → " + dest.Name,
				DistanceKM:           distance,
				TypicalDurationHours: distance / averageSpeedKMH,
				RiskLevel:            models.RiskLow,
			})
		}
	}
	return routes
}

// Seed loads ports and their full route mesh into store.
func Seed(store Store, ports []models.Port) error {
	for _, p := range ports {
		if err := store.UpsertPort(p); err != nil {
			return err
		}
	}
	for _, r := range BuildRoutes(ports) {
		if err := store.UpsertRoute(r); err != nil {
			return err
		}
	}
	return nil
}

// NewSeeded returns a memory store holding the default ports and routes.
func NewSeeded() *MemoryStore {
	s := NewMemoryStore()
	if err := Seed(s, DefaultPorts()); err != nil {
		panic(err)
	}
	return s
}
