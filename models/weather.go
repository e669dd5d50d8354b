package models

import (
	"strings"
	"time"
)

type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLight    Severity = "light"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityExtreme  Severity = "extreme"
)

// Level is the ordinal of the severity; unknown values rank as none.
func (s Severity) Level() int {
	switch s {
	case SeverityLight:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	case SeverityExtreme:
		return 4
	default:
		return 0
	}
}

func ParseSeverity(raw string) (Severity, bool) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case SeverityNone, SeverityLight, SeverityModerate, SeveritySevere, SeverityExtreme:
		return s, true
	}
	return SeverityNone, false
}

type WeatherAlert struct {
	Zone             string    `json:"weather_zone"`
	Type             string    `json:"type"`
	Severity         Severity  `json:"severity"`
	DurationHours    float64   `json:"duration_hours"`
	AffectedPortID   string    `json:"affected_port_id,omitempty"`
	AffectedPortName string    `json:"affected_port_name,omitempty"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	Timestamp        time.Time `json:"timestamp"`
}

// NoWeather is the neutral record used when a region has no alert.
var NoWeather = WeatherAlert{Type: "none", Severity: SeverityNone}

func (a WeatherAlert) IsActive(now time.Time) bool {
	return now.Sub(a.Timestamp) < time.Duration(a.DurationHours*float64(time.Hour))
}

// Key identifies the alert in durable history.
func (a WeatherAlert) Key() string {
	return a.Zone + "|" + a.Timestamp.UTC().Format(time.RFC3339Nano)
}
