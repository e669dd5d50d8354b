package models

import "time"

type Port struct {
	ID              string    `gorm:"column:port_id;primaryKey" json:"port_id"`
	Name            string    `gorm:"column:name" json:"port_name"`
	Country         string    `gorm:"column:country" json:"country"`
	Latitude        float64   `gorm:"column:lat" json:"latitude"`
	Longitude       float64   `gorm:"column:lng" json:"longitude"`
	Region          string    `gorm:"column:region" json:"region"`
	WeatherZone     string    `gorm:"column:weather_zone" json:"weather_zone"`
	Capacity        int       `gorm:"column:capacity;default:100" json:"capacity"`
	VesselCount     int       `gorm:"column:vessel_count" json:"vessel_count"`
	WaitTimeHours   float64   `gorm:"column:wait_time_hours" json:"wait_time_hours"`
	CongestionIndex float64   `gorm:"column:congestion_index" json:"congestion_index"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Port) TableName() string { return "ports" }

type Route struct {
	ID                   string    `gorm:"column:route_id;primaryKey" json:"route_id"`
	OriginPortID         string    `gorm:"column:origin_port_id;index" json:"origin_port_id"`
	DestinationPortID    string    `gorm:"column:destination_port_id;index" json:"destination_port_id"`
	Name                 string    `gorm:"column:name" json:"route_name"`
	DistanceKM           float64   `gorm:"column:distance_km" json:"distance_km"`
	TypicalDurationHours float64   `gorm:"column:typical_duration_hours" json:"typical_duration_hours"`
	RiskScore            float64   `gorm:"column:risk_score" json:"risk_score"`
	RiskLevel            RiskLevel `gorm:"column:risk_level;default:low" json:"risk_level"`
	ActiveShipments      int       `gorm:"column:active_shipments" json:"active_shipments"`
	UpdatedAt            time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Route) TableName() string { return "routes" }

// RouteID is the canonical identifier for the route between two ports.
func RouteID(originID, destinationID string) string {
	return originID + "-" + destinationID
}

// Connects reports whether the route touches the given port.
func (r Route) Connects(portID string) bool {
	return r.OriginPortID == portID || r.DestinationPortID == portID
}
