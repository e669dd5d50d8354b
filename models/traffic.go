package models

import "time"

type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// Rank orders trends by how much they worsen congestion.
func (t Trend) Rank() int {
	switch t {
	case TrendIncreasing:
		return 2
	case TrendStable:
		return 1
	default:
		return 0
	}
}

type TrafficSnapshot struct {
	PortID              string    `json:"port_id"`
	PortName            string    `json:"port_name"`
	VesselCount         int       `json:"vessel_count"`
	Capacity            int       `json:"capacity"`
	WaitTimeHours       float64   `json:"wait_time_hours"`
	CongestionIndex     float64   `json:"congestion_index"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	Timestamp           time.Time `json:"timestamp"`
	PreviousVesselCount *int      `json:"previous_vessel_count,omitempty"`
	Trend               Trend     `json:"trend"`
}

type CongestionMetrics struct {
	CongestionIndex     float64 `json:"congestion_index"`
	VesselCount         int     `json:"vessel_count"`
	WaitTimeHours       float64 `json:"wait_time_hours"`
	CapacityUtilization float64 `json:"capacity_utilization"`
	Trend               Trend   `json:"trend"`
}

type TrafficHistoryPoint struct {
	PortID          string    `gorm:"column:port_id;primaryKey" json:"port_id"`
	Timestamp       time.Time `gorm:"column:ts;primaryKey" json:"timestamp"`
	VesselCount     int       `gorm:"column:vessel_count" json:"vessel_count"`
	WaitTimeHours   float64   `gorm:"column:wait_time_hours" json:"wait_time_hours"`
	CongestionIndex float64   `gorm:"column:congestion_index" json:"congestion_index"`
}

func (TrafficHistoryPoint) TableName() string { return "traffic_history" }

func (s TrafficSnapshot) HistoryPoint() TrafficHistoryPoint {
	return TrafficHistoryPoint{
		PortID:          s.PortID,
		Timestamp:       s.Timestamp,
		VesselCount:     s.VesselCount,
		WaitTimeHours:   s.WaitTimeHours,
		CongestionIndex: s.CongestionIndex,
	}
}
