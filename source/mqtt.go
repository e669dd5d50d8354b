package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/metrics"
	"github.com/jwolfsohn/Atlas-Sentinel/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// AISPayload is the per-port summary published by AIS gateways.
type AISPayload struct {
	TS              string   `json:"ts"`
	PortID          string   `json:"port_id"`
	VesselCount     int      `json:"vessel_count"`
	Capacity        int      `json:"capacity"`
	WaitTimeHours   float64  `json:"wait_time_hours"`
	CongestionIndex *float64 `json:"congestion_index,omitempty"`
}

// MQTTTrafficFeed keeps the latest AIS summary per port and answers traffic queries
// from it, deferring to a fallback source when no fresh summary exists.
type MQTTTrafficFeed struct {
	broker   string
	topic    string
	maxAge   time.Duration
	fallback TrafficSource
	client   mqtt.Client
	now      func() time.Time

	mu     sync.RWMutex
	latest map[string]models.TrafficSnapshot
}

func NewMQTTTrafficFeed(broker, topic string, maxAge time.Duration, fallback TrafficSource) *MQTTTrafficFeed {
	return &MQTTTrafficFeed{
		broker:   broker,
		topic:    topic,
		maxAge:   maxAge,
		fallback: fallback,
		now:      time.Now,
		latest:   make(map[string]models.TrafficSnapshot),
	}
}

// Connect subscribes to the AIS topic; reconnects resubscribe automatically.
func (f *MQTTTrafficFeed) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(f.broker)
	opts.SetClientID("atlas-ais-" + time.Now().Format("20060102150405"))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.OnConnect = func(client mqtt.Client) {
		token := client.Subscribe(f.topic, 0, f.handleMessage)
		token.Wait()
		if token.Error() != nil {
			log.Printf("mqtt subscribe error: %v", token.Error())
			return
		}
		log.Printf("ais feed subscribed to topic=%s", f.topic)
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("mqtt connection lost: %v", err)
	}

	f.client = mqtt.NewClient(opts)
	token := f.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt connect to %s timed out", f.broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", f.broker, err)
	}
	return nil
}

func (f *MQTTTrafficFeed) Close() {
	if f.client != nil {
		f.client.Disconnect(250)
	}
}

func (f *MQTTTrafficFeed) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := f.Apply(msg.Payload()); err != nil {
		log.Printf("ais message on %s rejected: %v", msg.Topic(), err)
	}
}

// Apply records one raw AIS payload.
func (f *MQTTTrafficFeed) Apply(raw []byte) error {
	metrics.AISMessagesReceived.Inc()

	var payload AISPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		metrics.AISMessagesFailed.Inc()
		return fmt.Errorf("invalid payload: %w", err)
	}
	payload.PortID = strings.TrimSpace(payload.PortID)
	if payload.PortID == "" {
		metrics.AISMessagesFailed.Inc()
		return errors.New("missing port_id")
	}
	if payload.VesselCount < 0 || payload.WaitTimeHours < 0 {
		metrics.AISMessagesFailed.Inc()
		return fmt.Errorf("negative metrics for port %s", payload.PortID)
	}

	ts := f.now().UTC()
	if payload.TS != "" {
		if parsed, err := time.Parse(time.RFC3339, payload.TS); err == nil {
			ts = parsed.UTC()
		}
	}
	capacity := payload.Capacity
	if capacity <= 0 {
		capacity = 100
	}
	index := float64(payload.VesselCount) / float64(capacity)
	if payload.CongestionIndex != nil {
		index = *payload.CongestionIndex
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.latest[payload.PortID]; ok && prev.Timestamp.After(ts) {
		return nil
	}
	f.latest[payload.PortID] = models.TrafficSnapshot{
		PortID:          payload.PortID,
		VesselCount:     payload.VesselCount,
		Capacity:        capacity,
		WaitTimeHours:   payload.WaitTimeHours,
		CongestionIndex: min(1, max(0, index)),
		Timestamp:       ts,
	}
	return nil
}

func (f *MQTTTrafficFeed) PortTraffic(ctx context.Context, port models.Port) (models.TrafficSnapshot, error) {
	f.mu.RLock()
	snap, ok := f.latest[port.ID]
	f.mu.RUnlock()

	if ok && f.now().Sub(snap.Timestamp) < f.maxAge {
		snap.PortName = port.Name
		snap.Latitude = port.Latitude
		snap.Longitude = port.Longitude
		return snap, nil
	}
	if f.fallback == nil {
		return models.TrafficSnapshot{}, fmt.Errorf("%w: no recent AIS summary for %s", ErrUnavailable, port.ID)
	}
	return f.fallback.PortTraffic(ctx, port)
}
