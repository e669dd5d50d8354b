package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
	"github.com/jwolfsohn/Atlas-Sentinel/publish"
	"github.com/jwolfsohn/Atlas-Sentinel/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// Subscriber is the part of the Redis client the risk stream needs.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type riskUpdate struct {
	Type string           `json:"type"`
	Data publish.Envelope `json:"data"`
}

// streamFilter selects which published assessments a client receives.
type streamFilter struct {
	routes   map[string]bool
	minLevel models.RiskLevel
}

func levelRank(l models.RiskLevel) int {
	switch l {
	case models.RiskHigh:
		return 2
	case models.RiskMedium:
		return 1
	default:
		return 0
	}
}

// parseStreamFilter reads route_id (repeated or comma separated) and min_level.
func parseStreamFilter(c *gin.Context) (streamFilter, bool) {
	f := streamFilter{minLevel: models.RiskLow}
	for _, raw := range c.QueryArray("route_id") {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				if f.routes == nil {
					f.routes = make(map[string]bool)
				}
				f.routes[id] = true
			}
		}
	}
	if raw := c.Query("min_level"); raw != "" {
		level := models.RiskLevel(strings.ToLower(raw))
		switch level {
		case models.RiskLow, models.RiskMedium, models.RiskHigh:
			f.minLevel = level
		default:
			return f, false
		}
	}
	return f, true
}

func (f streamFilter) match(a models.RiskAssessment) bool {
	if f.routes != nil && !f.routes[a.RouteID] {
		return false
	}
	return levelRank(a.RiskLevel) >= levelRank(f.minLevel)
}

// LiveRiskWebSocket streams published risk assessments to an authenticated client.
// A nil subscriber means Redis is disabled and the stream is unavailable.
func LiveRiskWebSocket(sub Subscriber, channel string, authService *services.AuthService, checkOrigin func(*http.Request) bool) gin.HandlerFunc {
	upgrader := websocket.Upgrader{CheckOrigin: checkOrigin}
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token query parameter"})
			return
		}
		if _, err := authService.ValidateToken(tokenStr); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		filter, ok := parseStreamFilter(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_level must be low, medium or high"})
			return
		}
		if sub == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "risk stream requires redis"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// The client sends nothing but pongs; a read error means it went away.
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		pubsub := sub.Subscribe(ctx, channel)
		defer pubsub.Close()
		ch := pubsub.Channel()

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env publish.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Printf("ws dropped undecodable message: %v", err)
					continue
				}
				if !filter.match(env.Assessment) {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(riskUpdate{Type: "risk_update", Data: env}); err != nil {
					log.Printf("ws write error: %v", err)
					return
				}
			}
		}
	}
}
