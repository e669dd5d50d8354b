package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/pipeline"
	"github.com/jwolfsohn/Atlas-Sentinel/registry"

	"github.com/gin-gonic/gin"
)

// respondError maps engine errors to a status code and a JSON error body.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrUnknownPort), errors.Is(err, registry.ErrUnknownRoute):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrInvalidSelector):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// queryHours reads an hour count, falling back to def when absent.
func queryHours(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	h, err := strconv.Atoi(raw)
	if err != nil || h <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return h, nil
}

// queryCount reads a non-negative integer, falling back to def when absent.
func queryCount(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func queryFloat(c *gin.Context, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &v, nil
}

func hours(n int) time.Duration {
	return time.Duration(n) * time.Hour
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
