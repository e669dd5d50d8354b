// Package publish fans scored assessments out to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

// Publisher delivers assessments and reports how many were delivered.
type Publisher interface {
	Publish(ctx context.Context, assessments []models.RiskAssessment) (int, error)
	Close() error
}

// Envelope is the wire form of one published assessment.
type Envelope struct {
	ID          string                `json:"id"`
	PublishedAt time.Time             `json:"published_at"`
	Assessment  models.RiskAssessment `json:"assessment"`
}

func encode(a models.RiskAssessment) ([]byte, error) {
	return json.Marshal(Envelope{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
		Assessment:  a,
	})
}

type Nop struct{}

func (Nop) Publish(ctx context.Context, assessments []models.RiskAssessment) (int, error) {
	return 0, nil
}

func (Nop) Close() error { return nil }

// Fanout publishes to every publisher and reports the largest delivered count.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, assessments []models.RiskAssessment) (int, error) {
	delivered := 0
	var errs []error
	for _, p := range f {
		n, err := p.Publish(ctx, assessments)
		if err != nil {
			errs = append(errs, err)
		}
		delivered = max(delivered, n)
	}
	return delivered, errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
