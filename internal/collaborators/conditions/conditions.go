// Package conditions is the client for the licence conditions calculation engine.
package conditions

import (
	"context"
	"fmt"
	"strings"
	"sync"

	commonhttp "github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/http"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

// Calculator derives the legally required licence conditions from the
// confirmed felling and restocking details.
type Calculator interface {
	Calculate(ctx context.Context, facts *models.ConfirmedFellingAndRestocking, performingUserID string) ([]models.LicenceCondition, error)
}

type calculateRequest struct {
	ApplicationID    string                      `json:"applicationId"`
	PerformingUserID string                      `json:"performingUserId"`
	Compartments     []models.CompartmentFelling `json:"compartments"`
}

type calculateResponse struct {
	Conditions []models.LicenceCondition `json:"conditions"`
}

// HTTPCalculator calls the engine's REST endpoint.
type HTTPCalculator struct {
	baseURL string
	client  *commonhttp.Client
}

func NewHTTPCalculator(baseURL string, client *commonhttp.Client) *HTTPCalculator {
	return &HTTPCalculator{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (c *HTTPCalculator) Calculate(ctx context.Context, facts *models.ConfirmedFellingAndRestocking, performingUserID string) ([]models.LicenceCondition, error) {
	if facts == nil {
		return nil, fmt.Errorf("conditions: no felling and restocking details")
	}

	req := calculateRequest{
		ApplicationID:    facts.ApplicationID,
		PerformingUserID: performingUserID,
		Compartments:     facts.Compartments,
	}
	var resp calculateResponse
	if err := c.client.PostJSON(ctx, c.baseURL+"/conditions/calculate", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("conditions engine: %w", err)
	}
	return resp.Conditions, nil
}

// FakeCalculator returns one condition per compartment, or a configured error.
type FakeCalculator struct {
	mu    sync.Mutex
	err   error
	calls int
}

func NewFakeCalculator() *FakeCalculator {
	return &FakeCalculator{}
}

// FailWith makes subsequent calls return err. A nil err clears it.
func (f *FakeCalculator) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls returns the number of Calculate invocations.
func (f *FakeCalculator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeCalculator) Calculate(ctx context.Context, facts *models.ConfirmedFellingAndRestocking, performingUserID string) ([]models.LicenceCondition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}

	out := make([]models.LicenceCondition, 0, len(facts.Compartments))
	for i, c := range facts.Compartments {
		out = append(out, models.LicenceCondition{
			Number:                i + 1,
			Lines:                 []string{fmt.Sprintf("Restock compartment %s within 2 years of felling.", c.CompartmentName)},
			AppliesToCompartments: []string{c.CompartmentID},
		})
	}
	return out, nil
}
