package conditions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonhttp "github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/http"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

func facts() *models.ConfirmedFellingAndRestocking {
	return &models.ConfirmedFellingAndRestocking{
		ApplicationID: "app-1",
		Compartments: []models.CompartmentFelling{
			{CompartmentID: "c1", CompartmentName: "North Wood", FellingOperation: "ClearFelling", AreaHectares: 2.5},
			{CompartmentID: "c2", CompartmentName: "South Wood", FellingOperation: "Thinning", AreaHectares: 1},
		},
	}
}

func TestHTTPCalculator_Calculate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/conditions/calculate", r.URL.Path)

		var req calculateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "app-1", req.ApplicationID)
		assert.Equal(t, "ao-1", req.PerformingUserID)
		assert.Len(t, req.Compartments, 2)

		_ = json.NewEncoder(w).Encode(calculateResponse{Conditions: []models.LicenceCondition{
			{Number: 1, Lines: []string{"Restock within 2 years"}, AppliesToCompartments: []string{"c1"}},
		}})
	}))
	defer srv.Close()

	calc := NewHTTPCalculator(srv.URL+"/", commonhttp.NewClient(time.Second))
	got, err := calc.Calculate(context.Background(), facts(), "ao-1")

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"c1"}, got[0].AppliesToCompartments)
}

func TestHTTPCalculator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	calc := NewHTTPCalculator(srv.URL, commonhttp.NewClient(time.Second))
	_, err := calc.Calculate(context.Background(), facts(), "ao-1")

	var statusErr *commonhttp.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestHTTPCalculator_NilFacts(t *testing.T) {
	calc := NewHTTPCalculator("http://unused", commonhttp.NewClient(time.Second))
	_, err := calc.Calculate(context.Background(), nil, "ao-1")
	assert.Error(t, err)
}

func TestFakeCalculator(t *testing.T) {
	f := NewFakeCalculator()

	got, err := f.Calculate(context.Background(), facts(), "ao-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, got[1].Number)

	f.FailWith(errors.New("engine offline"))
	_, err = f.Calculate(context.Background(), facts(), "ao-1")
	assert.Error(t, err)
	assert.Equal(t, 2, f.Calls())
}
