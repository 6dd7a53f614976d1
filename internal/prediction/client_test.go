package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-stock-analytics/internal/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestock_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/predictions/restock", r.URL.Path)

		var items []Item
		require.NoError(t, json.NewDecoder(r.Body).Decode(&items))
		require.Len(t, items, 1)
		assert.Equal(t, 14, items[0].LeadTime)

		_, _ = w.Write([]byte(`{"success":true,"predictions":[{"productId":"1","variantId":"11","name":"Mug","currentStock":4,
			"recommendedOrderQuantity":40,"daysUntilStockout":2.5,"restockUrgency":"high","confidenceScore":0.8,"category":"Kitchen"}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, nil)
	preds, err := c.Restock(context.Background(), []Item{{ID: "1:11", ProductID: "1", VariantID: "11", LeadTime: 14}})
	require.NoError(t, err)
	require.Len(t, preds, 1)

	p := preds[0]
	assert.Equal(t, 40, p.RecommendedOrderQuantity)
	require.NotNil(t, p.VariantID)
	assert.Equal(t, "11", *p.VariantID)
	require.NotNil(t, p.DaysUntilStockout)
	assert.Equal(t, 2.5, *p.DaysUntilStockout)
	assert.Nil(t, p.Reasoning)
	assert.Nil(t, p.SalesVelocity)
}

func TestRestock_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unsuccessful", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"error":"model offline"}`))
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"success":false}`))
		}},
		{"malformed", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"success":true,"predictions":[]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewHTTPClient(srv.URL, 50*time.Millisecond, nil)
			preds, err := c.Restock(context.Background(), []Item{{ID: "x"}})
			assert.Nil(t, preds)

			var connErr *apperror.ConnectivityError
			require.True(t, errors.As(err, &connErr))
			assert.Equal(t, "prediction", connErr.Service)
		})
	}
}

func TestRestock_UnsuccessfulWrapsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, time.Second, nil).Restock(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnsuccessful)
}

func TestSimulate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/predictions/simulate", r.URL.Path)
		var req simulateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Scenarios, 4)
		_, _ = w.Write([]byte(`{"success":true,"results":{"baseline":{"stockouts":1},"high_demand":{"stockouts":3}}}`))
	}))
	defer srv.Close()

	results, err := NewHTTPClient(srv.URL, time.Second, nil).Simulate(context.Background(), []Item{{ID: "a"}}, DefaultScenarios())
	require.NoError(t, err)
	assert.JSONEq(t, `{"stockouts":3}`, string(results["high_demand"]))
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy","version":"1.0.0"}`))
	}))
	defer srv.Close()

	h, err := NewHTTPClient(srv.URL+"/", time.Second, nil).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
}

func TestDefaultScenarios(t *testing.T) {
	s := DefaultScenarios()
	require.Len(t, s, 4)
	assert.Equal(t, "baseline", s[0].Name)
	assert.Equal(t, 2.0, s[3].DemandChange)
}
