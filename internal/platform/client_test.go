package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go-stock-analytics/internal/apperror"
	"go-stock-analytics/internal/config"
	"go-stock-analytics/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server, retries int) *Client {
	t.Helper()
	c, err := NewClient(Options{
		BaseURL:           srv.URL,
		AccessToken:       "shpat_test",
		APIVersion:        "2024-01",
		RequestsPerSecond: 1000,
		Burst:             10,
		MaxRetries:        retries,
	})
	require.NoError(t, err)
	return c
}

func TestListProducts_QueryAndDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-01/products.json", r.URL.Path)
		assert.Equal(t, "250", r.URL.Query().Get("limit"))
		assert.Equal(t, "42", r.URL.Query().Get("since_id"))
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"products":[{"id":43,"title":"Mug","vendor":"Acme","product_type":"Kitchen","tags":"blue, ceramic,blue",
			"variants":[{"id":7,"product_id":43,"title":"Default","sku":"MUG-1","price":"12.50","inventory_quantity":3,"position":1}]}]}`))
	}))
	defer srv.Close()

	products, err := newTestClient(t, srv, 0).ListProducts(context.Background(), PageRequest{Limit: 250, SinceID: 42})
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, int64(43), p.ID)
	assert.Equal(t, "Kitchen", p.ProductType)
	assert.Equal(t, []string{"blue", "ceramic"}, SplitTags(p.Tags))
	require.Len(t, p.Variants, 1)
	assert.True(t, decimal.RequireFromString("12.50").Equal(p.Variants[0].Price))
	assert.Equal(t, 3, p.Variants[0].InventoryQuantity)
}

func TestListOrders_StatusAndCreatedAtMin(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "any", r.URL.Query().Get("status"))
		assert.Equal(t, "2024-03-01T00:00:00Z", r.URL.Query().Get("created_at_min"))
		assert.Empty(t, r.URL.Query().Get("since_id"))
		_, _ = w.Write([]byte(`{"orders":[{"id":1001,"name":"#1001","created_at":"2024-03-02T10:00:00Z","fulfillment_status":null,
			"total_price":"20.00","line_items":[{"id":5,"product_id":null,"variant_id":null,"title":"Gift wrap","quantity":1,"price":"2.00"}]}]}`))
	}))
	defer srv.Close()

	orders, err := newTestClient(t, srv, 0).ListOrders(context.Background(), PageRequest{Limit: 50, CreatedAtMin: since})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Nil(t, orders[0].FulfillmentStatus)
	assert.Nil(t, orders[0].ProcessedAt)
	assert.Equal(t, "", FormatOptionalID(orders[0].LineItems[0].ProductID))
}

func TestListProducts_MalformedRecordKeepsRestOfPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"products":[
			{"id":10,"title":"Mug","variants":[{"id":101,"price":"5.00","inventory_quantity":2}]},
			{"id":20,"title":"Cup","variants":[{"id":201,"price":"oops","inventory_quantity":2}]},
			{"id":30,"title":"Bowl","variants":[{"id":301,"price":"7.00","inventory_quantity":"many"}]},
			{"id":40,"title":"Plate","variants":[{"id":401,"price":"9.00","inventory_quantity":1}]}]}`))
	}))
	defer srv.Close()

	products, err := newTestClient(t, srv, 0).ListProducts(context.Background(), PageRequest{Limit: 4})
	require.NoError(t, err)
	require.Len(t, products, 4)

	assert.Nil(t, products[0].Invalid)
	assert.Equal(t, "Mug", products[0].Title)
	assert.Nil(t, products[3].Invalid)
	assert.Equal(t, 1, products[3].Variants[0].InventoryQuantity)

	require.NotNil(t, products[1].Invalid)
	assert.Equal(t, int64(20), products[1].ID)
	assert.Equal(t, "20", products[1].Invalid.ExternalID)
	assert.Empty(t, products[1].Title)

	require.NotNil(t, products[2].Invalid)
	assert.Equal(t, int64(30), products[2].ID)
	assert.Equal(t, "decode", products[2].Invalid.Tag)
	assert.Contains(t, products[2].Invalid.Field, "inventory_quantity")
}

func TestListOrders_MalformedRecordKeepsRestOfPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orders":[
			{"id":1001,"created_at":"not a time","total_price":"20.00"},
			{"id":1002,"created_at":"2024-03-02T10:00:00Z","total_price":"20.00"}]}`))
	}))
	defer srv.Close()

	orders, err := newTestClient(t, srv, 0).ListOrders(context.Background(), PageRequest{Limit: 2})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.NotNil(t, orders[0].Invalid)
	assert.Equal(t, "order", orders[0].Invalid.Entity)
	assert.Equal(t, int64(1001), orders[0].ID)
	assert.Nil(t, orders[1].Invalid)
}

func TestCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":501}`))
	}))
	defer srv.Close()

	n, err := newTestClient(t, srv, 0).CountProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 501, n)
}

func TestRetriesThrottledRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"count":3}`))
	}))
	defer srv.Close()

	n, err := newTestClient(t, srv, 2).CountOrders(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"errors":"Invalid API key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 3).ListProducts(context.Background(), PageRequest{Limit: 10})
	require.Error(t, err)

	var connErr *apperror.ConnectivityError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "platform", connErr.Service)
	assert.Equal(t, "list products", connErr.Op)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"products":`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 0).ListProducts(context.Background(), PageRequest{})
	var connErr *apperror.ConnectivityError
	assert.True(t, errors.As(err, &connErr))
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, retryDelay(0, nil))
	assert.Equal(t, 2*time.Second, retryDelay(2, nil))
	assert.Equal(t, 10*time.Second, retryDelay(10, nil))
	assert.Equal(t, 3*time.Second, retryDelay(0, &StatusError{StatusCode: 429, RetryAfter: 3 * time.Second}))
}

func TestNewClient_RequiresDomain(t *testing.T) {
	_, err := NewClient(Options{APIVersion: "2024-01"})
	assert.Error(t, err)
}

func TestClientFactory_CachesPerShop(t *testing.T) {
	f := NewClientFactory(config.PlatformConfig{APIVersion: "2024-01"}, nil, nil)
	m := &model.Merchant{ShopDomain: "acme.myshopify.com", AccessToken: "a"}

	c1, err := f.ForMerchant(m)
	require.NoError(t, err)
	c2, err := f.ForMerchant(m)
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	m.AccessToken = "b"
	c3, err := f.ForMerchant(m)
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)
}
