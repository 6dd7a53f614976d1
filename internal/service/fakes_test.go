package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go-stock-analytics/internal/apperror"
	"go-stock-analytics/internal/model"
	"go-stock-analytics/internal/platform"
	"go-stock-analytics/internal/prediction"

	"github.com/shopspring/decimal"
)

// fakePlatform serves in-memory listings with since_id paging
type fakePlatform struct {
	mu           sync.Mutex
	products     []platform.Product
	orders       []platform.Order
	countErr     error
	failListCall int // 1-based list call that fails; 0 never fails
	listCalls    int
	countCalls   int
	createdAtMin time.Time
}

func (f *fakePlatform) ForMerchant(*model.Merchant) (platform.Platform, error) { return f, nil }

func (f *fakePlatform) CountProducts(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.products), nil
}

func (f *fakePlatform) ListProducts(_ context.Context, page platform.PageRequest) ([]platform.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.nextCall("list products"); err != nil {
		return nil, err
	}
	var out []platform.Product
	for _, p := range f.products {
		if p.ID > page.SinceID && len(out) < page.Limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlatform) CountOrders(_ context.Context, createdAtMin time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	f.createdAtMin = createdAtMin
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.orders), nil
}

func (f *fakePlatform) ListOrders(_ context.Context, page platform.PageRequest) ([]platform.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.nextCall("list orders"); err != nil {
		return nil, err
	}
	var out []platform.Order
	for _, o := range f.orders {
		if o.ID > page.SinceID && len(out) < page.Limit {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakePlatform) nextCall(op string) error {
	f.listCalls++
	if f.failListCall > 0 && f.listCalls == f.failListCall {
		return &apperror.ConnectivityError{Service: "platform", Op: op, Err: context.DeadlineExceeded}
	}
	return nil
}

func rawProducts(n int) []platform.Product {
	out := make([]platform.Product, 0, n)
	for i := 1; i <= n; i++ {
		id := int64(i * 10)
		out = append(out, platform.Product{
			ID:          id,
			Title:       "Product",
			ProductType: "Kitchen",
			Tags:        "a, b",
			Variants: []platform.Variant{{
				ID:                id*100 + 1,
				ProductID:         id,
				SKU:               "SKU",
				Price:             decimal.RequireFromString("5.00"),
				InventoryQuantity: 20,
				Position:          1,
			}},
		})
	}
	return out
}

// fakeEvents records published events
type fakeEvents struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEvents) Publish(_ string, eventType string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

func (f *fakeEvents) Types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.events...)
}

// fakePredictor returns canned predictions or an error
type fakePredictor struct {
	predictions []prediction.Prediction
	results     map[string]json.RawMessage
	err         error

	gotItems     []prediction.Item
	gotScenarios []prediction.Scenario
}

func (f *fakePredictor) Restock(_ context.Context, items []prediction.Item) ([]prediction.Prediction, error) {
	f.gotItems = items
	return f.predictions, f.err
}

func (f *fakePredictor) Simulate(_ context.Context, items []prediction.Item, scenarios []prediction.Scenario) (map[string]json.RawMessage, error) {
	f.gotItems = items
	f.gotScenarios = scenarios
	return f.results, f.err
}

func (f *fakePredictor) Health(context.Context) (*prediction.Health, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &prediction.Health{Status: "ok", Version: "test"}, nil
}
