package prediction

import (
	"encoding/json"

	"go-stock-analytics/internal/model"
)

// Item is one per-variant record sent to the prediction service
type Item struct {
	ID                   string                     `json:"id"`
	ProductID            string                     `json:"productId"`
	VariantID            string                     `json:"variantId"`
	Name                 string                     `json:"name"`
	SKU                  string                     `json:"sku"`
	Quantity             int                        `json:"quantity"`
	Price                float64                    `json:"price"`
	Category             string                     `json:"category"`
	Tags                 []string                   `json:"tags"`
	Vendor               string                     `json:"vendor"`
	LeadTime             int                        `json:"leadTime"`
	ReorderPoint         int                        `json:"reorderPoint"`
	DailyVelocity        float64                    `json:"dailyVelocity"`
	SalesVelocity        model.SalesVelocity        `json:"salesVelocity"`
	HistoricalQuantities []model.HistoricalQuantity `json:"historicalQuantities"`
	SalesHistory         []model.DailySales         `json:"salesHistory"`
	OrderCost            float64                    `json:"orderCost"`
	HoldingCost          float64                    `json:"holdingCost"`
}

// Scenario is a named demand multiplier for simulations
type Scenario struct {
	Name         string  `json:"name" validate:"required"`
	DemandChange float64 `json:"demandChange" validate:"gt=0"`
	Description  string  `json:"description"`
}

// DefaultScenarios are used when a simulation request names none
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "baseline", DemandChange: 1.0, Description: "Current demand continues"},
		{Name: "high_demand", DemandChange: 1.5, Description: "Demand rises by 50%"},
		{Name: "low_demand", DemandChange: 0.7, Description: "Demand falls by 30%"},
		{Name: "seasonal_peak", DemandChange: 2.0, Description: "Seasonal peak doubles demand"},
	}
}

// Prediction is one recommendation returned by the service. Optional fields
// are pointers so an absent value is not mistaken for zero.
type Prediction struct {
	ProductID                string               `json:"productId"`
	VariantID                *string              `json:"variantId,omitempty"`
	Name                     string               `json:"name"`
	CurrentStock             int                  `json:"currentStock"`
	RecommendedOrderQuantity int                  `json:"recommendedOrderQuantity"`
	DaysUntilStockout        *float64             `json:"daysUntilStockout"`
	RestockUrgency           string               `json:"restockUrgency"`
	ConfidenceScore          float64              `json:"confidenceScore"`
	Category                 string               `json:"category"`
	Reasoning                *string              `json:"reasoning,omitempty"`
	RecommendedDate          *string              `json:"recommendedDate,omitempty"` // RFC 3339 or YYYY-MM-DD
	SalesVelocity            *model.SalesVelocity `json:"salesVelocity,omitempty"`
}

type restockResponse struct {
	Success     bool         `json:"success"`
	Predictions []Prediction `json:"predictions"`
	Error       string       `json:"error,omitempty"`
}

type simulateRequest struct {
	Items     []Item     `json:"items"`
	Scenarios []Scenario `json:"scenarios"`
}

type simulateResponse struct {
	Success bool                       `json:"success"`
	Results map[string]json.RawMessage `json:"results"`
	Error   string                     `json:"error,omitempty"`
}

// Health is the service's /health payload
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
