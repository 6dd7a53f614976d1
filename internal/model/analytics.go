package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DefaultLowStockThreshold applies when neither the merchant nor the record sets one
const DefaultLowStockThreshold = 5

type StockStatus string

const (
	StockInStock    StockStatus = "InStock"
	StockLowStock   StockStatus = "LowStock"
	StockOutOfStock StockStatus = "OutOfStock"
)

// ClassifyStock maps an on-hand quantity to a StockStatus.
// q <= 0 is out of stock, 0 < q <= threshold is low, anything above is in stock.
func ClassifyStock(quantity, threshold int) StockStatus {
	switch {
	case quantity <= 0:
		return StockOutOfStock
	case quantity <= threshold:
		return StockLowStock
	default:
		return StockInStock
	}
}

// HistoricalQuantity is one on-hand observation taken during a sync pass
type HistoricalQuantity struct {
	Date     time.Time `json:"date"`
	Quantity int       `json:"quantity"`
}

// DailySales is the quantity sold on one calendar day (YYYY-MM-DD, UTC)
type DailySales struct {
	Date     string `json:"date"`
	Quantity int    `json:"quantity"`
}

// SalesVelocity is a consumption rate in units per day, week and month
type SalesVelocity struct {
	Daily   float64 `gorm:"column:daily;not null;default:0" json:"daily"`
	Weekly  float64 `gorm:"column:weekly;not null;default:0" json:"weekly"`
	Monthly float64 `gorm:"column:monthly;not null;default:0" json:"monthly"`
}

type RestockUrgency string

const (
	UrgencyLow    RestockUrgency = "low"
	UrgencyMedium RestockUrgency = "medium"
	UrgencyHigh   RestockUrgency = "high"
)

// ParseUrgency normalizes an urgency string; unknown values map to low
func ParseUrgency(s string) RestockUrgency {
	switch RestockUrgency(s) {
	case UrgencyHigh:
		return UrgencyHigh
	case UrgencyMedium:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// RestockRecommendation is written only by the recommendation bridge
type RestockRecommendation struct {
	RecommendedQuantity int            `json:"recommended_quantity"`
	RecommendedDate     time.Time      `json:"recommended_date"`
	Confidence          float64        `json:"confidence"`
	Reasoning           string         `json:"reasoning"`
	Urgency             RestockUrgency `json:"urgency"`
	DaysUntilStockout   *float64       `json:"days_until_stockout,omitempty"`
	GeneratedAt         time.Time      `json:"generated_at"`
}

// InventoryAnalytics holds the observation history and derived metrics for one variant.
// Exactly one row exists per (MerchantID, ShopifyProductID, VariantID).
type InventoryAnalytics struct {
	BaseModel
	MerchantID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_analytics_variant" json:"merchant_id"`
	ShopifyProductID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_analytics_variant" json:"shopify_product_id"`
	VariantID        string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_analytics_variant" json:"variant_id"`
	SKU              string    `gorm:"type:varchar(100)" json:"sku"`

	// Append-only; never reordered in storage. Use SortedHistory to read.
	HistoricalQuantities datatypes.JSONSlice[HistoricalQuantity] `gorm:"not null" json:"historical_quantities"`
	CurrentQuantity      int                                     `gorm:"not null;default:0" json:"current_quantity"`
	SalesVelocity        SalesVelocity                           `gorm:"embedded;embeddedPrefix:velocity_" json:"sales_velocity"`
	StockStatus          StockStatus                             `gorm:"type:varchar(20);index" json:"stock_status"`
	LowStockThreshold    int                                     `gorm:"not null;default:5" json:"low_stock_threshold"`

	RestockRecommendation   datatypes.JSONType[*RestockRecommendation] `gorm:"not null" json:"restock_recommendation"`
	RecommendationUpdatedAt *time.Time                                 `json:"recommendation_updated_at,omitempty"`
}

func (InventoryAnalytics) TableName() string {
	return "inventory_analytics"
}

// AppendObservation records a new on-hand observation and refreshes the status
func (a *InventoryAnalytics) AppendObservation(at time.Time, quantity int) {
	a.HistoricalQuantities = append(a.HistoricalQuantities, HistoricalQuantity{Date: at, Quantity: quantity})
	a.CurrentQuantity = quantity
	a.StockStatus = ClassifyStock(quantity, a.Threshold())
}

// Threshold returns the record's low-stock threshold, falling back to the default
func (a *InventoryAnalytics) Threshold() int {
	if a.LowStockThreshold <= 0 {
		return DefaultLowStockThreshold
	}
	return a.LowStockThreshold
}

// SortedHistory returns a copy of the history ordered oldest first
func (a *InventoryAnalytics) SortedHistory() []HistoricalQuantity {
	out := make([]HistoricalQuantity, len(a.HistoricalQuantities))
	copy(out, a.HistoricalQuantities)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Recommendation returns the stored recommendation, nil when none was ever written
func (a *InventoryAnalytics) Recommendation() *RestockRecommendation {
	return a.RestockRecommendation.Data()
}

// SetRecommendation stores a recommendation produced by the bridge
func (a *InventoryAnalytics) SetRecommendation(rec *RestockRecommendation, at time.Time) {
	a.RestockRecommendation = datatypes.NewJSONType(rec)
	a.RecommendationUpdatedAt = &at
}

// VariantKey identifies a variant across products for one merchant
func VariantKey(productID, variantID string) string {
	return productID + ":" + variantID
}

// Key returns the record's VariantKey
func (a *InventoryAnalytics) Key() string {
	return VariantKey(a.ShopifyProductID, a.VariantID)
}
