package platform

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go-stock-analytics/internal/apperror"

	"github.com/shopspring/decimal"
)

// Product is the platform's REST representation of a product
type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Vendor      string    `json:"vendor"`
	ProductType string    `json:"product_type"`
	Status      string    `json:"status"`
	Tags        string    `json:"tags"` // comma separated
	Variants    []Variant `json:"variants"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Invalid is set when the record failed to decode; only ID is populated then
	Invalid *apperror.ValidationError `json:"-"`
}

type Variant struct {
	ID                int64           `json:"id"`
	ProductID         int64           `json:"product_id"`
	Title             string          `json:"title"`
	SKU               string          `json:"sku"`
	Price             decimal.Decimal `json:"price"`
	InventoryQuantity int             `json:"inventory_quantity"`
	Position          int             `json:"position"`
}

type Order struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	CreatedAt         time.Time       `json:"created_at"`
	ProcessedAt       *time.Time      `json:"processed_at"`
	FinancialStatus   string          `json:"financial_status"`
	FulfillmentStatus *string         `json:"fulfillment_status"`
	Currency          string          `json:"currency"`
	SubtotalPrice     decimal.Decimal `json:"subtotal_price"`
	TotalTax          decimal.Decimal `json:"total_tax"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	LineItems         []LineItem      `json:"line_items"`

	Invalid *apperror.ValidationError `json:"-"`
}

type LineItem struct {
	ID        int64           `json:"id"`
	ProductID *int64          `json:"product_id"` // null for custom items
	VariantID *int64          `json:"variant_id"`
	Title     string          `json:"title"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// list envelopes keep records raw so one bad record cannot fail the page
type productsEnvelope struct {
	Products []json.RawMessage `json:"products"`
}

type ordersEnvelope struct {
	Orders []json.RawMessage `json:"orders"`
}

type countEnvelope struct {
	Count int `json:"count"`
}

// SplitTags turns the platform's comma separated tag string into a set,
// preserving first-seen order
func SplitTags(raw string) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}

// FormatID renders a platform id the way it is stored; zero and nil become ""
func FormatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func FormatOptionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return FormatID(*id)
}
