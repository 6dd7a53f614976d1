package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order mirrors a platform order. Re-synced orders overwrite by (MerchantID, ShopifyOrderID).
type Order struct {
	BaseModel
	MerchantID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_order_external" json:"merchant_id"`
	ShopifyOrderID    string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_order_external" json:"shopify_order_id" validate:"required"`
	Name              string          `gorm:"type:varchar(64)" json:"name"`
	OrderedAt         time.Time       `gorm:"not null;index" json:"ordered_at" validate:"required"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
	FinancialStatus   string          `gorm:"type:varchar(32)" json:"financial_status"`
	FulfillmentStatus *string         `gorm:"type:varchar(32)" json:"fulfillment_status,omitempty"` // nil = unfulfilled
	Currency          string          `gorm:"type:varchar(8)" json:"currency"`
	SubtotalPrice     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"subtotal_price" validate:"decimal_gte0"`
	TotalTax          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_tax" validate:"decimal_gte0"`
	TotalPrice        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_price" validate:"decimal_gte0"`

	LineItems []LineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"line_items" validate:"dive"`
}

// LineItem is one purchased SKU within an Order
type LineItem struct {
	ID                uint            `gorm:"primaryKey" json:"-"`
	OrderID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ShopifyLineItemID string          `gorm:"type:varchar(64)" json:"shopify_line_item_id"`
	ShopifyProductID  string          `gorm:"type:varchar(64);index" json:"shopify_product_id"` // empty for custom items
	ShopifyVariantID  string          `gorm:"type:varchar(64);index" json:"shopify_variant_id"`
	Title             string          `gorm:"type:varchar(255)" json:"title"`
	SKU               string          `gorm:"type:varchar(100)" json:"sku"`
	Quantity          int             `gorm:"not null" json:"quantity" validate:"gte=0"`
	Price             decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"price" validate:"decimal_gte0"`
}

func (LineItem) TableName() string {
	return "order_line_items"
}
