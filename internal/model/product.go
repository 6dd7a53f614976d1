package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Product mirrors a platform product. Identity is (MerchantID, ShopifyProductID);
// the row is replaced wholesale on every sync.
type Product struct {
	BaseModel
	MerchantID       uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:idx_product_external" json:"merchant_id"`
	ShopifyProductID string                      `gorm:"type:varchar(64);not null;uniqueIndex:idx_product_external" json:"shopify_product_id" validate:"required"`
	Title            string                      `gorm:"type:varchar(255);not null" json:"title" validate:"required"`
	Vendor           string                      `gorm:"type:varchar(255)" json:"vendor"`
	Category         string                      `gorm:"type:varchar(255)" json:"category"`
	Status           string                      `gorm:"type:varchar(20)" json:"status"`
	Tags             datatypes.JSONSlice[string] `json:"tags"`

	Variants []Variant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants" validate:"dive"`
}

// Variant is a purchasable SKU of a Product, kept in platform order via Position.
type Variant struct {
	ID                uint            `gorm:"primaryKey" json:"-"`
	ProductID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	ShopifyVariantID  string          `gorm:"type:varchar(64);not null;index" json:"shopify_variant_id" validate:"required"`
	Title             string          `gorm:"type:varchar(255)" json:"title"`
	SKU               string          `gorm:"type:varchar(100);index" json:"sku"`
	Price             decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"price" validate:"decimal_gte0"`
	InventoryQuantity int             `gorm:"not null;default:0" json:"inventory_quantity"`
	Position          int             `gorm:"not null;default:0" json:"position"`
}

func (Variant) TableName() string {
	return "product_variants"
}

// TotalQuantity sums the on-hand quantity over all variants
func (p *Product) TotalQuantity() int {
	total := 0
	for _, v := range p.Variants {
		total += v.InventoryQuantity
	}
	return total
}

// Value is the on-hand inventory value of the product (price x quantity per variant)
func (p *Product) Value() decimal.Decimal {
	total := decimal.Zero
	for _, v := range p.Variants {
		total = total.Add(v.Price.Mul(decimal.NewFromInt(int64(v.InventoryQuantity))))
	}
	return total
}
