package testutil

import (
	"testing"

	"go-stock-analytics/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// CreateMerchant inserts a merchant with API secret "secret"
func CreateMerchant(t *testing.T, db *gorm.DB, domain string) *model.Merchant {
	t.Helper()
	m := &model.Merchant{
		ShopDomain:        domain,
		Name:              domain,
		AccessToken:       "shpat_" + domain,
		LowStockThreshold: model.DefaultLowStockThreshold,
		SyncEnabled:       true,
	}
	require.NoError(t, m.SetSecret("secret"))
	require.NoError(t, db.Create(m).Error)
	return m
}

// Variant builds a variant with the given quantity and price
func Variant(id, sku string, quantity int, price string) model.Variant {
	return model.Variant{
		ShopifyVariantID:  id,
		Title:             sku,
		SKU:               sku,
		Price:             decimal.RequireFromString(price),
		InventoryQuantity: quantity,
	}
}
