package model

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Merchant is a connected shop. Every catalog, order and analytics row belongs to one.
type Merchant struct {
	BaseModel
	ShopDomain        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"shop_domain" validate:"required,fqdn"`
	Name              string     `gorm:"type:varchar(255)" json:"name"`
	AccessToken       string     `gorm:"type:varchar(255)" json:"-"` // platform credential
	SecretHash        string     `gorm:"type:varchar(255);not null" json:"-"`
	TokenVersion      string     `gorm:"type:varchar(255);default:''" json:"-"` // rotating invalidates issued tokens
	LowStockThreshold int        `gorm:"default:5" json:"low_stock_threshold" validate:"gte=0"`
	SyncEnabled       bool       `json:"sync_enabled"`
	LastProductSyncAt *time.Time `json:"last_product_sync_at,omitempty"`
	LastOrderSyncAt   *time.Time `json:"last_order_sync_at,omitempty"`
}

// SetSecret hashes and stores the merchant API secret
func (m *Merchant) SetSecret(secret string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.SecretHash = string(hashed)
	return nil
}

// CheckSecret verifies the provided secret against the stored hash
func (m *Merchant) CheckSecret(secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(m.SecretHash), []byte(secret)) == nil
}

// Threshold returns the low-stock threshold, falling back to the default
func (m *Merchant) Threshold() int {
	if m.LowStockThreshold <= 0 {
		return DefaultLowStockThreshold
	}
	return m.LowStockThreshold
}
