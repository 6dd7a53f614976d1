package repository

import (
	"context"
	"errors"
	"time"

	"go-stock-analytics/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LineItemSale is one sold line with its order date, used for sales history
type LineItemSale struct {
	ShopifyProductID string
	ShopifyVariantID string
	Quantity         int
	OrderedAt        time.Time
}

type OrderRepository interface {
	// Upsert replaces the order and its line items by (MerchantID, ShopifyOrderID)
	Upsert(tx *gorm.DB, order *model.Order) (created bool, err error)
	List(ctx context.Context, merchantID uuid.UUID, page Page) ([]model.Order, int64, error)
	FindByExternalID(ctx context.Context, merchantID uuid.UUID, shopifyOrderID string) (*model.Order, error)
	Count(ctx context.Context, merchantID uuid.UUID) (int64, error)
	SalesSince(ctx context.Context, merchantID uuid.UUID, since time.Time) ([]LineItemSale, error)
}

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) OrderRepository {
	return &orderRepo{db}
}

func (r *orderRepo) Upsert(tx *gorm.DB, order *model.Order) (bool, error) {
	var existing model.Order
	err := tx.Unscoped().
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "created_at", "created_by").
		Where("merchant_id = ? AND shopify_order_id = ?", order.MerchantID, order.ShopifyOrderID).
		Take(&existing).Error

	created := false
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		created = true
		order.ID = uuid.Nil
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return false, err
		}
	case err != nil:
		return false, err
	default:
		order.ID = existing.ID
		order.CreatedAt = existing.CreatedAt
		order.CreatedBy = existing.CreatedBy
		order.DeletedAt = gorm.DeletedAt{}
		if err := tx.Unscoped().Omit(clause.Associations).Save(order).Error; err != nil {
			return false, err
		}
	}

	if err := tx.Where("order_id = ?", order.ID).Delete(&model.LineItem{}).Error; err != nil {
		return false, err
	}
	if len(order.LineItems) == 0 {
		return created, nil
	}
	for i := range order.LineItems {
		order.LineItems[i].ID = 0
		order.LineItems[i].OrderID = order.ID
	}
	if err := tx.Create(&order.LineItems).Error; err != nil {
		return false, err
	}
	return created, nil
}

func (r *orderRepo) List(ctx context.Context, merchantID uuid.UUID, page Page) ([]model.Order, int64, error) {
	page = page.normalized()
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).Where("merchant_id = ?", merchantID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("merchant_id = ?", merchantID).
		Order("ordered_at DESC").
		Offset(page.Offset)
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}
	var orders []model.Order
	err := q.Find(&orders).Error
	return orders, total, err
}

func (r *orderRepo) FindByExternalID(ctx context.Context, merchantID uuid.UUID, shopifyOrderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("merchant_id = ? AND shopify_order_id = ?", merchantID, shopifyOrderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) Count(ctx context.Context, merchantID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).Where("merchant_id = ?", merchantID).Count(&total).Error
	return total, err
}

// SalesSince returns every line item with a product reference from orders
// created at or after since. Custom items without a product are left out.
func (r *orderRepo) SalesSince(ctx context.Context, merchantID uuid.UUID, since time.Time) ([]LineItemSale, error) {
	var sales []LineItemSale
	err := r.db.WithContext(ctx).
		Table("order_line_items AS li").
		Select("li.shopify_product_id, li.shopify_variant_id, li.quantity, o.ordered_at").
		Joins("JOIN orders o ON o.id = li.order_id").
		Where("o.merchant_id = ? AND o.ordered_at >= ? AND o.deleted_at IS NULL", merchantID, since).
		Where("li.shopify_product_id <> ''").
		Order("o.ordered_at ASC").
		Scan(&sales).Error
	return sales, err
}
