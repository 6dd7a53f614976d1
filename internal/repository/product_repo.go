package repository

import (
	"context"
	"errors"

	"go-stock-analytics/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	// Upsert replaces the product and its variants by (MerchantID, ShopifyProductID).
	// It must run inside tx; created reports whether the row was new.
	Upsert(tx *gorm.DB, product *model.Product) (created bool, err error)
	FindAll(ctx context.Context, merchantID uuid.UUID) ([]model.Product, error)
	List(ctx context.Context, merchantID uuid.UUID, page Page) ([]model.Product, int64, error)
	FindByExternalID(ctx context.Context, merchantID uuid.UUID, shopifyProductID string) (*model.Product, error)
	Count(ctx context.Context, merchantID uuid.UUID) (int64, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Upsert(tx *gorm.DB, product *model.Product) (bool, error) {
	var existing model.Product
	err := tx.Unscoped().
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "created_at", "created_by").
		Where("merchant_id = ? AND shopify_product_id = ?", product.MerchantID, product.ShopifyProductID).
		Take(&existing).Error

	created := false
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		created = true
		product.ID = uuid.Nil
		if err := tx.Omit(clause.Associations).Create(product).Error; err != nil {
			return false, err
		}
	case err != nil:
		return false, err
	default:
		product.ID = existing.ID
		product.CreatedAt = existing.CreatedAt
		product.CreatedBy = existing.CreatedBy
		product.DeletedAt = gorm.DeletedAt{}
		if err := tx.Unscoped().Omit(clause.Associations).Save(product).Error; err != nil {
			return false, err
		}
	}

	// full-document replace: variants are rewritten in platform order
	if err := tx.Where("product_id = ?", product.ID).Delete(&model.Variant{}).Error; err != nil {
		return false, err
	}
	if len(product.Variants) == 0 {
		return created, nil
	}
	for i := range product.Variants {
		product.Variants[i].ID = 0
		product.Variants[i].ProductID = product.ID
	}
	if err := tx.Create(&product.Variants).Error; err != nil {
		return false, err
	}
	return created, nil
}

func (r *productRepo) FindAll(ctx context.Context, merchantID uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Where("merchant_id = ?", merchantID).
		Order("title ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) List(ctx context.Context, merchantID uuid.UUID, page Page) ([]model.Product, int64, error) {
	page = page.normalized()
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Product{}).Where("merchant_id = ?", merchantID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Where("merchant_id = ?", merchantID).
		Order("title ASC").
		Offset(page.Offset)
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}
	var products []model.Product
	err := q.Find(&products).Error
	return products, total, err
}

func (r *productRepo) FindByExternalID(ctx context.Context, merchantID uuid.UUID, shopifyProductID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Where("merchant_id = ? AND shopify_product_id = ?", merchantID, shopifyProductID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) Count(ctx context.Context, merchantID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).Where("merchant_id = ?", merchantID).Count(&total).Error
	return total, err
}
