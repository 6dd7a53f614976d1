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

type AnalyticsRepository interface {
	// FindOrInit locks and returns the variant's row, or an unsaved zero row
	// keyed to the variant when none exists. Must run inside tx.
	FindOrInit(tx *gorm.DB, merchantID uuid.UUID, shopifyProductID, variantID string) (*model.InventoryAnalytics, error)
	Save(tx *gorm.DB, analytics *model.InventoryAnalytics) error
	FindAll(ctx context.Context, merchantID uuid.UUID) ([]model.InventoryAnalytics, error)
	FindByVariant(ctx context.Context, merchantID uuid.UUID, shopifyProductID, variantID string) (*model.InventoryAnalytics, error)
	// SaveRecommendation writes only the recommendation columns (and velocity
	// when given) so it never races with history appends.
	SaveRecommendation(ctx context.Context, id uuid.UUID, rec *model.RestockRecommendation, velocity *model.SalesVelocity, at time.Time) error
}

type analyticsRepo struct {
	db *gorm.DB
}

func NewAnalyticsRepo(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepo{db}
}

func (r *analyticsRepo) FindOrInit(tx *gorm.DB, merchantID uuid.UUID, shopifyProductID, variantID string) (*model.InventoryAnalytics, error) {
	var a model.InventoryAnalytics
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("merchant_id = ? AND shopify_product_id = ? AND variant_id = ?", merchantID, shopifyProductID, variantID).
		Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.InventoryAnalytics{
			MerchantID:       merchantID,
			ShopifyProductID: shopifyProductID,
			VariantID:        variantID,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *analyticsRepo) Save(tx *gorm.DB, analytics *model.InventoryAnalytics) error {
	if analytics.ID == uuid.Nil {
		return tx.Create(analytics).Error
	}
	return tx.Save(analytics).Error
}

func (r *analyticsRepo) FindAll(ctx context.Context, merchantID uuid.UUID) ([]model.InventoryAnalytics, error) {
	var rows []model.InventoryAnalytics
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("shopify_product_id ASC, variant_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *analyticsRepo) FindByVariant(ctx context.Context, merchantID uuid.UUID, shopifyProductID, variantID string) (*model.InventoryAnalytics, error) {
	var a model.InventoryAnalytics
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND shopify_product_id = ? AND variant_id = ?", merchantID, shopifyProductID, variantID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *analyticsRepo) SaveRecommendation(ctx context.Context, id uuid.UUID, rec *model.RestockRecommendation, velocity *model.SalesVelocity, at time.Time) error {
	var row model.InventoryAnalytics
	row.SetRecommendation(rec, at)

	updates := map[string]interface{}{
		"restock_recommendation":    row.RestockRecommendation,
		"recommendation_updated_at": at,
		"updated_by":                model.AuditRecommendation,
	}
	if velocity != nil {
		updates["velocity_daily"] = velocity.Daily
		updates["velocity_weekly"] = velocity.Weekly
		updates["velocity_monthly"] = velocity.Monthly
	}
	return r.db.WithContext(ctx).Model(&model.InventoryAnalytics{}).Where("id = ?", id).Updates(updates).Error
}
