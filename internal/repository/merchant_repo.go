package repository

import (
	"context"
	"time"

	"go-stock-analytics/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MerchantRepository interface {
	Create(ctx context.Context, merchant *model.Merchant) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Merchant, error)
	FindByShopDomain(ctx context.Context, domain string) (*model.Merchant, error)
	FindSyncEnabled(ctx context.Context) ([]model.Merchant, error)
	Update(ctx context.Context, merchant *model.Merchant) error
	UpdateTokenVersion(ctx context.Context, id uuid.UUID, version string) error
	TouchProductSync(ctx context.Context, id uuid.UUID, at time.Time) error
	TouchOrderSync(ctx context.Context, id uuid.UUID, at time.Time) error
}

type merchantRepo struct {
	db *gorm.DB
}

func NewMerchantRepo(db *gorm.DB) MerchantRepository {
	return &merchantRepo{db}
}

func (r *merchantRepo) Create(ctx context.Context, merchant *model.Merchant) error {
	return r.db.WithContext(ctx).Create(merchant).Error
}

func (r *merchantRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Merchant, error) {
	var merchant model.Merchant
	if err := r.db.WithContext(ctx).First(&merchant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &merchant, nil
}

func (r *merchantRepo) FindByShopDomain(ctx context.Context, domain string) (*model.Merchant, error) {
	var merchant model.Merchant
	if err := r.db.WithContext(ctx).Where("shop_domain = ?", domain).First(&merchant).Error; err != nil {
		return nil, err
	}
	return &merchant, nil
}

func (r *merchantRepo) FindSyncEnabled(ctx context.Context) ([]model.Merchant, error) {
	var merchants []model.Merchant
	err := r.db.WithContext(ctx).Where("sync_enabled = ?", true).Order("shop_domain ASC").Find(&merchants).Error
	return merchants, err
}

func (r *merchantRepo) Update(ctx context.Context, merchant *model.Merchant) error {
	return r.db.WithContext(ctx).Save(merchant).Error
}

func (r *merchantRepo) UpdateTokenVersion(ctx context.Context, id uuid.UUID, version string) error {
	return r.db.WithContext(ctx).Model(&model.Merchant{}).Where("id = ?", id).Update("token_version", version).Error
}

func (r *merchantRepo) TouchProductSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Merchant{}).Where("id = ?", id).Update("last_product_sync_at", at).Error
}

func (r *merchantRepo) TouchOrderSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Merchant{}).Where("id = ?", id).Update("last_order_sync_at", at).Error
}
