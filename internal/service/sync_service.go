package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go-stock-analytics/internal/apperror"
	"go-stock-analytics/internal/lock"
	"go-stock-analytics/internal/metrics"
	"go-stock-analytics/internal/model"
	"go-stock-analytics/internal/platform"
	"go-stock-analytics/internal/repository"
	"go-stock-analytics/internal/ws"
	"go-stock-analytics/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	KindProducts = "products"
	KindOrders   = "orders"
)

var ErrInvalidLookback = errors.New("sinceDays must be a positive number of days")

// Notifier receives merchant-scoped events; ws.Hub implements it
type Notifier interface {
	Publish(merchantID, eventType string, payload any)
}

// SyncResult reports one sync call. Upserted is the number of records written.
type SyncResult struct {
	Kind       string    `json:"kind"`
	Pages      int       `json:"pages"`
	Fetched    int       `json:"fetched"`
	Upserted   int       `json:"upserted"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type SyncService interface {
	SyncProducts(ctx context.Context, merchantID uuid.UUID) (*SyncResult, error)
	// SyncOrders pulls orders created in the last sinceDays days; nil uses the configured lookback
	SyncOrders(ctx context.Context, merchantID uuid.UUID, sinceDays *int) (*SyncResult, error)
}

type SyncOptions struct {
	PageSize          int
	Workers           int
	OrderLookbackDays int
	LockTTL           time.Duration
}

// SyncDeps collects the collaborators of the sync pipeline
type SyncDeps struct {
	DB            *gorm.DB
	MerchantRepo  repository.MerchantRepository
	ProductRepo   repository.ProductRepository
	OrderRepo     repository.OrderRepository
	AnalyticsRepo repository.AnalyticsRepository
	Platforms     platform.Factory
	Locker        lock.Locker
	Notifier      Notifier
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

type syncService struct {
	SyncDeps
	opts SyncOptions
	now  func() time.Time
}

func NewSyncService(deps SyncDeps, opts SyncOptions) SyncService {
	if opts.PageSize <= 0 || opts.PageSize > 250 {
		opts.PageSize = 250
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.OrderLookbackDays <= 0 {
		opts.OrderLookbackDays = defaultSalesWindowDays
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Logger = deps.Logger.Named("sync")
	return &syncService{SyncDeps: deps, opts: opts, now: time.Now}
}

func (s *syncService) SyncProducts(ctx context.Context, merchantID uuid.UUID) (*SyncResult, error) {
	return s.run(ctx, merchantID, KindProducts, func(ctx context.Context, m *model.Merchant, client platform.Platform, res *SyncResult) error {
		total, err := client.CountProducts(ctx)
		if err != nil {
			s.Logger.Warn("product count unavailable, paging until a short page", zap.String("merchant", m.ShopDomain), zap.Error(err))
			total = UnknownTotal
		}

		pager := Pager[platform.Product]{
			PageSize: s.opts.PageSize,
			Fetch: func(ctx context.Context, cursor int64) ([]platform.Product, error) {
				return client.ListProducts(ctx, platform.PageRequest{Limit: s.opts.PageSize, SinceID: cursor})
			},
			ID: func(p platform.Product) int64 { return p.ID },
		}
		raw, state, err := pager.All(ctx, NewPageState(total))
		res.Pages, res.Fetched = state.Pages, state.Fetched
		if err != nil {
			return s.pageError(KindProducts, m, state, err)
		}

		products := make([]*model.Product, 0, len(raw))
		for i := range raw {
			if raw[i].Invalid != nil {
				s.Logger.Warn("skipping undecodable product", zap.String("merchant", m.ShopDomain), zap.Error(raw[i].Invalid))
				res.Skipped++
				continue
			}
			p := normalizeProduct(m.ID, &raw[i])
			if verr := validateRecord("product", p.ShopifyProductID, p); verr != nil {
				s.Logger.Warn("skipping invalid product", zap.String("merchant", m.ShopDomain), zap.Error(verr))
				res.Skipped++
				continue
			}
			products = append(products, p)
		}

		observedAt := s.now().UTC()
		upserted, failed := s.fanOut(ctx, len(products), func(tx *gorm.DB, i int) error {
			return s.upsertProduct(tx, m, products[i], observedAt)
		}, func(i int, err error) {
			s.Logger.Error("product upsert failed", zap.String("merchant", m.ShopDomain),
				zap.Error(&apperror.PersistenceError{Entity: "product", ExternalID: products[i].ShopifyProductID, Err: err}))
		})
		res.Upserted, res.Failed = upserted, failed
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.MerchantRepo.TouchProductSync(ctx, m.ID, s.now().UTC()); err != nil {
			s.Logger.Warn("could not stamp product sync time", zap.String("merchant", m.ShopDomain), zap.Error(err))
		}
		return nil
	})
}

func (s *syncService) SyncOrders(ctx context.Context, merchantID uuid.UUID, sinceDays *int) (*SyncResult, error) {
	days := s.opts.OrderLookbackDays
	if sinceDays != nil {
		if *sinceDays <= 0 {
			return nil, ErrInvalidLookback
		}
		days = *sinceDays
	}

	return s.run(ctx, merchantID, KindOrders, func(ctx context.Context, m *model.Merchant, client platform.Platform, res *SyncResult) error {
		createdAtMin := s.now().UTC().AddDate(0, 0, -days)

		total, err := client.CountOrders(ctx, createdAtMin)
		if err != nil {
			s.Logger.Warn("order count unavailable, paging until a short page", zap.String("merchant", m.ShopDomain), zap.Error(err))
			total = UnknownTotal
		}

		pager := Pager[platform.Order]{
			PageSize: s.opts.PageSize,
			Fetch: func(ctx context.Context, cursor int64) ([]platform.Order, error) {
				return client.ListOrders(ctx, platform.PageRequest{Limit: s.opts.PageSize, SinceID: cursor, CreatedAtMin: createdAtMin})
			},
			ID: func(o platform.Order) int64 { return o.ID },
		}
		raw, state, err := pager.All(ctx, NewPageState(total))
		res.Pages, res.Fetched = state.Pages, state.Fetched
		if err != nil {
			return s.pageError(KindOrders, m, state, err)
		}

		orders := make([]*model.Order, 0, len(raw))
		for i := range raw {
			if raw[i].Invalid != nil {
				s.Logger.Warn("skipping undecodable order", zap.String("merchant", m.ShopDomain), zap.Error(raw[i].Invalid))
				res.Skipped++
				continue
			}
			o := normalizeOrder(m.ID, &raw[i])
			if verr := validateRecord("order", o.ShopifyOrderID, o); verr != nil {
				s.Logger.Warn("skipping invalid order", zap.String("merchant", m.ShopDomain), zap.Error(verr))
				res.Skipped++
				continue
			}
			orders = append(orders, o)
		}

		upserted, failed := s.fanOut(ctx, len(orders), func(tx *gorm.DB, i int) error {
			orders[i].CreatedBy = model.AuditSync
			orders[i].UpdatedBy = model.AuditSync
			_, err := s.OrderRepo.Upsert(tx, orders[i])
			return err
		}, func(i int, err error) {
			s.Logger.Error("order upsert failed", zap.String("merchant", m.ShopDomain),
				zap.Error(&apperror.PersistenceError{Entity: "order", ExternalID: orders[i].ShopifyOrderID, Err: err}))
		})
		res.Upserted, res.Failed = upserted, failed
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.MerchantRepo.TouchOrderSync(ctx, m.ID, s.now().UTC()); err != nil {
			s.Logger.Warn("could not stamp order sync time", zap.String("merchant", m.ShopDomain), zap.Error(err))
		}
		return nil
	})
}

type syncBody func(ctx context.Context, m *model.Merchant, client platform.Platform, res *SyncResult) error

// run wraps a sync body with the merchant lookup, the per-(merchant, kind)
// lock, metrics and event publishing
func (s *syncService) run(ctx context.Context, merchantID uuid.UUID, kind string, body syncBody) (*SyncResult, error) {
	m, err := s.MerchantRepo.FindByID(ctx, merchantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrMerchantNotFound
	}
	if err != nil {
		return nil, err
	}

	lease, err := s.Locker.Acquire(ctx, merchantID.String()+":"+kind, s.opts.LockTTL)
	if errors.Is(err, lock.ErrHeld) {
		s.Metrics.ObserveSync(metrics.SyncObservation{Kind: kind, Outcome: "conflict"})
		return nil, apperror.ErrSyncInProgress
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		// the caller's ctx may already be cancelled; the lease must still go
		if err := lease.Release(context.Background()); err != nil {
			s.Logger.Warn("lock release failed", zap.String("merchant", m.ShopDomain), zap.String("kind", kind), zap.Error(err))
		}
	}()

	client, err := s.Platforms.ForMerchant(m)
	if err != nil {
		return nil, fmt.Errorf("platform client for %s: %w", m.ShopDomain, err)
	}

	res := &SyncResult{Kind: kind, StartedAt: s.now().UTC()}
	log := s.Logger.With(zap.String("merchant", m.ShopDomain), zap.String("kind", kind))
	log.Info("sync started")

	err = body(ctx, m, client, res)
	res.FinishedAt = s.now().UTC()

	obs := metrics.SyncObservation{
		Kind:     kind,
		Outcome:  "success",
		Pages:    res.Pages,
		Upserted: res.Upserted,
		Skipped:  res.Skipped,
		Failed:   res.Failed,
		Duration: res.FinishedAt.Sub(res.StartedAt),
	}
	if err != nil {
		obs.Outcome = "failed"
		s.Metrics.ObserveSync(obs)
		log.Error("sync failed", zap.Int("pages", res.Pages), zap.Error(err))
		s.notify(m.ID, ws.EventSyncFailed, map[string]any{"kind": kind, "error": err.Error()})
		return nil, err
	}

	s.Metrics.ObserveSync(obs)
	log.Info("sync finished",
		zap.Int("pages", res.Pages),
		zap.Int("fetched", res.Fetched),
		zap.Int("upserted", res.Upserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Duration("took", obs.Duration))
	s.notify(m.ID, ws.EventSyncCompleted, res)
	return res, nil
}

func (s *syncService) notify(merchantID uuid.UUID, event string, payload any) {
	if s.Notifier != nil {
		s.Notifier.Publish(merchantID.String(), event, payload)
	}
}

func (s *syncService) pageError(kind string, m *model.Merchant, state PageState, err error) error {
	var connErr *apperror.ConnectivityError
	return &apperror.SyncError{
		Kind:       kind,
		MerchantID: m.ID.String(),
		Page:       state.Pages + 1,
		Retryable:  errors.As(err, &connErr),
		Err:        err,
	}
}

// fanOut runs n record upserts, each in its own transaction, on a bounded
// pool. A failed record is reported through onError and never stops the rest.
func (s *syncService) fanOut(ctx context.Context, n int, upsert func(tx *gorm.DB, i int) error, onError func(i int, err error)) (int, int) {
	var upserted, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(s.opts.Workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return upsert(tx, i)
			})
			if err != nil {
				failed.Add(1)
				onError(i, err)
				return nil
			}
			upserted.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(upserted.Load()), int(failed.Load())
}

// upsertProduct writes the product document and appends one observation per variant
func (s *syncService) upsertProduct(tx *gorm.DB, m *model.Merchant, p *model.Product, observedAt time.Time) error {
	p.CreatedBy = model.AuditSync
	p.UpdatedBy = model.AuditSync
	if _, err := s.ProductRepo.Upsert(tx, p); err != nil {
		return err
	}

	for _, v := range p.Variants {
		a, err := s.AnalyticsRepo.FindOrInit(tx, m.ID, p.ShopifyProductID, v.ShopifyVariantID)
		if err != nil {
			return err
		}
		if a.ID == uuid.Nil {
			a.LowStockThreshold = m.Threshold()
			a.CreatedBy = model.AuditSync
		}
		a.SKU = v.SKU
		a.UpdatedBy = model.AuditSync
		a.AppendObservation(observedAt, v.InventoryQuantity)
		a.SalesVelocity = ComputeSalesVelocity(a.HistoricalQuantities)
		if err := s.AnalyticsRepo.Save(tx, a); err != nil {
			return err
		}
	}
	return nil
}

func validateRecord(entity, externalID string, record interface{}) error {
	errs := validator.ValidateStruct(record)
	if len(errs) == 0 {
		return nil
	}
	return &apperror.ValidationError{Entity: entity, ExternalID: externalID, Field: errs[0].FailedField, Tag: errs[0].Tag}
}

func normalizeProduct(merchantID uuid.UUID, src *platform.Product) *model.Product {
	p := &model.Product{
		MerchantID:       merchantID,
		ShopifyProductID: platform.FormatID(src.ID),
		Title:            src.Title,
		Vendor:           src.Vendor,
		Category:         src.ProductType,
		Status:           src.Status,
		Tags:             platform.SplitTags(src.Tags),
		Variants:         make([]model.Variant, 0, len(src.Variants)),
	}
	for i, v := range src.Variants {
		pos := v.Position
		if pos == 0 {
			pos = i + 1
		}
		p.Variants = append(p.Variants, model.Variant{
			ShopifyVariantID:  platform.FormatID(v.ID),
			Title:             v.Title,
			SKU:               v.SKU,
			Price:             v.Price,
			InventoryQuantity: v.InventoryQuantity,
			Position:          pos,
		})
	}
	return p
}

func normalizeOrder(merchantID uuid.UUID, src *platform.Order) *model.Order {
	o := &model.Order{
		MerchantID:        merchantID,
		ShopifyOrderID:    platform.FormatID(src.ID),
		Name:              src.Name,
		OrderedAt:         src.CreatedAt.UTC(),
		ProcessedAt:       src.ProcessedAt,
		FinancialStatus:   src.FinancialStatus,
		FulfillmentStatus: src.FulfillmentStatus,
		Currency:          src.Currency,
		SubtotalPrice:     src.SubtotalPrice,
		TotalTax:          src.TotalTax,
		TotalPrice:        src.TotalPrice,
		LineItems:         make([]model.LineItem, 0, len(src.LineItems)),
	}
	for _, li := range src.LineItems {
		o.LineItems = append(o.LineItems, model.LineItem{
			ShopifyLineItemID: platform.FormatID(li.ID),
			ShopifyProductID:  platform.FormatOptionalID(li.ProductID),
			ShopifyVariantID:  platform.FormatOptionalID(li.VariantID),
			Title:             li.Title,
			SKU:               li.SKU,
			Quantity:          li.Quantity,
			Price:             li.Price,
		})
	}
	return o
}
