package service

import (
	"context"
	"math"
	"sort"
	"time"

	"go-stock-analytics/internal/apperror"
	"go-stock-analytics/internal/model"
	"go-stock-analytics/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	historyBuckets         = 30
	stockoutHorizonDays    = 7.0
	defaultSalesWindowDays = 90

	DefaultLeadTimeDays = 14
	DefaultReorderPoint = 5
	DefaultOrderCost    = 25.0
	DefaultHoldingRate  = 0.2
)

// DashboardAggregates is the read-only rollup behind the dashboard
type DashboardAggregates struct {
	TotalProducts            int64                   `json:"total_products"`
	LowStockCount            int                     `json:"low_stock_count"`
	OutOfStockCount          int                     `json:"out_of_stock_count"`
	TotalInventoryValue      decimal.Decimal         `json:"total_inventory_value"`
	InventoryHistory         []InventoryHistoryPoint `json:"inventory_history"`
	ProductTrends            []ProductTrend          `json:"product_trends"`
	PredictedOutOfStockCount int                     `json:"predicted_out_of_stock_count"`
}

// InventoryHistoryPoint is the summed on-hand quantity observed on one UTC day
type InventoryHistoryPoint struct {
	Date     string `json:"date"`
	Quantity int    `json:"quantity"`
}

type TrendDirection string

const (
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

type ProductTrend struct {
	ShopifyProductID string         `json:"shopify_product_id"`
	Title            string         `json:"title"`
	Trend            TrendDirection `json:"trend"`
	PercentChange    int            `json:"percent_change"`
	DailyVelocity    float64        `json:"daily_velocity"`
	CurrentStock     int            `json:"current_stock"`
}

// RestockEstimate is a locally computed recommendation, never persisted
type RestockEstimate struct {
	ShopifyProductID    string               `json:"shopify_product_id"`
	VariantID           string               `json:"variant_id"`
	Title               string               `json:"title"`
	SKU                 string               `json:"sku"`
	CurrentStock        int                  `json:"current_stock"`
	DailyVelocity       float64              `json:"daily_velocity"`
	DaysUntilStockout   *float64             `json:"days_until_stockout"` // nil when nothing sells
	EconomicOrderQty    int                  `json:"economic_order_quantity"`
	RecommendedQuantity int                  `json:"recommended_quantity"`
	Urgency             model.RestockUrgency `json:"urgency"`
}

type AnalyticsService interface {
	GetDashboardAggregates(ctx context.Context, merchantID uuid.UUID) (*DashboardAggregates, error)
	// SalesHistory groups order line items per variant key and UTC day over the last days
	SalesHistory(ctx context.Context, merchantID uuid.UUID, days int) (map[string][]model.DailySales, error)
	LocalRestockEstimates(ctx context.Context, merchantID uuid.UUID) ([]RestockEstimate, error)
	// ListAnalytics returns the merchant's analytics rows that still match a live variant
	ListAnalytics(ctx context.Context, merchantID uuid.UUID) ([]model.InventoryAnalytics, error)
}

type analyticsService struct {
	productRepo   repository.ProductRepository
	orderRepo     repository.OrderRepository
	analyticsRepo repository.AnalyticsRepository
	log           *zap.Logger
	now           func() time.Time
}

func NewAnalyticsService(pRepo repository.ProductRepository, oRepo repository.OrderRepository, aRepo repository.AnalyticsRepository, log *zap.Logger) AnalyticsService {
	if log == nil {
		log = zap.NewNop()
	}
	return &analyticsService{productRepo: pRepo, orderRepo: oRepo, analyticsRepo: aRepo, log: log.Named("analytics"), now: time.Now}
}

// ComputeSalesVelocity derives consumption from stock observations. Only
// decreases count: each one adds its size to the sold total and its span to
// the elapsed days. Restocks contribute to neither.
func ComputeSalesVelocity(history []model.HistoricalQuantity) model.SalesVelocity {
	if len(history) < 2 {
		return model.SalesVelocity{}
	}
	sorted := make([]model.HistoricalQuantity, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.After(sorted[j].Date) })

	var totalDecrease, totalDays float64
	for i := 0; i+1 < len(sorted); i++ {
		current, older := sorted[i], sorted[i+1]
		decrease := older.Quantity - current.Quantity
		if decrease <= 0 {
			continue
		}
		totalDecrease += float64(decrease)
		totalDays += current.Date.Sub(older.Date).Hours() / 24
	}

	if totalDays <= 0 {
		return model.SalesVelocity{}
	}
	daily := totalDecrease / totalDays
	return model.SalesVelocity{Daily: daily, Weekly: daily * 7, Monthly: daily * 30}
}

// VelocityFromSales estimates velocity from order history when no stock
// decrease has been observed yet: units sold over the covered day range.
func VelocityFromSales(sales []model.DailySales) model.SalesVelocity {
	if len(sales) == 0 {
		return model.SalesVelocity{}
	}
	total := 0
	var first, last time.Time
	for _, s := range sales {
		d, err := time.Parse(time.DateOnly, s.Date)
		if err != nil {
			continue
		}
		total += s.Quantity
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	if total <= 0 || first.IsZero() {
		return model.SalesVelocity{}
	}
	days := last.Sub(first).Hours()/24 + 1
	daily := float64(total) / days
	return model.SalesVelocity{Daily: daily, Weekly: daily * 7, Monthly: daily * 30}
}

// IsPredictedStockout reports whether current stock lasts at most a week at the given rate
func IsPredictedStockout(currentStock int, dailyVelocity float64) bool {
	return dailyVelocity > 0 && float64(currentStock)/dailyVelocity <= stockoutHorizonDays
}

// TrendFor classifies a product from its summed weekly velocity and current stock
func TrendFor(dailyVelocity, weeklyVelocity float64, currentStock int) (TrendDirection, int) {
	if dailyVelocity <= 0 {
		return TrendStable, 0
	}
	if currentStock <= 0 {
		return TrendDown, 100
	}
	pct := int(math.Round(weeklyVelocity / float64(currentStock) * 100))
	return TrendDown, min(pct, 100)
}

// liveRow pairs each analytics row with its product and variant, dropping orphans
type liveRow struct {
	product   *model.Product
	variant   *model.Variant
	analytics *model.InventoryAnalytics
}

// joinLive pairs analytics rows with their live variant. Rows whose variant
// is gone are returned as orphans and take no part in any aggregate.
func joinLive(products []model.Product, rows []model.InventoryAnalytics) ([]liveRow, []*apperror.NotFoundError) {
	type ref struct {
		p *model.Product
		v *model.Variant
	}
	variants := make(map[string]ref)
	for i := range products {
		p := &products[i]
		for j := range p.Variants {
			v := &p.Variants[j]
			variants[model.VariantKey(p.ShopifyProductID, v.ShopifyVariantID)] = ref{p, v}
		}
	}

	out := make([]liveRow, 0, len(rows))
	var orphans []*apperror.NotFoundError
	for i := range rows {
		r, ok := variants[rows[i].Key()]
		if !ok {
			orphans = append(orphans, &apperror.NotFoundError{Entity: "variant", Key: rows[i].Key()})
			continue
		}
		out = append(out, liveRow{product: r.p, variant: r.v, analytics: &rows[i]})
	}
	return out, orphans
}

func (s *analyticsService) load(ctx context.Context, merchantID uuid.UUID) ([]model.Product, []liveRow, error) {
	products, err := s.productRepo.FindAll(ctx, merchantID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.analyticsRepo.FindAll(ctx, merchantID)
	if err != nil {
		return nil, nil, err
	}
	live, orphans := joinLive(products, rows)
	for _, o := range orphans {
		s.log.Debug("skipping orphaned analytics row", zap.String("merchant", merchantID.String()), zap.Error(o))
	}
	return products, live, nil
}

func (s *analyticsService) GetDashboardAggregates(ctx context.Context, merchantID uuid.UUID) (*DashboardAggregates, error) {
	products, live, err := s.load(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	agg := &DashboardAggregates{
		TotalProducts:       int64(len(products)),
		TotalInventoryValue: decimal.Zero,
		InventoryHistory:    []InventoryHistoryPoint{},
		ProductTrends:       make([]ProductTrend, 0, len(products)),
	}
	for i := range products {
		agg.TotalInventoryValue = agg.TotalInventoryValue.Add(products[i].Value())
	}

	buckets := make(map[string]int)
	daily := make(map[string]float64)
	weekly := make(map[string]float64)
	for _, r := range live {
		a := r.analytics
		switch a.StockStatus {
		case model.StockLowStock:
			agg.LowStockCount++
		case model.StockOutOfStock:
			agg.OutOfStockCount++
		}
		if IsPredictedStockout(a.CurrentQuantity, a.SalesVelocity.Daily) {
			agg.PredictedOutOfStockCount++
		}
		for _, h := range a.HistoricalQuantities {
			buckets[h.Date.UTC().Format(time.DateOnly)] += h.Quantity
		}
		daily[a.ShopifyProductID] += a.SalesVelocity.Daily
		weekly[a.ShopifyProductID] += a.SalesVelocity.Weekly
	}

	for date, q := range buckets {
		agg.InventoryHistory = append(agg.InventoryHistory, InventoryHistoryPoint{Date: date, Quantity: q})
	}
	sort.Slice(agg.InventoryHistory, func(i, j int) bool { return agg.InventoryHistory[i].Date < agg.InventoryHistory[j].Date })
	if n := len(agg.InventoryHistory); n > historyBuckets {
		agg.InventoryHistory = agg.InventoryHistory[n-historyBuckets:]
	}

	for i := range products {
		p := &products[i]
		stock := p.TotalQuantity()
		trend, pct := TrendFor(daily[p.ShopifyProductID], weekly[p.ShopifyProductID], stock)
		agg.ProductTrends = append(agg.ProductTrends, ProductTrend{
			ShopifyProductID: p.ShopifyProductID,
			Title:            p.Title,
			Trend:            trend,
			PercentChange:    pct,
			DailyVelocity:    daily[p.ShopifyProductID],
			CurrentStock:     stock,
		})
	}
	return agg, nil
}

func (s *analyticsService) SalesHistory(ctx context.Context, merchantID uuid.UUID, days int) (map[string][]model.DailySales, error) {
	if days <= 0 {
		days = defaultSalesWindowDays
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	sales, err := s.orderRepo.SalesSince(ctx, merchantID, since)
	if err != nil {
		return nil, err
	}

	perDay := make(map[string]map[string]int)
	for _, sale := range sales {
		key := model.VariantKey(sale.ShopifyProductID, sale.ShopifyVariantID)
		if perDay[key] == nil {
			perDay[key] = make(map[string]int)
		}
		perDay[key][sale.OrderedAt.UTC().Format(time.DateOnly)] += sale.Quantity
	}

	out := make(map[string][]model.DailySales, len(perDay))
	for key, byDate := range perDay {
		series := make([]model.DailySales, 0, len(byDate))
		for date, q := range byDate {
			series = append(series, model.DailySales{Date: date, Quantity: q})
		}
		sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
		out[key] = series
	}
	return out, nil
}

func (s *analyticsService) LocalRestockEstimates(ctx context.Context, merchantID uuid.UUID) ([]RestockEstimate, error) {
	_, live, err := s.load(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	out := make([]RestockEstimate, 0, len(live))
	for _, r := range live {
		out = append(out, EstimateRestock(r.product, r.variant, r.analytics))
	}
	return out, nil
}

// EstimateRestock applies the economic order quantity heuristic:
// EOQ = sqrt(2*D*S/H) with annual demand D, order cost S and holding cost H per unit-year.
func EstimateRestock(p *model.Product, v *model.Variant, a *model.InventoryAnalytics) RestockEstimate {
	est := RestockEstimate{
		ShopifyProductID: p.ShopifyProductID,
		VariantID:        v.ShopifyVariantID,
		Title:            p.Title,
		SKU:              v.SKU,
		CurrentStock:     a.CurrentQuantity,
		DailyVelocity:    a.SalesVelocity.Daily,
		Urgency:          model.UrgencyLow,
	}
	if a.CurrentQuantity <= 0 {
		est.Urgency = model.UrgencyHigh
	}

	daily := a.SalesVelocity.Daily
	if daily <= 0 {
		return est
	}

	days := float64(max(a.CurrentQuantity, 0)) / daily
	est.DaysUntilStockout = &days
	switch {
	case days <= DefaultLeadTimeDays:
		est.Urgency = model.UrgencyHigh
	case days <= 2*DefaultLeadTimeDays:
		est.Urgency = model.UrgencyMedium
	}

	price, _ := v.Price.Float64()
	holding := price * DefaultHoldingRate
	if holding > 0 {
		est.EconomicOrderQty = int(math.Ceil(math.Sqrt(2 * daily * 365 * DefaultOrderCost / holding)))
	}

	// cover lead-time demand plus the safety stock, never less than one EOQ
	leadDemand := int(math.Ceil(daily*DefaultLeadTimeDays)) + DefaultReorderPoint - a.CurrentQuantity
	est.RecommendedQuantity = max(est.EconomicOrderQty, leadDemand, 0)
	return est
}

func (s *analyticsService) ListAnalytics(ctx context.Context, merchantID uuid.UUID) ([]model.InventoryAnalytics, error) {
	_, live, err := s.load(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	out := make([]model.InventoryAnalytics, 0, len(live))
	for _, r := range live {
		out = append(out, *r.analytics)
	}
	return out, nil
}
