package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go-stock-analytics/internal/apperror"
	"go-stock-analytics/internal/model"
	"go-stock-analytics/internal/prediction"
	"go-stock-analytics/internal/repository"
	"go-stock-analytics/internal/ws"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RecommendationState string

const (
	RecommendationNone      RecommendationState = "none"
	RecommendationRequested RecommendationState = "requested"
	RecommendationFulfilled RecommendationState = "fulfilled"
	RecommendationFailed    RecommendationState = "failed"
)

// RecommendationStatus describes the merchant's most recent recommendation run
type RecommendationStatus struct {
	State       RecommendationState `json:"state"`
	RequestedAt *time.Time          `json:"requested_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Count       int                 `json:"count"`
	Error       string              `json:"error,omitempty"`
}

// RecommendationView is a restock recommendation joined with its variant
type RecommendationView struct {
	ShopifyProductID    string               `json:"shopify_product_id"`
	VariantID           string               `json:"variant_id"`
	Name                string               `json:"name"`
	SKU                 string               `json:"sku"`
	Category            string               `json:"category"`
	CurrentStock        int                  `json:"current_stock"`
	RecommendedQuantity int                  `json:"recommended_quantity"`
	RecommendedDate     time.Time            `json:"recommended_date"`
	DaysUntilStockout   *float64             `json:"days_until_stockout"`
	Urgency             model.RestockUrgency `json:"urgency"`
	Confidence          float64              `json:"confidence"`
	Reasoning           string               `json:"reasoning,omitempty"`
	GeneratedAt         time.Time            `json:"generated_at"`
}

type RecommendationService interface {
	BuildPredictionItems(ctx context.Context, merchantID uuid.UUID) ([]prediction.Item, error)
	// GetRestockRecommendations asks the prediction service for fresh
	// recommendations and stores them. A prediction failure yields an empty
	// slice and nil error; only local read failures are returned.
	GetRestockRecommendations(ctx context.Context, merchantID uuid.UUID) ([]RecommendationView, error)
	// StoredRecommendations returns the last recommendations written per variant
	StoredRecommendations(ctx context.Context, merchantID uuid.UUID) ([]RecommendationView, error)
	RunInventorySimulations(ctx context.Context, merchantID uuid.UUID, scenarios []prediction.Scenario) (map[string]json.RawMessage, error)
	Status(merchantID uuid.UUID) RecommendationStatus
	Probe(ctx context.Context) (*prediction.Health, error)
}

type recommendationService struct {
	productRepo   repository.ProductRepository
	analyticsRepo repository.AnalyticsRepository
	analytics     AnalyticsService
	predictor     prediction.Predictor
	notifier      Notifier
	log           *zap.Logger
	now           func() time.Time

	mu     sync.Mutex
	status map[uuid.UUID]RecommendationStatus
}

func NewRecommendationService(
	pRepo repository.ProductRepository,
	aRepo repository.AnalyticsRepository,
	analytics AnalyticsService,
	predictor prediction.Predictor,
	notifier Notifier,
	log *zap.Logger,
) RecommendationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &recommendationService{
		productRepo:   pRepo,
		analyticsRepo: aRepo,
		analytics:     analytics,
		predictor:     predictor,
		notifier:      notifier,
		log:           log.Named("recommendation"),
		now:           time.Now,
		status:        make(map[uuid.UUID]RecommendationStatus),
	}
}

// join lists every live variant; analytics is nil for variants not yet synced
func (s *recommendationService) join(ctx context.Context, merchantID uuid.UUID) ([]liveRow, error) {
	products, err := s.productRepo.FindAll(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	rows, err := s.analyticsRepo.FindAll(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*model.InventoryAnalytics, len(rows))
	for i := range rows {
		byKey[rows[i].Key()] = &rows[i]
	}

	var out []liveRow
	for i := range products {
		p := &products[i]
		for j := range p.Variants {
			v := &p.Variants[j]
			out = append(out, liveRow{product: p, variant: v, analytics: byKey[model.VariantKey(p.ShopifyProductID, v.ShopifyVariantID)]})
		}
	}
	return out, nil
}

func (s *recommendationService) BuildPredictionItems(ctx context.Context, merchantID uuid.UUID) ([]prediction.Item, error) {
	rows, err := s.join(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	sales, err := s.analytics.SalesHistory(ctx, merchantID, defaultSalesWindowDays)
	if err != nil {
		return nil, err
	}
	return buildItems(rows, sales), nil
}

func buildItems(rows []liveRow, sales map[string][]model.DailySales) []prediction.Item {
	items := make([]prediction.Item, 0, len(rows))
	for _, r := range rows {
		key := model.VariantKey(r.product.ShopifyProductID, r.variant.ShopifyVariantID)
		price, _ := r.variant.Price.Float64()

		item := prediction.Item{
			ID:                   key,
			ProductID:            r.product.ShopifyProductID,
			VariantID:            r.variant.ShopifyVariantID,
			Name:                 itemName(r.product, r.variant),
			SKU:                  r.variant.SKU,
			Quantity:             r.variant.InventoryQuantity,
			Price:                price,
			Category:             r.product.Category,
			Tags:                 append([]string{}, r.product.Tags...),
			Vendor:               r.product.Vendor,
			LeadTime:             DefaultLeadTimeDays,
			ReorderPoint:         DefaultReorderPoint,
			OrderCost:            DefaultOrderCost,
			HoldingCost:          DefaultHoldingRate,
			HistoricalQuantities: []model.HistoricalQuantity{},
			SalesHistory:         sales[key],
		}
		if item.SalesHistory == nil {
			item.SalesHistory = []model.DailySales{}
		}
		if a := r.analytics; a != nil {
			item.ReorderPoint = a.Threshold()
			item.SalesVelocity = a.SalesVelocity
			item.HistoricalQuantities = a.SortedHistory()
		}
		if item.SalesVelocity.Daily <= 0 {
			item.SalesVelocity = VelocityFromSales(item.SalesHistory)
		}
		item.DailyVelocity = item.SalesVelocity.Daily
		items = append(items, item)
	}
	return items
}

func itemName(p *model.Product, v *model.Variant) string {
	if v.Title == "" || v.Title == "Default Title" {
		return p.Title
	}
	return p.Title + " - " + v.Title
}

func (s *recommendationService) GetRestockRecommendations(ctx context.Context, merchantID uuid.UUID) ([]RecommendationView, error) {
	rows, err := s.join(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	sales, err := s.analytics.SalesHistory(ctx, merchantID, defaultSalesWindowDays)
	if err != nil {
		return nil, err
	}
	items := buildItems(rows, sales)

	requestedAt := s.now().UTC()
	s.setStatus(merchantID, RecommendationStatus{State: RecommendationRequested, RequestedAt: &requestedAt})

	views := []RecommendationView{}
	if len(items) == 0 {
		s.finish(merchantID, requestedAt, 0, nil)
		return views, nil
	}

	predictions, err := s.predictor.Restock(ctx, items)
	if err != nil {
		s.log.Warn("prediction service unavailable, keeping stored recommendations",
			zap.String("merchant", merchantID.String()), zap.Error(err))
		s.finish(merchantID, requestedAt, 0, err)
		return views, nil
	}

	index := newPredictionIndex(rows)
	generatedAt := s.now().UTC()
	for _, p := range predictions {
		r, ok := index.match(p)
		if !ok {
			s.log.Debug("prediction matches no variant", zap.String("product", p.ProductID))
			continue
		}
		rec := toRecommendation(p, generatedAt)
		if r.analytics != nil {
			if err := s.analyticsRepo.SaveRecommendation(ctx, r.analytics.ID, rec, p.SalesVelocity, generatedAt); err != nil {
				s.log.Error("storing recommendation failed", zap.Error(&apperror.PersistenceError{
					Entity: "inventory_analytics", ExternalID: r.analytics.Key(), Err: err,
				}))
			}
		}
		views = append(views, newView(r, rec))
	}

	s.finish(merchantID, requestedAt, len(views), nil)
	if s.notifier != nil {
		s.notifier.Publish(merchantID.String(), ws.EventRecommendationsUpdated, map[string]int{"count": len(views)})
	}
	return views, nil
}

func (s *recommendationService) StoredRecommendations(ctx context.Context, merchantID uuid.UUID) ([]RecommendationView, error) {
	rows, err := s.join(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	views := []RecommendationView{}
	for _, r := range rows {
		if r.analytics == nil || r.analytics.Recommendation() == nil {
			continue
		}
		views = append(views, newView(r, r.analytics.Recommendation()))
	}
	return views, nil
}

func (s *recommendationService) RunInventorySimulations(ctx context.Context, merchantID uuid.UUID, scenarios []prediction.Scenario) (map[string]json.RawMessage, error) {
	items, err := s.BuildPredictionItems(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if len(scenarios) == 0 {
		scenarios = prediction.DefaultScenarios()
	}
	results := map[string]json.RawMessage{}
	if len(items) == 0 {
		return results, nil
	}

	out, err := s.predictor.Simulate(ctx, items, scenarios)
	if err != nil {
		s.log.Warn("simulation unavailable", zap.String("merchant", merchantID.String()), zap.Error(err))
		return results, nil
	}
	for name, raw := range out {
		results[name] = raw
	}
	return results, nil
}

func (s *recommendationService) Status(merchantID uuid.UUID) RecommendationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[merchantID]; ok {
		return st
	}
	return RecommendationStatus{State: RecommendationNone}
}

func (s *recommendationService) Probe(ctx context.Context) (*prediction.Health, error) {
	return s.predictor.Health(ctx)
}

func (s *recommendationService) setStatus(merchantID uuid.UUID, st RecommendationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[merchantID] = st
}

func (s *recommendationService) finish(merchantID uuid.UUID, requestedAt time.Time, count int, err error) {
	done := s.now().UTC()
	st := RecommendationStatus{State: RecommendationFulfilled, RequestedAt: &requestedAt, CompletedAt: &done, Count: count}
	if err != nil {
		st.State = RecommendationFailed
		st.Error = err.Error()
	}
	s.setStatus(merchantID, st)
}

// predictionIndex resolves a returned prediction to the variant it was made for.
// The service may echo the item id, the product id with a variant id, or a bare
// product id for single-variant products.
type predictionIndex struct {
	byItem    map[string]liveRow
	byProduct map[string][]liveRow
}

func newPredictionIndex(rows []liveRow) predictionIndex {
	idx := predictionIndex{byItem: make(map[string]liveRow), byProduct: make(map[string][]liveRow)}
	for _, r := range rows {
		idx.byItem[model.VariantKey(r.product.ShopifyProductID, r.variant.ShopifyVariantID)] = r
		idx.byProduct[r.product.ShopifyProductID] = append(idx.byProduct[r.product.ShopifyProductID], r)
	}
	return idx
}

func (idx predictionIndex) match(p prediction.Prediction) (liveRow, bool) {
	if p.VariantID != nil && *p.VariantID != "" {
		r, ok := idx.byItem[model.VariantKey(p.ProductID, *p.VariantID)]
		return r, ok
	}
	if r, ok := idx.byItem[p.ProductID]; ok {
		return r, true
	}
	if rows := idx.byProduct[p.ProductID]; len(rows) == 1 {
		return rows[0], true
	}
	return liveRow{}, false
}

func toRecommendation(p prediction.Prediction, now time.Time) *model.RestockRecommendation {
	rec := &model.RestockRecommendation{
		RecommendedQuantity: max(p.RecommendedOrderQuantity, 0),
		Confidence:          p.ConfidenceScore,
		Urgency:             model.ParseUrgency(p.RestockUrgency),
		DaysUntilStockout:   p.DaysUntilStockout,
		GeneratedAt:         now,
		RecommendedDate:     now,
	}
	if p.Reasoning != nil {
		rec.Reasoning = *p.Reasoning
	}
	if d, ok := parseRecommendedDate(p.RecommendedDate); ok {
		rec.RecommendedDate = d
	} else if p.DaysUntilStockout != nil {
		// order one lead time before the projected stockout
		lead := max(*p.DaysUntilStockout-DefaultLeadTimeDays, 0)
		rec.RecommendedDate = now.Add(time.Duration(lead * 24 * float64(time.Hour)))
	}
	return rec
}

func parseRecommendedDate(s *string) (time.Time, bool) {
	if s == nil || *s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, *s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func newView(r liveRow, rec *model.RestockRecommendation) RecommendationView {
	return RecommendationView{
		ShopifyProductID:    r.product.ShopifyProductID,
		VariantID:           r.variant.ShopifyVariantID,
		Name:                itemName(r.product, r.variant),
		SKU:                 r.variant.SKU,
		Category:            r.product.Category,
		CurrentStock:        r.variant.InventoryQuantity,
		RecommendedQuantity: rec.RecommendedQuantity,
		RecommendedDate:     rec.RecommendedDate,
		DaysUntilStockout:   rec.DaysUntilStockout,
		Urgency:             rec.Urgency,
		Confidence:          rec.Confidence,
		Reasoning:           rec.Reasoning,
		GeneratedAt:         rec.GeneratedAt,
	}
}
