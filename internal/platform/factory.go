package platform

import (
	"sync"

	"go-stock-analytics/internal/config"
	"go-stock-analytics/internal/metrics"
	"go-stock-analytics/internal/model"

	"go.uber.org/zap"
)

// Factory hands out a Platform bound to one merchant's credentials
type Factory interface {
	ForMerchant(m *model.Merchant) (Platform, error)
}

// ClientFactory caches one Client per shop so each shop keeps a single rate limiter
type ClientFactory struct {
	cfg     config.PlatformConfig
	metrics *metrics.Metrics
	log     *zap.Logger

	mu      sync.Mutex
	clients map[string]cachedClient
}

type cachedClient struct {
	token  string
	client *Client
}

func NewClientFactory(cfg config.PlatformConfig, m *metrics.Metrics, log *zap.Logger) *ClientFactory {
	return &ClientFactory{cfg: cfg, metrics: m, log: log, clients: make(map[string]cachedClient)}
}

func (f *ClientFactory) ForMerchant(m *model.Merchant) (Platform, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// a rotated access token replaces the cached client
	if cached, ok := f.clients[m.ShopDomain]; ok && cached.token == m.AccessToken {
		return cached.client, nil
	}

	client, err := NewClient(Options{
		ShopDomain:        m.ShopDomain,
		AccessToken:       m.AccessToken,
		APIVersion:        f.cfg.APIVersion,
		BaseURL:           f.cfg.BaseURLOverride,
		Timeout:           f.cfg.Timeout,
		RequestsPerSecond: f.cfg.RequestsPerSecond,
		Burst:             f.cfg.Burst,
		MaxRetries:        f.cfg.MaxRetries,
		Metrics:           f.metrics,
		Logger:            f.log,
	})
	if err != nil {
		return nil, err
	}
	f.clients[m.ShopDomain] = cachedClient{token: m.AccessToken, client: client}
	return client, nil
}
