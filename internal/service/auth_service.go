package service

import (
	"context"
	"errors"
	"time"

	"go-stock-analytics/internal/model"
	"go-stock-analytics/internal/repository"
	"go-stock-analytics/pkg/jwt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid shop domain or secret")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

type AuthService interface {
	// IssueToken exchanges a shop domain and API secret for a merchant token
	IssueToken(ctx context.Context, shopDomain, secret string) (*TokenResponse, error)
	// Authenticate resolves a bearer token to its merchant
	Authenticate(ctx context.Context, token string) (*model.Merchant, error)
	// RevokeTokens invalidates every token issued to the merchant so far
	RevokeTokens(ctx context.Context, merchantID uuid.UUID) error
}

type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Merchant  MerchantInfo `json:"merchant"`
}

type MerchantInfo struct {
	ID         uuid.UUID `json:"id"`
	ShopDomain string    `json:"shop_domain"`
	Name       string    `json:"name"`
}

type authService struct {
	merchantRepo repository.MerchantRepository
	tokens       *jwt.Manager
}

func NewAuthService(merchantRepo repository.MerchantRepository, tokens *jwt.Manager) AuthService {
	return &authService{merchantRepo: merchantRepo, tokens: tokens}
}

func (s *authService) IssueToken(ctx context.Context, shopDomain, secret string) (*TokenResponse, error) {
	m, err := s.merchantRepo.FindByShopDomain(ctx, shopDomain)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !m.CheckSecret(secret) {
		return nil, ErrInvalidCredentials
	}

	if m.TokenVersion == "" {
		m.TokenVersion = uuid.NewString()
		if err := s.merchantRepo.UpdateTokenVersion(ctx, m.ID, m.TokenVersion); err != nil {
			return nil, err
		}
	}

	token, expiresAt, err := s.tokens.GenerateToken(m.ID, m.ShopDomain, m.TokenVersion)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Merchant:  MerchantInfo{ID: m.ID, ShopDomain: m.ShopDomain, Name: m.Name},
	}, nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (*model.Merchant, error) {
	if token == "" {
		return nil, jwt.ErrMissingToken
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	m, err := s.merchantRepo.FindByID(ctx, claims.MerchantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, jwt.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if m.TokenVersion != claims.TokenVersion {
		return nil, ErrTokenRevoked
	}
	return m, nil
}

func (s *authService) RevokeTokens(ctx context.Context, merchantID uuid.UUID) error {
	return s.merchantRepo.UpdateTokenVersion(ctx, merchantID, uuid.NewString())
}
