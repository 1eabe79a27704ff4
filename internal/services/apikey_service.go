package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/models"
	repo "github.com/tradeshield/escrow-backend/internal/repository"
)

// ErrRateLimited marks an API key that exhausted its per-minute window.
var ErrRateLimited = errors.New("api key rate limit exceeded")

const apiKeyWindow = time.Minute

type APIKeyService struct {
	r repo.APIKeys
}

func NewAPIKeyService(r repo.APIKeys) *APIKeyService { return &APIKeyService{r: r} }

type CreateAPIKeyInput struct {
	Name            string           `json:"name"`
	Environment     models.APIKeyEnv `json:"environment"`
	Permissions     []string         `json:"permissions"`
	RateLimitPerMin int              `json:"rate_limit_per_min"`
}

// Create generates the secret exactly once and returns it alongside the
// stored key. Only the SHA-256 digest persists; the raw value is not
// recoverable afterwards.
func (s *APIKeyService) Create(ctx context.Context, userID string, in CreateAPIKeyInput) (models.APIKey, string, error) {
	if in.Name == "" {
		return models.APIKey{}, "", apperr.Validation("name is required")
	}
	switch in.Environment {
	case models.APIKeyEnvTest, models.APIKeyEnvProduction:
	default:
		return models.APIKey{}, "", apperr.Validationf("unknown environment %q", in.Environment)
	}
	for _, p := range in.Permissions {
		if p != "read" && p != "write" {
			return models.APIKey{}, "", apperr.Validationf("unknown permission %q", p)
		}
	}
	if len(in.Permissions) == 0 {
		in.Permissions = []string{"read"}
	}
	if in.RateLimitPerMin <= 0 {
		in.RateLimitPerMin = 60
	}

	prefix := "sk_test_"
	if in.Environment == models.APIKeyEnvProduction {
		prefix = "sk_live_"
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return models.APIKey{}, "", apperr.Internal("generate secret", err)
	}
	secret := prefix + hex.EncodeToString(raw)

	k, err := s.r.Create(ctx, models.APIKey{
		UserID:          userID,
		Name:            in.Name,
		Prefix:          prefix,
		Last4:           secret[len(secret)-4:],
		SecretHash:      hashSecret(secret),
		Environment:     in.Environment,
		Permissions:     in.Permissions,
		RateLimitPerMin: in.RateLimitPerMin,
	})
	if err != nil {
		return models.APIKey{}, "", err
	}
	return k, secret, nil
}

func (s *APIKeyService) List(ctx context.Context, userID string) ([]models.APIKey, error) {
	return s.r.ListByUser(ctx, userID)
}

func (s *APIKeyService) Revoke(ctx context.Context, userID, id string) (models.APIKey, error) {
	return s.r.Revoke(ctx, userID, id)
}

// Authenticate resolves a raw key to its record, enforcing status and the
// per-minute rate limit.
func (s *APIKeyService) Authenticate(ctx context.Context, raw string) (models.APIKey, error) {
	if raw == "" {
		return models.APIKey{}, apperr.Unauthorized("missing api key")
	}
	k, err := s.r.GetByHash(ctx, hashSecret(raw))
	if err != nil {
		return models.APIKey{}, err
	}
	if k.Status != models.APIKeyActive {
		return models.APIKey{}, apperr.Unauthorized("api key revoked")
	}
	allowed, err := s.r.TouchUsage(ctx, k.ID, apiKeyWindow)
	if err != nil {
		return models.APIKey{}, err
	}
	if !allowed {
		return models.APIKey{}, ErrRateLimited
	}
	return k, nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
