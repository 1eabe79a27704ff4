package services

import (
	"context"
	"strings"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/auth"
	"github.com/tradeshield/escrow-backend/internal/models"
	repo "github.com/tradeshield/escrow-backend/internal/repository"
)

type UserService struct {
	r repo.Users
}

func NewUserService(r repo.Users) *UserService { return &UserService{r: r} }

func (s *UserService) Register(ctx context.Context, username, email, password string) (models.User, error) {
	u := models.User{
		Username: strings.TrimSpace(username),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Role:     models.RoleUser,
	}
	if err := u.Validate(); err != nil {
		return models.User{}, apperr.Validation(err.Error())
	}
	if len(password) < 8 {
		return models.User{}, apperr.Validation("password must be at least 8 characters")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, apperr.Internal("hash password", err)
	}
	return s.r.Create(ctx, u.Username, u.Email, hash, u.Role)
}

// Authenticate checks credentials and returns the user; token issuing lives
// in the handler with the TokenManager.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	u, err := s.r.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return models.User{}, apperr.Unauthorized("invalid credentials")
		}
		return models.User{}, err
	}
	if err := auth.VerifyPassword(password, u.PasswordHash); err != nil {
		return models.User{}, apperr.Unauthorized("invalid credentials")
	}
	return u, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (models.User, error) {
	return s.r.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.r.List(ctx)
}
