package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tradeshield/escrow-backend/internal/api/httpx"
	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/auth"
	"github.com/tradeshield/escrow-backend/internal/middleware"
	"github.com/tradeshield/escrow-backend/internal/services"
)

type AuthHandler struct {
	Users *services.UserService
	TM    *auth.TokenManager
}

func NewAuthHandler(users *services.UserService, tm *auth.TokenManager) *AuthHandler {
	return &AuthHandler{Users: users, TM: tm}
}

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds until the access token expires
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Err(w, apperr.Validation("invalid json body"))
		return
	}
	u, err := h.Users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, u)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Err(w, apperr.Validation("invalid json body"))
		return
	}
	u, err := h.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	access, refresh, exp, err := h.TM.GeneratePair(u.ID, u.Role)
	if err != nil {
		httpx.Err(w, apperr.Internal("token generation failed", err))
		return
	}
	httpx.OK(w, http.StatusOK, tokenResp{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	})
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.Err(w, apperr.Validation("refresh_token is required"))
		return
	}
	claims, isRefresh, err := h.TM.ParseAny(req.RefreshToken)
	if err != nil || !isRefresh {
		httpx.Err(w, apperr.Unauthorized("invalid refresh token"))
		return
	}
	access, refresh, exp, err := h.TM.GeneratePair(claims.UserID, claims.Role)
	if err != nil {
		httpx.Err(w, apperr.Internal("token generation failed", err))
		return
	}
	httpx.OK(w, http.StatusOK, tokenResp{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserID(r.Context())
	if !ok {
		httpx.Err(w, apperr.Unauthorized("missing user"))
		return
	}
	u, err := h.Users.GetByID(r.Context(), uid)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, u)
}
