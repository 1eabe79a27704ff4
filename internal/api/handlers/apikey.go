package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradeshield/escrow-backend/internal/api/httpx"
	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/middleware"
	"github.com/tradeshield/escrow-backend/internal/models"
	"github.com/tradeshield/escrow-backend/internal/services"
)

type APIKeyHandler struct {
	Svc *services.APIKeyService
}

func NewAPIKeyHandler(svc *services.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{Svc: svc}
}

type createdKeyResp struct {
	Key models.APIKey `json:"key"`
	// Secret is only ever returned here; it cannot be fetched again.
	Secret string `json:"secret"`
}

func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	var in services.CreateAPIKeyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.Err(w, apperr.Validation("invalid json body"))
		return
	}
	key, secret, err := h.Svc.Create(r.Context(), uid, in)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, createdKeyResp{Key: key, Secret: secret})
}

func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	keys, err := h.Svc.List(r.Context(), uid)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, keys)
}

func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	key, err := h.Svc.Revoke(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, key)
}
