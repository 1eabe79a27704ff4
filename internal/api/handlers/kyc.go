package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradeshield/escrow-backend/internal/api/httpx"
	"github.com/tradeshield/escrow-backend/internal/api/validate"
	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/middleware"
	"github.com/tradeshield/escrow-backend/internal/services"
)

type KYCHandler struct {
	Svc *services.KYCService
}

func NewKYCHandler(svc *services.KYCService) *KYCHandler {
	return &KYCHandler{Svc: svc}
}

func (h *KYCHandler) Submit(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	var in services.KYCSubmission
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.Err(w, apperr.Validation("invalid json body"))
		return
	}
	v, err := h.Svc.Submit(r.Context(), uid, in)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, v)
}

func (h *KYCHandler) Status(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	v, err := h.Svc.Status(r.Context(), uid)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, v)
}

func (h *KYCHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := validate.QueryInt(q, "limit", 20)
	offset := validate.QueryInt(q, "offset", 0)
	items, err := h.Svc.ListPending(r.Context(), limit, offset)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, items)
}

type kycReviewReq struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

func (h *KYCHandler) Review(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	var req kycReviewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Err(w, apperr.Validation("invalid json body"))
		return
	}
	v, err := h.Svc.Review(r.Context(), uid, chi.URLParam(r, "userID"), req.Approve, req.Note)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, v)
}
