package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tradeshield/escrow-backend/internal/api/httpx"
	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/middleware"
	"github.com/tradeshield/escrow-backend/internal/services"
)

type PaymentHandler struct {
	Svc *services.PaymentService
}

func NewPaymentHandler(svc *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{Svc: svc}
}

type initPaymentReq struct {
	EscrowID string `json:"escrow_id"`
}

func (h *PaymentHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	var req initPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EscrowID == "" {
		httpx.Err(w, apperr.Validation("escrow_id is required"))
		return
	}
	p, err := h.Svc.Initialize(r.Context(), uid, req.EscrowID)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, p)
}

type verifyPaymentReq struct {
	Reference string `json:"reference"`
}

// Verify is safe to call repeatedly for the same reference; replays return
// the stored payment without re-running the funded transition.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" {
		httpx.Err(w, apperr.Validation("reference is required"))
		return
	}
	p, err := h.Svc.Verify(r.Context(), req.Reference)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, p)
}
