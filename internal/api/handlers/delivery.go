package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tradeshield/escrow-backend/internal/api/httpx"
	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/middleware"
	"github.com/tradeshield/escrow-backend/internal/services"
)

type DeliveryHandler struct {
	Svc *services.EscrowService
}

func NewDeliveryHandler(svc *services.EscrowService) *DeliveryHandler {
	return &DeliveryHandler{Svc: svc}
}

type deliveryReq struct {
	EscrowID string `json:"escrow_id"`
	services.DeliveryInput
}

func (h *DeliveryHandler) UploadProof(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	var req deliveryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Err(w, apperr.Validation("invalid json body"))
		return
	}
	if req.EscrowID == "" {
		httpx.Err(w, apperr.Validation("escrow_id is required"))
		return
	}
	e, err := h.Svc.MarkDelivered(r.Context(), uid, req.EscrowID, req.DeliveryInput)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, e)
}

func (h *DeliveryHandler) UpdateTracking(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	var req deliveryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Err(w, apperr.Validation("invalid json body"))
		return
	}
	if req.EscrowID == "" {
		httpx.Err(w, apperr.Validation("escrow_id is required"))
		return
	}
	e, err := h.Svc.UpdateTracking(r.Context(), uid, req.EscrowID, req.DeliveryInput)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, e)
}
