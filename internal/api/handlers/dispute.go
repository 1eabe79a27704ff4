package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradeshield/escrow-backend/internal/api/httpx"
	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/middleware"
	"github.com/tradeshield/escrow-backend/internal/services"
)

type DisputeHandler struct {
	Svc *services.DisputeService
}

func NewDisputeHandler(svc *services.DisputeService) *DisputeHandler {
	return &DisputeHandler{Svc: svc}
}

func (h *DisputeHandler) Raise(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	var in services.RaiseDisputeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.Err(w, apperr.Validation("invalid json body"))
		return
	}
	e, err := h.Svc.Raise(r.Context(), uid, in)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, e)
}

func (h *DisputeHandler) Get(w http.ResponseWriter, r *http.Request) {
	u := middleware.FromCtx(r.Context())
	e, err := h.Svc.Get(r.Context(), u.UserID, u.Role, chi.URLParam(r, "escrowID"))
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, e)
}

type respondReq struct {
	Message string `json:"message"`
}

func (h *DisputeHandler) Respond(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	var req respondReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Err(w, apperr.Validation("invalid json body"))
		return
	}
	e, err := h.Svc.Respond(r.Context(), uid, chi.URLParam(r, "id"), req.Message)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, e)
}

func (h *DisputeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	var in services.ResolveDisputeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.Err(w, apperr.Validation("invalid json body"))
		return
	}
	e, err := h.Svc.Resolve(r.Context(), uid, chi.URLParam(r, "id"), in)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, e)
}
