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

type EscrowHandler struct {
	Svc *services.EscrowService
}

func NewEscrowHandler(svc *services.EscrowService) *EscrowHandler {
	return &EscrowHandler{Svc: svc}
}

func (h *EscrowHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	var in services.CreateEscrowInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.Err(w, apperr.Validation("invalid json body"))
		return
	}
	e, err := h.Svc.Create(r.Context(), uid, in)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, e)
}

func (h *EscrowHandler) Get(w http.ResponseWriter, r *http.Request) {
	u := middleware.FromCtx(r.Context())
	e, err := h.Svc.Get(r.Context(), u.UserID, u.Role, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, e)
}

func (h *EscrowHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	q := r.URL.Query()
	limit := validate.QueryInt(q, "limit", 20)
	offset := validate.QueryInt(q, "offset", 0)
	items, err := h.Svc.ListByUser(r.Context(), uid, limit, offset)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, items)
}

func (h *EscrowHandler) Accept(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	e, err := h.Svc.Accept(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, e)
}

func (h *EscrowHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	e, err := h.Svc.Cancel(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, e)
}

// Confirm is the buyer acknowledging receipt; it releases the funds to the
// seller. The /release route is an alias kept for older clients.
func (h *EscrowHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	e, err := h.Svc.ConfirmReceipt(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, e)
}
