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

type BankHandler struct {
	Svc *services.BankService
}

func NewBankHandler(svc *services.BankService) *BankHandler {
	return &BankHandler{Svc: svc}
}

func (h *BankHandler) Add(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	var in services.AddBankAccountInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.Err(w, apperr.Validation("invalid json body"))
		return
	}
	a, err := h.Svc.Add(r.Context(), uid, in)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, a)
}

func (h *BankHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	accounts, err := h.Svc.List(r.Context(), uid)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, accounts)
}

func (h *BankHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	a, err := h.Svc.SetPrimary(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, a)
}

func (h *BankHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	if err := h.Svc.Delete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, nil)
}

func (h *BankHandler) Payouts(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	q := r.URL.Query()
	limit := validate.QueryInt(q, "limit", 20)
	offset := validate.QueryInt(q, "offset", 0)
	payouts, err := h.Svc.Payouts(r.Context(), uid, limit, offset)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, payouts)
}
