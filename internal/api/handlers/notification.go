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

type NotificationHandler struct {
	Svc *services.NotificationService
}

func NewNotificationHandler(svc *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{Svc: svc}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	q := r.URL.Query()
	page := validate.QueryInt(q, "page", 1)
	limit := validate.QueryInt(q, "limit", 20)
	unreadOnly := validate.QueryBool(q, "unreadOnly")
	res, err := h.Svc.List(r.Context(), uid, unreadOnly, page, limit)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, res)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	n, err := h.Svc.MarkRead(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, n)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	count, err := h.Svc.MarkAllRead(r.Context(), uid)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int{"updated": count})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	if err := h.Svc.Delete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, nil)
}

func (h *NotificationHandler) ClearRead(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	count, err := h.Svc.ClearRead(r.Context(), uid)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int{"deleted": count})
}

func (h *NotificationHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	s, err := h.Svc.Settings(r.Context(), uid)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, s)
}

type settingsReq struct {
	EmailEnabled bool `json:"email_enabled"`
	PushEnabled  bool `json:"push_enabled"`
}

func (h *NotificationHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	var req settingsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Err(w, apperr.Validation("invalid json body"))
		return
	}
	s, err := h.Svc.UpdateSettings(r.Context(), uid, req.EmailEnabled, req.PushEnabled)
	if err != nil {
		httpx.Err(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, s)
}
