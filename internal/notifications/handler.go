package notifications

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/authorshaven/notify/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrNotificationNotFound, Status: http.StatusNotFound, Message: "notification not found"},
	{Error: ErrNotificationNotOwned, Status: http.StatusForbidden, Message: "notification does not belong to user"},
	{Error: ErrSubscriptionNotFound, Status: http.StatusNotFound, Message: "subscription not found"},
}

// Handler handles HTTP requests for the notifications module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new notifications handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers notification routes (require auth).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/all", h.ListAll)
		r.Get("/read", h.ListRead)
		r.Get("/unread", h.ListUnread)
		r.Put("/read/{id}", h.MarkRead)
		r.Get("/subscriptions", h.GetSubscriptions)
		r.Patch("/subscriptions", h.UpdateSubscriptions)
	})
}

// UpdateSubscriptionsRequest represents request body for updating channel
// opt-in flags. Absent fields are left unchanged.
type UpdateSubscriptionsRequest struct {
	Email *bool `json:"email"`
	App   *bool `json:"app"`
}

// ListAll handles GET /notifications/all.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, FilterAll)
}

// ListRead handles GET /notifications/read.
func (h *Handler) ListRead(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, FilterRead)
}

// ListUnread handles GET /notifications/unread.
func (h *Handler) ListUnread(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, FilterUnread)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, filter ReadFilter) {
	userID := httputil.GetUserID(r.Context())

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	list, err := h.service.ListNotifications(r.Context(), userID, filter, limit, offset)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, list)
}

// MarkRead handles PUT /notifications/read/{id}.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	notificationID := chi.URLParam(r, "id")

	notification, err := h.service.MarkRead(r.Context(), notificationID, userID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, notification)
}

// GetSubscriptions handles GET /notifications/subscriptions.
func (h *Handler) GetSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())

	sub, err := h.service.GetSubscriptions(r.Context(), userID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, sub)
}

// UpdateSubscriptions handles PATCH /notifications/subscriptions.
func (h *Handler) UpdateSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())

	var req UpdateSubscriptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	sub, err := h.service.UpdateSubscriptions(r.Context(), userID, req.Email, req.App)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, sub)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
