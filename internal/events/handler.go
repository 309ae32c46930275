package events

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/authorshaven/notify/internal/domain"
	"github.com/authorshaven/notify/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var (
	errMissingPayload = errors.New("payload does not match event kind")
	errUnknownKind    = errors.New("unknown event kind")
)

// HTTPHandler accepts domain events from collaborator services and publishes
// them on the bus. The route sits behind the service token, not user auth.
type HTTPHandler struct {
	bus       *Bus
	validator *validator.Validate
}

// NewHTTPHandler creates a new event intake handler.
func NewHTTPHandler(bus *Bus) *HTTPHandler {
	return &HTTPHandler{
		bus:       bus,
		validator: validator.New(),
	}
}

// RegisterRoutes registers event intake routes.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Post("/events", h.Ingest)
}

// EventRequest is the intake envelope. Exactly one payload must be present
// and it must match the kind.
type EventRequest struct {
	Kind           string                 `json:"kind" validate:"required,oneof=user.created follow.created article.created comment.created"`
	UserCreated    *UserCreatedPayload    `json:"user_created,omitempty"`
	FollowCreated  *FollowCreatedPayload  `json:"follow_created,omitempty"`
	ArticleCreated *ArticleCreatedPayload `json:"article_created,omitempty"`
	CommentCreated *CommentCreatedPayload `json:"comment_created,omitempty"`
}

// UserCreatedPayload carries a user registration event.
type UserCreatedPayload struct {
	UserID   string `json:"user_id" validate:"required,uuid"`
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// FollowCreatedPayload carries a new follow relation.
type FollowCreatedPayload struct {
	FollowerID       string `json:"follower_id" validate:"required,uuid"`
	FollowerUsername string `json:"follower_username" validate:"required"`
	FollowingID      string `json:"following_id" validate:"required,uuid"`
}

// ArticleCreatedPayload carries a published article.
type ArticleCreatedPayload struct {
	ArticleID      string `json:"article_id" validate:"required,uuid"`
	Title          string `json:"title" validate:"required"`
	Slug           string `json:"slug" validate:"required"`
	AuthorID       string `json:"author_id" validate:"required,uuid"`
	AuthorUsername string `json:"author_username" validate:"required"`
}

// CommentCreatedPayload carries a new comment on an article.
type CommentCreatedPayload struct {
	CommentID         string `json:"comment_id" validate:"required,uuid"`
	ArticleID         string `json:"article_id" validate:"required,uuid"`
	ArticleTitle      string `json:"article_title" validate:"required"`
	ArticleSlug       string `json:"article_slug" validate:"required"`
	ArticleAuthorID   string `json:"article_author_id" validate:"required,uuid"`
	CommenterID       string `json:"commenter_id" validate:"required,uuid"`
	CommenterUsername string `json:"commenter_username" validate:"required"`
}

// Ingest handles POST /events.
func (h *HTTPHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	event, err := h.toDomain(req)
	if err != nil {
		if _, ok := err.(validator.ValidationErrors); ok {
			httputil.ValidationError(w, err)
			return
		}
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	h.bus.Publish(r.Context(), event)

	httputil.Success(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// toDomain validates the payload matching the declared kind and converts it
// to a domain event.
func (h *HTTPHandler) toDomain(req EventRequest) (domain.Event, error) {
	switch domain.EventKind(req.Kind) {
	case domain.EventKindUserCreated:
		if req.UserCreated == nil {
			return nil, errMissingPayload
		}
		if err := h.validator.Struct(req.UserCreated); err != nil {
			return nil, err
		}
		return domain.UserCreated{
			UserID:   req.UserCreated.UserID,
			Username: req.UserCreated.Username,
			Email:    req.UserCreated.Email,
		}, nil
	case domain.EventKindFollowCreated:
		if req.FollowCreated == nil {
			return nil, errMissingPayload
		}
		if err := h.validator.Struct(req.FollowCreated); err != nil {
			return nil, err
		}
		return domain.FollowCreated{
			FollowerID:       req.FollowCreated.FollowerID,
			FollowerUsername: req.FollowCreated.FollowerUsername,
			FollowingID:      req.FollowCreated.FollowingID,
		}, nil
	case domain.EventKindArticleCreated:
		if req.ArticleCreated == nil {
			return nil, errMissingPayload
		}
		if err := h.validator.Struct(req.ArticleCreated); err != nil {
			return nil, err
		}
		return domain.ArticleCreated{
			ArticleID:      req.ArticleCreated.ArticleID,
			Title:          req.ArticleCreated.Title,
			Slug:           req.ArticleCreated.Slug,
			AuthorID:       req.ArticleCreated.AuthorID,
			AuthorUsername: req.ArticleCreated.AuthorUsername,
		}, nil
	case domain.EventKindCommentCreated:
		if req.CommentCreated == nil {
			return nil, errMissingPayload
		}
		if err := h.validator.Struct(req.CommentCreated); err != nil {
			return nil, err
		}
		return domain.CommentCreated{
			CommentID:         req.CommentCreated.CommentID,
			ArticleID:         req.CommentCreated.ArticleID,
			ArticleTitle:      req.CommentCreated.ArticleTitle,
			ArticleSlug:       req.CommentCreated.ArticleSlug,
			ArticleAuthorID:   req.CommentCreated.ArticleAuthorID,
			CommenterID:       req.CommentCreated.CommenterID,
			CommenterUsername: req.CommentCreated.CommenterUsername,
		}, nil
	default:
		return nil, errUnknownKind
	}
}
