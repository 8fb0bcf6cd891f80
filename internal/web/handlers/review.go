package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-review/internal/auth"
	"github.com/kozaktomas/face-review/internal/review"
	"github.com/kozaktomas/face-review/internal/web/middleware"
	"github.com/kozaktomas/face-review/internal/webhook"
)

// ReviewService is the part of the review workflow the handlers call.
type ReviewService interface {
	Allocate(ctx context.Context, adminID string) (*review.UserForReview, int, error)
	Decide(ctx context.Context, now time.Time, admin *auth.Identity, userID, decision, mostSimilar string) (review.Outcome, error)
}

// ReviewHandler serves the admin review endpoints.
type ReviewHandler struct {
	service ReviewService
}

func NewReviewHandler(service ReviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

type candidateResponse struct {
	UserID string `json:"userId"`
	Photo  string `json:"photo"` // base64 JPEG
}

type nextReviewResponse struct {
	UserID      string              `json:"userId"`
	Photo       string              `json:"photo"` // base64 JPEG
	Retries     int                 `json:"retries"`
	QueueLength int                 `json:"queueLength"`
	Candidates  []candidateResponse `json:"possibleDuplicates"`
}

type decisionRequest struct {
	Decision    string `json:"decision"`
	MostSimilar string `json:"mostSimilarUserToDuplicate,omitempty"`
}

// Next allocates the next queued account for the calling admin.
// Responds 204 when the queue is empty.
func (h *ReviewHandler) Next(w http.ResponseWriter, r *http.Request) {
	admin := middleware.GetIdentity(r.Context())
	if admin == nil || admin.Role != "admin" {
		respondForbidden(w, "admin role required")
		return
	}

	user, queueLen, err := h.service.Allocate(r.Context(), admin.UserID)
	if err != nil {
		log.Printf("review allocation for %s failed: %v", sanitizeForLog(admin.UserID), err)
		respondError(w, http.StatusInternalServerError, "failed to allocate review user")
		return
	}
	if user == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	candidates := make([]candidateResponse, 0, len(user.Candidates))
	for _, c := range user.Candidates {
		candidates = append(candidates, candidateResponse{
			UserID: c.UserID,
			Photo:  base64.StdEncoding.EncodeToString(c.Photo),
		})
	}

	respondJSON(w, http.StatusOK, nextReviewResponse{
		UserID:      user.Account.UserID,
		Photo:       base64.StdEncoding.EncodeToString(user.Photo),
		Retries:     user.Retries,
		QueueLength: queueLen,
		Candidates:  candidates,
	})
}

// Decide applies an admin decision to the account in the path.
func (h *ReviewHandler) Decide(w http.ResponseWriter, r *http.Request) {
	admin := middleware.GetIdentity(r.Context())
	if admin == nil || admin.Role != "admin" {
		respondForbidden(w, "admin role required")
		return
	}

	userID := chi.URLParam(r, "user_id")

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	log.Printf("admin decision - user_id %s = %s processing by admin %s",
		sanitizeForLog(userID), sanitizeForLog(req.Decision), sanitizeForLog(admin.UserID))

	outcome, err := h.service.Decide(r.Context(), time.Now(), admin, userID, req.Decision, req.MostSimilar)
	if err != nil {
		h.respondDecisionError(w, userID, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"result": decisionResult(outcome),
	})
}

func decisionResult(outcome review.Outcome) string {
	if outcome.Kind == review.OutcomeForwardedToReview {
		return "forwarded_to_review"
	}
	return "ok"
}

func (h *ReviewHandler) respondDecisionError(w http.ResponseWriter, userID string, err error) {
	log.Printf("admin decision on %s failed: %v", sanitizeForLog(userID), err)

	switch {
	case errors.Is(err, review.ErrInvalidDecision):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, review.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, review.ErrNoData):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, webhook.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "failed to process decision")
	}
}
