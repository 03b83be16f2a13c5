// Package api exposes HTTP handlers for the dedup service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/dedup/internal/auth"
	"example.com/dedup/internal/domain"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/merge-requests/pending", h.listPending)
	mux.HandleFunc("/v1/merge-requests/pending-count", h.pendingCount)
	mux.HandleFunc("/v1/merge-requests/detect", h.detect)
	mux.HandleFunc("/v1/merge-requests/", h.requestAction)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// requestAction dispatches POST /v1/merge-requests/{id}/approve|reject.
func (h *Handler) requestAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/merge-requests/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "expected /v1/merge-requests/{id}/{action}")
		return
	}

	switch parts[1] {
	case "approve":
		h.approve(w, r, parts[0])
	case "reject":
		h.reject(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "invalid_request", "unknown action")
	}
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request, requestID string) {
	claims, ok := requireScope(w, r, auth.ScopeMergesReview)
	if !ok {
		return
	}

	req, err := h.service.Approve(r.Context(), claims.TenantID, requestID, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFoundOrResolved) {
			writeJSON(w, http.StatusNotFound, ResolveMergeResponse{Success: false, Error: "not_found_or_resolved"})
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ResolveMergeResponse{
		Success:             true,
		PrimaryActivityID:   req.PrimaryActivityID,
		DuplicateActivityID: req.DuplicateActivityID,
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, requestID string) {
	claims, ok := requireScope(w, r, auth.ScopeMergesReview)
	if !ok {
		return
	}

	if err := h.service.Reject(r.Context(), claims.TenantID, requestID, claims.Subject); err != nil {
		if errors.Is(err, domain.ErrNotFoundOrResolved) {
			writeJSON(w, http.StatusNotFound, ResolveMergeResponse{Success: false, Error: "not_found_or_resolved"})
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ResolveMergeResponse{Success: true})
}

func (h *Handler) pendingCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeMergesRead)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if strings.TrimSpace(userID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return
	}

	count, err := h.service.PendingCount(r.Context(), claims.TenantID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PendingCountResponse{UserID: userID, PendingCount: count})
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeMergesRead)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if strings.TrimSpace(userID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}

	requests, err := h.service.ListPending(r.Context(), claims.TenantID, userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]MergeRequestView, 0, len(requests))
	for _, req := range requests {
		items = append(items, toMergeRequestView(req))
	}
	writeJSON(w, http.StatusOK, ListPendingResponse{Items: items})
}

// detect is the internal pipeline entry point invoked by the activity store
// collaborator after it persists an activity.
func (h *Handler) detect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeMergesDetect)
	if !ok {
		return
	}

	var req DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.ActivityID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "activity_id is required")
		return
	}

	created, err := h.service.DetectCandidates(r.Context(), claims.TenantID, req.ActivityID)
	if err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "activity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, DetectResponse{MergeRequestIDs: created})
}

func requireScope(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return nil, false
	}
	return claims, true
}

// DetectRequest is the payload for POST /v1/merge-requests/detect.
type DetectRequest struct {
	ActivityID string `json:"activity_id"`
}

// DetectResponse lists the merge requests created by a detection run.
type DetectResponse struct {
	MergeRequestIDs []string `json:"merge_request_ids"`
}

// ResolveMergeResponse describes the outcome of an approve or reject call.
type ResolveMergeResponse struct {
	Success             bool   `json:"success"`
	PrimaryActivityID   string `json:"primary_activity_id,omitempty"`
	DuplicateActivityID string `json:"duplicate_activity_id,omitempty"`
	Error               string `json:"error,omitempty"`
}

// PendingCountResponse reports the size of a user's review queue.
type PendingCountResponse struct {
	UserID       string `json:"user_id"`
	PendingCount int    `json:"pending_count"`
}

// MergeReasonView exposes the audit record of matched signals.
type MergeReasonView struct {
	TimeDiffMinutes float64  `json:"time_diff_minutes"`
	DurationDiffPct float64  `json:"duration_diff_pct"`
	DistanceDiffPct float64  `json:"distance_diff_pct"`
	SameType        bool     `json:"same_type"`
	SameDate        bool     `json:"same_date"`
	MatchedSignals  []string `json:"matched_signals"`
}

// MergeRequestView exposes a merge request for review UIs.
type MergeRequestView struct {
	RequestID           string          `json:"request_id"`
	UserID              string          `json:"user_id"`
	PrimaryActivityID   string          `json:"primary_activity_id"`
	DuplicateActivityID string          `json:"duplicate_activity_id"`
	ConfidenceScore     int             `json:"confidence_score"`
	Status              string          `json:"status"`
	MergeReason         MergeReasonView `json:"merge_reason"`
	CreatedAt           time.Time       `json:"created_at"`
}

// ListPendingResponse packages the review queue.
type ListPendingResponse struct {
	Items []MergeRequestView `json:"items"`
}

func toMergeRequestView(req domain.MergeRequest) MergeRequestView {
	return MergeRequestView{
		RequestID:           req.ID,
		UserID:              req.UserID,
		PrimaryActivityID:   req.PrimaryActivityID,
		DuplicateActivityID: req.DuplicateActivityID,
		ConfidenceScore:     req.ConfidenceScore,
		Status:              string(req.Status),
		MergeReason: MergeReasonView{
			TimeDiffMinutes: req.MergeReason.TimeDiffMinutes,
			DurationDiffPct: req.MergeReason.DurationDiffPct,
			DistanceDiffPct: req.MergeReason.DistanceDiffPct,
			SameType:        req.MergeReason.SameType,
			SameDate:        req.MergeReason.SameDate,
			MatchedSignals:  req.MergeReason.MatchedSignals,
		},
		CreatedAt: req.CreatedAt,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
