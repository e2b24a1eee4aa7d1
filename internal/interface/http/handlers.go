package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alem-hub/progress-ledger/internal/application/query"
	"github.com/alem-hub/progress-ledger/internal/domain/notification"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPRequest is the body of POST /v1/progress/xp.
// Non-positive amounts are accepted and leave the ledger unchanged.
type AwardXPRequest struct {
	Amount *int64 `json:"amount" validate:"required"`
	Reason string `json:"reason" validate:"max=200"`
}

// GrantBadgeRequest is the body of POST /v1/progress/badges.
type GrantBadgeRequest struct {
	ID          string `json:"id" validate:"required,max=128"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=1000"`
	Icon        string `json:"icon" validate:"max=128"`
}

// CompletionRequest is the body of POST /v1/completions.
type CompletionRequest struct {
	SourceID string `json:"source_id" validate:"required,max=128"`
	Title    string `json:"title" validate:"max=200"`
}

// ProgressResponse is the ledger state plus derived level values.
type ProgressResponse struct {
	query.LevelView
	Badges []progress.Badge `json:"badges"`
}

// AwardXPResponse reports the outcome of an XP award.
type AwardXPResponse struct {
	Applied   bool             `json:"applied"`
	LeveledUp bool             `json:"leveled_up"`
	Progress  ProgressResponse `json:"progress"`
}

// GrantBadgeResponse reports the outcome of a badge grant.
type GrantBadgeResponse struct {
	Granted  bool             `json:"granted"`
	Progress ProgressResponse `json:"progress"`
}

// CompletionResponse acknowledges a queued completion.
type CompletionResponse struct {
	EventID  string `json:"event_id"`
	SourceID string `json:"source_id"`
	Queued   bool   `json:"queued"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProgress handles GET /v1/progress.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	if !s.requireLedger(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.progressResponse(s.deps.Ledger.State()))
}

// handleAwardXP handles POST /v1/progress/xp.
func (s *Server) handleAwardXP(w http.ResponseWriter, r *http.Request) {
	if !s.requireLedger(w) {
		return
	}

	var req AwardXPRequest
	if !s.decode(w, r, &req) {
		return
	}

	result := s.deps.Ledger.AwardXP(r.Context(), progress.XP(*req.Amount), req.Reason)

	writeJSON(w, http.StatusOK, AwardXPResponse{
		Applied:   result.Applied,
		LeveledUp: result.LeveledUp,
		Progress:  s.progressResponse(result.Current),
	})
}

// handleGrantBadge handles POST /v1/progress/badges.
// 201 for a new badge, 200 when the badge was already held.
func (s *Server) handleGrantBadge(w http.ResponseWriter, r *http.Request) {
	if !s.requireLedger(w) {
		return
	}

	var req GrantBadgeRequest
	if !s.decode(w, r, &req) {
		return
	}

	badge := progress.Badge{
		ID:          strings.TrimSpace(req.ID),
		Title:       req.Title,
		Description: req.Description,
		Icon:        req.Icon,
	}
	if err := badge.Validate(); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "validation_failed", "Invalid badge", err.Error())
		return
	}

	result := s.deps.Ledger.GrantBadge(r.Context(), badge)

	status := http.StatusOK
	if result.Granted {
		status = http.StatusCreated
	}
	writeJSON(w, status, GrantBadgeResponse{
		Granted:  result.Granted,
		Progress: s.progressResponse(result.State),
	})
}

// handleReset handles POST /v1/progress/reset.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !s.requireLedger(w) {
		return
	}

	state := s.deps.Ledger.Reset(r.Context())
	logger.FromContext(r.Context()).Info("ledger reset via api")

	writeJSON(w, http.StatusOK, s.progressResponse(state))
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETIONS
// ══════════════════════════════════════════════════════════════════════════════

// handlePublishCompletion handles POST /v1/completions.
// The event is queued; rewards are applied asynchronously by the bus handler.
func (s *Server) handlePublishCompletion(w http.ResponseWriter, r *http.Request) {
	if s.deps.Completions == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Completion bus not configured")
		return
	}

	var req CompletionRequest
	if !s.decode(w, r, &req) {
		return
	}

	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "validation_failed", "Request validation failed", shared.ErrEmptySourceID.Error())
		return
	}

	event := shared.NewUnitCompletedEvent(sourceID, req.Title)
	event.BaseEvent = event.WithCorrelationID(getRequestID(r.Context()))

	if err := s.deps.Completions.Publish(event); err != nil {
		if errors.Is(err, shared.ErrClosed) {
			writeJSONError(w, http.StatusServiceUnavailable, "bus_closed", "Completion bus is shutting down")
			return
		}
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "publish_failed", "Completion rejected", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, CompletionResponse{
		EventID:  event.ID,
		SourceID: event.SourceID,
		Queued:   true,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetNotifications handles GET /v1/notifications?limit=N.
func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	if s.deps.Feed == nil {
		writeJSON(w, http.StatusOK, []notification.Notification{})
		return
	}

	limit := getQueryParamInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		writeJSONError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 100")
		return
	}

	items := s.deps.Feed.Recent(limit)
	views := make([]notificationView, 0, len(items))
	for _, n := range items {
		views = append(views, notificationView{Notification: n, Message: n.Message()})
	}

	writeJSON(w, http.StatusOK, views)
}

type notificationView struct {
	notification.Notification
	Message string `json:"message"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) requireLedger(w http.ResponseWriter) bool {
	if s.deps.Ledger == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Ledger not configured")
		return false
	}
	return true
}

func (s *Server) progressResponse(state progress.State) ProgressResponse {
	badges := state.Badges
	if badges == nil {
		badges = []progress.Badge{}
	}
	return ProgressResponse{
		LevelView: query.BuildLevelView(state, s.config.RecentBadges),
		Badges:    badges,
	}
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
			return false
		}
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON", err.Error())
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "validation_failed", "Request validation failed", validationDetails(err))
		return false
	}

	return true
}

func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// getQueryParamInt extracts an integer query parameter with a default value.
func getQueryParamInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// JSON RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the standard JSON response envelope.
type JSONResponse struct {
	Success bool          `json:"success"`
	Data    interface{}   `json:"data,omitempty"`
	Error   *APIError     `json:"error,omitempty"`
	Meta    *ResponseMeta `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	response := JSONResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta: &ResponseMeta{
			Timestamp: time.Now().UTC(),
			Version:   "v1",
		},
	}

	_ = json.NewEncoder(w).Encode(response)
}

// writeJSONError writes an error JSON response.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSONErrorWithDetails(w, status, code, message, "")
}

// writeJSONErrorWithDetails writes an error JSON response with details.
func writeJSONErrorWithDetails(w http.ResponseWriter, status int, code, message, details string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	response := JSONResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: &ResponseMeta{
			Timestamp: time.Now().UTC(),
		},
	}

	_ = json.NewEncoder(w).Encode(response)
}
