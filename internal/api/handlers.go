// Package api exposes the service over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"goflare.io/gridiron"
	"goflare.io/gridiron/pkg/serialization"
)

// Backend is the subset of the service the handlers need.
type Backend interface {
	GetSchedule(ctx context.Context, season, week string) ([]gridiron.ScheduleGame, error)
	GetTeamStats(ctx context.Context, season, team string) ([]gridiron.TeamStat, error)
	GetPlayerStats(ctx context.Context, season, player string) ([]gridiron.PlayerStat, error)
	Predict(ctx context.Context, home, away, season string) (gridiron.Prediction, error)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is the body of /api/health.
type HealthResponse struct {
	OK       bool   `json:"ok"`
	Provider string `json:"provider"`
	Time     string `json:"time"`
}

const isoMillis = "2006-01-02T15:04:05.000Z"

// Handler contains dependencies for HTTP handlers
type Handler struct {
	backend  Backend
	provider string
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewHandler creates a new handler with dependencies
func NewHandler(backend Backend, provider string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		backend:  backend,
		provider: provider,
		timeout:  30 * time.Second,
		now:      time.Now,
		logger:   logger,
	}
}

// Health reports liveness and the configured provider.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, HealthResponse{
		OK:       true,
		Provider: h.provider,
		Time:     h.now().UTC().Format(isoMillis),
	})
}

// Schedule returns the season schedule.
// Query params: season, week
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	games, err := h.backend.GetSchedule(ctx, q.Get("season"), q.Get("week"))
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed fetching schedule", err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, games)
}

// TeamStats returns season team totals.
// Query params: season, team
func (h *Handler) TeamStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	teams, err := h.backend.GetTeamStats(ctx, q.Get("season"), q.Get("team"))
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed fetching team stats", err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, teams)
}

// PlayerStats returns season player totals.
// Query params: season, playerId
func (h *Handler) PlayerStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	players, err := h.backend.GetPlayerStats(ctx, q.Get("season"), q.Get("playerId"))
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed fetching player stats", err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, players)
}

// Predict scores a matchup.
// Query params: home, away, season
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	result, err := h.backend.Predict(ctx, q.Get("home"), q.Get("away"), q.Get("season"))
	switch {
	case errors.Is(err, gridiron.ErrValidation):
		respondJSON(w, h.logger, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		h.respondError(w, http.StatusInternalServerError, "Prediction failed", err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, result)
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := serialization.JSONEncoder(w).Encode(data); err != nil {
		logger.Error("error encoding response", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string, err error) {
	fields := []zap.Field{zap.String("message", message), zap.Error(err)}
	var reqErr *gridiron.UpstreamRequestError
	if errors.As(err, &reqErr) {
		fields = append(fields,
			zap.String("resource", string(reqErr.Resource)),
			zap.Int("status", reqErr.StatusCode),
			zap.String("body", reqErr.Body))
	}
	h.logger.Error(strings.ToLower(message), fields...)

	respondJSON(w, h.logger, status, ErrorResponse{Error: message, Details: err.Error()})
}
