package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"goflare.io/gridiron"
	"goflare.io/gridiron/internal/normalize"
	"goflare.io/gridiron/internal/predict"
	"goflare.io/gridiron/internal/upstream"
)

type fakeBackend struct {
	err        error
	lastSeason string
	lastArg    string
}

func (b *fakeBackend) GetSchedule(_ context.Context, season, week string) ([]gridiron.ScheduleGame, error) {
	b.lastSeason, b.lastArg = season, week
	return []gridiron.ScheduleGame{{"id": 1}}, b.err
}

func (b *fakeBackend) GetTeamStats(_ context.Context, season, team string) ([]gridiron.TeamStat, error) {
	b.lastSeason, b.lastArg = season, team
	if b.err != nil {
		return nil, b.err
	}
	return normalize.TeamStats(map[string]any{"teamStatsTotals": []any{
		map[string]any{"team": map[string]any{"abbreviation": "kc"}, "yds": 350.0},
	}}), nil
}

func (b *fakeBackend) GetPlayerStats(_ context.Context, season, player string) ([]gridiron.PlayerStat, error) {
	b.lastSeason, b.lastArg = season, player
	return []gridiron.PlayerStat{}, b.err
}

func (b *fakeBackend) Predict(_ context.Context, home, away, season string) (gridiron.Prediction, error) {
	if home == "" || away == "" {
		return gridiron.Prediction{}, gridiron.ErrValidation
	}
	if b.err != nil {
		return gridiron.Prediction{}, b.err
	}
	return predict.Score(home, away, nil, nil, predict.DefaultModel()), nil
}

func newTestRouter(t *testing.T, b Backend) http.Handler {
	t.Helper()
	logger := zaptest.NewLogger(t)
	h := NewHandler(b, "mysportsfeeds", logger)
	h.now = func() time.Time { return time.Date(2025, 9, 8, 12, 0, 0, 0, time.UTC) }
	return NewRouter(h, RouterOptions{Metrics: prometheus.NewRegistry(), Logger: logger})
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := get(t, newTestRouter(t, &fakeBackend{}), "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var body HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !body.OK || body.Provider != "mysportsfeeds" || body.Time != "2025-09-08T12:00:00.000Z" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestScheduleParams(t *testing.T) {
	b := &fakeBackend{}
	w := get(t, newTestRouter(t, b), "/api/schedule?season=2024&week=5")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if b.lastSeason != "2024" || b.lastArg != "5" {
		t.Errorf("season/week = %q/%q", b.lastSeason, b.lastArg)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestTeamStatsBody(t *testing.T) {
	b := &fakeBackend{}
	w := get(t, newTestRouter(t, b), "/api/team-stats?team=kc")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if b.lastArg != "kc" {
		t.Errorf("team = %q", b.lastArg)
	}
	var teams []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&teams); err != nil {
		t.Fatal(err)
	}
	team := teams[0]["team"].(map[string]any)
	if team["abbreviation"] != "KC" {
		t.Errorf("abbreviation = %v", team["abbreviation"])
	}
	if teams[0]["offenseYdsPerGame"] != 350.0 {
		t.Errorf("offenseYdsPerGame = %v", teams[0]["offenseYdsPerGame"])
	}
	if _, ok := teams[0]["raw"]; !ok {
		t.Error("raw record should be echoed")
	}
}

func TestPlayerStatsParam(t *testing.T) {
	b := &fakeBackend{}
	get(t, newTestRouter(t, b), "/api/player-stats?playerId=42")
	if b.lastArg != "42" {
		t.Errorf("player = %q", b.lastArg)
	}
}

func TestPredictValidation(t *testing.T) {
	w := get(t, newTestRouter(t, &fakeBackend{}), "/api/predict?home=KC")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	var body ErrorResponse
	json.NewDecoder(w.Body).Decode(&body)
	if body.Error != "home and away required" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestPredictNeutral(t *testing.T) {
	w := get(t, newTestRouter(t, &fakeBackend{}), "/api/predict?home=KC&away=XYZ")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var body struct {
		HomeProb     float64        `json:"homeProb"`
		AwayProb     float64        `json:"awayProb"`
		ModelDetails map[string]any `json:"modelDetails"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.HomeProb != 0.5 || body.AwayProb != 0.5 {
		t.Errorf("probs = %v/%v", body.HomeProb, body.AwayProb)
	}
	if body.ModelDetails["note"] != predict.MissingStatsNote {
		t.Errorf("modelDetails = %v", body.ModelDetails)
	}
}

func TestUpstreamFailures(t *testing.T) {
	upErr := &upstream.RequestError{
		Resource:   upstream.TeamStats,
		StatusCode: http.StatusUnauthorized,
		Body:       "bad key",
		Err:        errors.New("unexpected status 401"),
	}
	tests := []struct {
		path string
		want string
	}{
		{"/api/schedule", "Failed fetching schedule"},
		{"/api/team-stats", "Failed fetching team stats"},
		{"/api/player-stats", "Failed fetching player stats"},
		{"/api/predict?home=KC&away=BUF", "Prediction failed"},
	}
	h := newTestRouter(t, &fakeBackend{err: upErr})
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, h, tt.path)
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("expected status 500, got %d", w.Code)
			}
			var body ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Error != tt.want {
				t.Errorf("error = %q, want %q", body.Error, tt.want)
			}
			if body.Details != upErr.Error() {
				t.Errorf("details = %q", body.Details)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := get(t, newTestRouter(t, &fakeBackend{}), "/metrics")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t, &fakeBackend{})
	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
