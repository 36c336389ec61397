package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/open-utility/kestrel/internal/domain"
	"github.com/open-utility/kestrel/internal/engine"
	"github.com/open-utility/kestrel/internal/hdd"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	engine   *engine.Engine
	repo     domain.Repository
	cache    domain.Cache
	geocoder domain.ReverseGeocoder
	reporter domain.ReportGenerator
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(eng *engine.Engine, repo domain.Repository, cache domain.Cache, geocoder domain.ReverseGeocoder, reporter domain.ReportGenerator, version string) *Handler {
	return &Handler{
		engine:   eng,
		repo:     repo,
		cache:    cache,
		geocoder: geocoder,
		reporter: reporter,
		version:  version,
	}
}

// CreateSessionRequest is the request body for POST /sessions.
type CreateSessionRequest struct {
	Name    string         `json:"name,omitempty"`
	Dataset domain.Dataset `json:"dataset"`
}

// SessionResponse is the session summary returned by session endpoints.
type SessionResponse struct {
	ID              string             `json:"id"`
	Name            string             `json:"name,omitempty"`
	SubscriberCount int                `json:"subscriberCount"`
	Stats           domain.EngineStats `json:"stats"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func sessionResponse(s *engine.Session) SessionResponse {
	return SessionResponse{
		ID:              s.ID,
		Name:            s.Name,
		SubscriberCount: len(s.Dataset.Subscribers),
		Stats:           s.Stats,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// CreateSession handles POST /sessions: it base-scores the dataset and
// registers the analysis session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Dataset.Subscribers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "dataset.subscribers must not be empty",
		})
		return
	}

	session, err := h.engine.LoadSession(ctx, req.Name, req.Dataset)
	if err != nil {
		slog.Error("failed to load session", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse(session))
}

// ListSessions returns live sessions, newest first.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.engine.Sessions()

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse(s))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": out,
		"count":    len(out),
	})
}

// GetSession returns one session's summary.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.engine.GetSession(chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

// GetResults returns the current scores, highest first. An optional limit
// query parameter truncates the list.
func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	scores, err := h.engine.Results(chi.URLParam(r, "id"), limit)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": scores,
		"count":   len(scores),
	})
}

// GetScore returns one subscriber's current score.
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	score, err := h.engine.Score(chi.URLParam(r, "id"), chi.URLParam(r, "tesisatNo"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// GetStats returns the current per-level counts.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ApplyAnalyzer handles POST /sessions/{id}/analyze/{module}: it runs one
// named analyzer pass over the whole session.
func (h *Handler) ApplyAnalyzer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	module := chi.URLParam(r, "module")

	session, err := h.engine.ApplyAnalyzer(ctx, chi.URLParam(r, "id"), module)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownAnalyzer) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId": session.ID,
		"module":    module,
		"stats":     session.Stats,
	})
}

// GetBuildingRisks runs the same-building peer comparison for the session.
func (h *Handler) GetBuildingRisks(w http.ResponseWriter, r *http.Request) {
	risks, err := h.engine.RunBuildings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"buildingRisks": risks,
		"count":         len(risks),
	})
}

// GetWeatherRisks runs the weather-normalized peer comparison for one city.
func (h *Handler) GetWeatherRisks(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "city query parameter is required",
		})
		return
	}

	risks, err := h.engine.RunWeather(r.Context(), chi.URLParam(r, "id"), city)
	if err != nil {
		if errors.Is(err, hdd.ErrUnknownCity) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": err.Error(),
			})
			return
		}
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"city":         city,
		"weatherRisks": risks,
		"count":        len(risks),
	})
}

// ExportResults returns the flattened spreadsheet projection of the session.
func (h *Handler) ExportResults(w http.ResponseWriter, r *http.Request) {
	records, err := h.engine.Export(chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// ListAlerts returns the persisted alerts for a session.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	alerts, err := h.repo.ListAlerts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GenerateReportRequest is the optional request body for POST
// /sessions/{id}/report.
type GenerateReportRequest struct {
	TopN int `json:"topN,omitempty"`
}

// GenerateReport builds the aggregate payload and hands it to the external
// text service. A service outage yields the Turkish fallback text, never an
// error status.
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	var req GenerateReportRequest
	if r.Body != nil {
		// Body is optional; an empty body keeps the defaults.
		json.NewDecoder(r.Body).Decode(&req)
	}

	payload, err := h.engine.BuildReportPayload(sessionID, req.TopN)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	if h.reporter == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "report generator not available",
		})
		return
	}

	text, err := h.reporter.Generate(ctx, payload)
	if err != nil {
		slog.Error("report generation failed", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "report generation failed",
		})
		return
	}

	h.engine.PublishReportGenerated(ctx, sessionID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"report":  text,
		"payload": payload,
	})
}

// GeocodeRequest is the request body for POST /geocode.
type GeocodeRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geocode resolves a coordinate to a street address. Upstream failures
// surface as placeholder address text, not error statuses.
func (h *Handler) Geocode(w http.ResponseWriter, r *http.Request) {
	if h.geocoder == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "geocoder not available",
		})
		return
	}

	var req GeocodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result, err := h.geocoder.Reverse(r.Context(), domain.Location{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		slog.Error("reverse geocode failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "reverse geocode failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns all loaded custom rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	ruleEngine := h.engine.Rules()
	if ruleEngine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rule engine not available",
		})
		return
	}

	loadedRules := ruleEngine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	ruleEngine := h.engine.Rules()
	if ruleEngine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rule engine not available",
		})
		return
	}

	for _, rule := range ruleEngine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a custom rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Points      int    `json:"points"`
	Tag         string `json:"tag"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule compiles, loads, and persists a new custom rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ruleEngine := h.engine.Rules()
	if ruleEngine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rule engine not available",
		})
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if req.Points <= 0 || req.Points > domain.MaxCustomRulePoints {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "points must be between 1 and " + strconv.Itoa(domain.MaxCustomRulePoints),
		})
		return
	}

	now := time.Now().UTC()
	rule := &domain.CustomRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Points:      req.Points,
		Tag:         req.Tag,
		Enabled:     req.Enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Validate CEL expression by attempting to load
	if err := ruleEngine.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	// Persist to repository
	if h.repo != nil {
		if err := h.repo.SaveCustomRule(ctx, rule); err != nil {
			slog.Error("failed to save custom rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("custom rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created and loaded into the engine.",
	})
}

// ReloadRules reloads all custom rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ruleEngine := h.engine.Rules()
	if ruleEngine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rule engine not available",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListCustomRules(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := ruleEngine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   ruleEngine.RulesCount(),
	})
}

func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "session not found",
		})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
