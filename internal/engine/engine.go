// Package engine orchestrates analysis sessions: it holds loaded datasets
// in memory, runs the base scorer and the on-demand analyzer passes, keeps
// aggregate statistics current and writes result snapshots behind the scenes
// for the reporting views.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-utility/kestrel/internal/domain"
	"github.com/open-utility/kestrel/internal/peer"
	"github.com/open-utility/kestrel/internal/rules"
	"github.com/open-utility/kestrel/internal/scoring"
	"github.com/open-utility/kestrel/internal/stats"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownAnalyzer = errors.New("unknown analyzer")
)

// Analyzer module names accepted by ApplyAnalyzer.
const (
	ModuleTampering     = "tampering"
	ModuleRule120       = "rule120"
	ModuleInconsistency = "inconsistency"
	ModuleGeoRisk       = "georisk"
	ModuleCustom        = "custom"
)

// Session is one loaded dataset with its evolving scoring state. All
// mutation goes through the Engine, which serializes access.
type Session struct {
	ID   string
	Name string

	Dataset   domain.Dataset
	Blacklist domain.Blacklist

	// Scores stays sorted by total score descending.
	Scores []domain.RiskScore
	Stats  domain.EngineStats

	BuildingRisks []domain.BuildingRisk
	WeatherRisks  []domain.WeatherRisk

	CreatedAt time.Time
	UpdatedAt time.Time

	subscribers map[string]*domain.Subscriber
	scoreIndex  map[string]int
}

// Engine is the session registry and analyzer dispatcher. Repository and
// event bus are optional collaborators: persistence is write-behind and a
// failure there never fails an analysis call.
type Engine struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg   *domain.Config
	repo  domain.Repository
	bus   domain.EventBus
	rules *rules.Engine
	hdd   domain.HDDProvider

	regions func(city string) []domain.DistrictRegion
}

// New creates an engine. repo and bus may be nil in embedded use.
func New(cfg *domain.Config, repo domain.Repository, bus domain.EventBus, ruleEngine *rules.Engine, hdd domain.HDDProvider) *Engine {
	if cfg == nil {
		cfg = domain.DefaultConfig()
	}
	return &Engine{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		repo:     repo,
		bus:      bus,
		rules:    ruleEngine,
		hdd:      hdd,
	}
}

// Rules exposes the custom rule engine for the management API.
func (e *Engine) Rules() *rules.Engine {
	return e.rules
}

// LoadSession base-scores the dataset and registers it as a new session.
func (e *Engine) LoadSession(ctx context.Context, name string, dataset domain.Dataset) (*Session, error) {
	if len(dataset.Subscribers) == 0 {
		return nil, fmt.Errorf("dataset has no subscribers")
	}

	now := time.Now().UTC()
	session := &Session{
		ID:          uuid.New().String(),
		Name:        name,
		Dataset:     dataset,
		Blacklist:   domain.NewBlacklist(dataset.FraudMuhatapIDs, dataset.FraudTesisatIDs),
		CreatedAt:   now,
		UpdatedAt:   now,
		subscribers: make(map[string]*domain.Subscriber, len(dataset.Subscribers)),
	}

	for i := range session.Dataset.Subscribers {
		sub := &session.Dataset.Subscribers[i]
		session.subscribers[sub.TesisatNo] = sub
		session.Scores = append(session.Scores, scoring.Base(sub, session.Blacklist))
	}
	session.resort()

	e.mu.Lock()
	e.sessions[session.ID] = session
	e.mu.Unlock()

	e.persistSession(ctx, session)
	e.publish(ctx, domain.TopicSessionLoaded, map[string]any{
		"sessionId":       session.ID,
		"subscriberCount": len(dataset.Subscribers),
		"stats":           session.Stats,
	})

	slog.Info("session loaded",
		"session_id", session.ID,
		"subscribers", len(dataset.Subscribers),
		"kritik", session.Stats.Kritik,
	)

	return session, nil
}

// GetSession returns a live session by ID.
func (e *Engine) GetSession(sessionID string) (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	session, ok := e.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Sessions lists live sessions, newest first.
func (e *Engine) Sessions() []*Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ApplyAnalyzer runs one named analyzer pass over every subscriber in the
// session. Passes are idempotent; re-running a module is a no-op.
func (e *Engine) ApplyAnalyzer(ctx context.Context, sessionID, module string) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	before := criticalSet(session.Scores)

	switch module {
	case ModuleTampering:
		session.applyEach(scoring.Tampering)
	case ModuleRule120:
		session.applyEach(scoring.Rule120)
	case ModuleInconsistency:
		session.applyEach(scoring.Inconsistency)
	case ModuleGeoRisk:
		points := scoring.CollectHighRiskPoints(session.Scores, session.locate, session.Dataset.ReferenceLocations)
		session.applyEach(func(rs domain.RiskScore, sub *domain.Subscriber) domain.RiskScore {
			return scoring.GeoRisk(rs, sub, points)
		})
	case ModuleCustom:
		if e.rules == nil {
			return nil, fmt.Errorf("custom rule engine not configured")
		}
		session.applyEach(e.rules.Apply)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAnalyzer, module)
	}

	session.resort()
	session.UpdatedAt = time.Now().UTC()

	e.persistSession(ctx, session)
	e.publish(ctx, domain.TopicAnalyzerApplied, map[string]any{
		"sessionId": session.ID,
		"module":    module,
		"stats":     session.Stats,
	})
	e.raiseAlerts(ctx, session, before)

	slog.Info("analyzer applied",
		"session_id", session.ID,
		"module", module,
		"kritik", session.Stats.Kritik,
	)

	return session, nil
}

// Results returns the current scores, highest first. A limit of 0 returns
// everything.
func (e *Engine) Results(sessionID string, limit int) ([]domain.RiskScore, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	session, ok := e.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	scores := session.Scores
	if limit > 0 && limit < len(scores) {
		scores = scores[:limit]
	}
	out := make([]domain.RiskScore, len(scores))
	copy(out, scores)
	return out, nil
}

// Score returns one subscriber's current score.
func (e *Engine) Score(sessionID, tesisatNo string) (domain.RiskScore, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	session, ok := e.sessions[sessionID]
	if !ok {
		return domain.RiskScore{}, ErrSessionNotFound
	}
	idx, ok := session.scoreIndex[tesisatNo]
	if !ok {
		return domain.RiskScore{}, fmt.Errorf("subscriber %s not in session", tesisatNo)
	}
	return session.Scores[idx], nil
}

// Stats returns the current per-level counts.
func (e *Engine) Stats(sessionID string) (domain.EngineStats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	session, ok := e.sessions[sessionID]
	if !ok {
		return domain.EngineStats{}, ErrSessionNotFound
	}
	return session.Stats, nil
}

// RunBuildings runs the same-building peer comparison and caches the result
// on the session.
func (e *Engine) RunBuildings(ctx context.Context, sessionID string) ([]domain.BuildingRisk, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	risks := peer.AnalyzeBuildings(session.Dataset.Subscribers, e.cfg.Scoring.MinCleanNeighbors)
	session.BuildingRisks = risks
	session.UpdatedAt = time.Now().UTC()

	if e.repo != nil {
		if err := e.repo.SaveBuildingRisks(ctx, session.ID, risks); err != nil {
			slog.Warn("failed to persist building risks", "session_id", session.ID, "error", err)
		}
	}

	return risks, nil
}

// RunWeather runs the weather-normalized peer comparison for one city.
func (e *Engine) RunWeather(ctx context.Context, sessionID, city string) ([]domain.WeatherRisk, error) {
	if e.hdd == nil {
		return nil, fmt.Errorf("hdd provider not configured")
	}

	hddFactors, err := e.hdd.HDD(ctx, city)
	if err != nil {
		return nil, err
	}
	regions := e.regionsFor(city)

	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	risks := peer.AnalyzeWeather(session.Dataset.Subscribers, city, hddFactors, regions, e.cfg.Scoring.MinCleanNeighborsWeather)
	session.WeatherRisks = risks
	session.UpdatedAt = time.Now().UTC()

	return risks, nil
}

// SetRegionSource installs the district bounding-box lookup used by the
// weather analyzer. Called once from the composition root.
func (e *Engine) SetRegionSource(fn func(city string) []domain.DistrictRegion) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.regions = fn
}

func (e *Engine) regionsFor(city string) []domain.DistrictRegion {
	e.mu.RLock()
	fn := e.regions
	e.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(city)
}

// Export projects the session into flattened spreadsheet rows, ordered the
// same as Results.
func (e *Engine) Export(sessionID string) ([]domain.ExportRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	session, ok := e.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	records := make([]domain.ExportRecord, 0, len(session.Scores))
	for _, rs := range session.Scores {
		sub := session.subscribers[rs.TesisatNo]
		if sub == nil {
			continue
		}
		records = append(records, domain.ExportRecord{
			TesisatNo:          rs.TesisatNo,
			MuhatapNo:          rs.MuhatapNo,
			DisplayMuhatapNo:   rs.DisplayMuhatapNo,
			Address:            sub.Address,
			City:               sub.City,
			District:           sub.District,
			AboneTipi:          sub.AboneTipi,
			TotalScore:         rs.TotalScore,
			RiskLevel:          rs.RiskLevel,
			Reasons:            rs.ReasonSummary(),
			IsTamperingSuspect: rs.IsTamperingSuspect,
			Is120RuleSuspect:   rs.Is120RuleSuspect,
			HasWinterDrop:      rs.Inconsistency.HasWinterDrop,
			WinterAvg:          stats.WinterAvg(sub.Consumption),
			SummerAvg:          stats.SummerAvg(sub.Consumption),
			Monthly:            sub.Consumption,
		})
	}
	return records, nil
}

// BuildReportPayload aggregates the session into the payload handed to the
// external report generator: level counts plus the top scorers.
func (e *Engine) BuildReportPayload(sessionID string, topN int) (*domain.ReportPayload, error) {
	if topN <= 0 {
		topN = 5
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	session, ok := e.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	payload := &domain.ReportPayload{
		GeneratedAt: time.Now().UTC(),
		Stats:       session.Stats,
	}
	for i, rs := range session.Scores {
		if i >= topN {
			break
		}
		payload.Top = append(payload.Top, domain.ReportEntry{
			TesisatNo:  rs.TesisatNo,
			TotalScore: rs.TotalScore,
			RiskLevel:  rs.RiskLevel,
			Reasons:    rs.ReasonSummary(),
		})
	}
	return payload, nil
}

// PublishReportGenerated announces a finished report on the bus.
func (e *Engine) PublishReportGenerated(ctx context.Context, sessionID string) {
	e.publish(ctx, domain.TopicReportGenerated, map[string]any{
		"sessionId":   sessionID,
		"generatedAt": time.Now().UTC(),
	})
}

// applyEach runs one pure analyzer over every score in place.
func (s *Session) applyEach(fn func(domain.RiskScore, *domain.Subscriber) domain.RiskScore) {
	for i := range s.Scores {
		sub := s.subscribers[s.Scores[i].TesisatNo]
		if sub == nil {
			continue
		}
		s.Scores[i] = fn(s.Scores[i], sub)
	}
}

// resort restores the score ordering, rebuilds the index and recounts the
// level stats.
func (s *Session) resort() {
	sort.SliceStable(s.Scores, func(i, j int) bool {
		if s.Scores[i].TotalScore != s.Scores[j].TotalScore {
			return s.Scores[i].TotalScore > s.Scores[j].TotalScore
		}
		return s.Scores[i].TesisatNo < s.Scores[j].TesisatNo
	})

	s.scoreIndex = make(map[string]int, len(s.Scores))
	s.Stats = domain.EngineStats{}
	for i := range s.Scores {
		s.scoreIndex[s.Scores[i].TesisatNo] = i
		s.Stats.Count(s.Scores[i].RiskLevel)
	}
}

func (s *Session) locate(tesisatNo string) domain.Location {
	if sub := s.subscribers[tesisatNo]; sub != nil {
		return sub.Location
	}
	return domain.Location{}
}

func (e *Engine) persistSession(ctx context.Context, session *Session) {
	if e.repo == nil {
		return
	}
	record := &domain.SessionRecord{
		ID:              session.ID,
		Name:            session.Name,
		SubscriberCount: len(session.Dataset.Subscribers),
		Stats:           session.Stats,
		CreatedAt:       session.CreatedAt,
		UpdatedAt:       session.UpdatedAt,
	}
	if err := e.repo.SaveSession(ctx, record); err != nil {
		slog.Warn("failed to persist session", "session_id", session.ID, "error", err)
	}
	if err := e.repo.SaveRiskScores(ctx, session.ID, session.Scores); err != nil {
		slog.Warn("failed to persist risk scores", "session_id", session.ID, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, topic string, payload any) {
	if e.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, topic, data); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// raiseAlerts publishes an alert for every subscriber newly entering the
// critical band during the last pass.
func (e *Engine) raiseAlerts(ctx context.Context, session *Session, before map[string]struct{}) {
	now := time.Now().UTC()
	for _, rs := range session.Scores {
		if rs.RiskLevel != domain.LevelKritik {
			break // sorted descending, no criticals past here
		}
		if _, was := before[rs.TesisatNo]; was {
			continue
		}
		alert := domain.Alert{
			ID:         uuid.New().String(),
			SessionID:  session.ID,
			TesisatNo:  rs.TesisatNo,
			TotalScore: rs.TotalScore,
			RiskLevel:  rs.RiskLevel,
			Reasons:    rs.ReasonSummary(),
			CreatedAt:  now,
		}
		e.publish(ctx, domain.TopicAlert, alert)
	}
}

func criticalSet(scores []domain.RiskScore) map[string]struct{} {
	set := make(map[string]struct{})
	for _, rs := range scores {
		if rs.RiskLevel == domain.LevelKritik {
			set[rs.TesisatNo] = struct{}{}
		}
	}
	return set
}
