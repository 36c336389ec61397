// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/open-utility/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveSession upserts an analysis session summary.
func (r *SQLRepository) SaveSession(ctx context.Context, session *domain.SessionRecord) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	stats, _ := json.Marshal(session.Stats)

	query := `
		INSERT INTO sessions (id, name, subscriber_count, stats, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			subscriber_count = excluded.subscriber_count,
			stats = excluded.stats,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		session.ID, session.Name, session.SubscriberCount,
		string(stats), session.CreatedAt, session.UpdatedAt,
	)
	return err
}

// GetSession retrieves a session summary by ID.
func (r *SQLRepository) GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, subscriber_count, stats, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`

	var session domain.SessionRecord
	var stats string

	err := r.db.QueryRowContext(ctx, r.rebind(query), sessionID).Scan(
		&session.ID, &session.Name, &session.SubscriberCount,
		&stats, &session.CreatedAt, &session.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(stats), &session.Stats)

	return &session, nil
}

// ListSessions retrieves all sessions, newest first.
func (r *SQLRepository) ListSessions(ctx context.Context) ([]*domain.SessionRecord, error) {
	query := `
		SELECT id, name, subscriber_count, stats, created_at, updated_at
		FROM sessions
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.SessionRecord
	for rows.Next() {
		var session domain.SessionRecord
		var stats string

		if err := rows.Scan(
			&session.ID, &session.Name, &session.SubscriberCount,
			&stats, &session.CreatedAt, &session.UpdatedAt,
		); err != nil {
			return nil, err
		}

		json.Unmarshal([]byte(stats), &session.Stats)
		sessions = append(sessions, &session)
	}

	return sessions, rows.Err()
}

// SaveRiskScores replaces the persisted scores for a session. Scoring is an
// in-memory batch; this is the write-behind snapshot for reporting views.
func (r *SQLRepository) SaveRiskScores(ctx context.Context, sessionID string, scores []domain.RiskScore) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM risk_scores WHERE session_id = ?`), sessionID); err != nil {
		return err
	}

	insert := r.rebind(`
		INSERT INTO risk_scores (
			session_id, tesisat_no, muhatap_no, display_muhatap_no,
			total_score, risk_level, breakdown, reasons,
			is_tampering_suspect, is_120_rule_suspect, inconsistency, stages
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	for _, score := range scores {
		breakdown, _ := json.Marshal(score.Breakdown)
		reasons, _ := json.Marshal(score.Reasons)
		inconsistency, _ := json.Marshal(score.Inconsistency)
		stages, _ := json.Marshal(score.Stages)

		if _, err := tx.ExecContext(ctx, insert,
			sessionID, score.TesisatNo, score.MuhatapNo, score.DisplayMuhatapNo,
			score.TotalScore, string(score.RiskLevel), string(breakdown), string(reasons),
			boolToInt(score.IsTamperingSuspect), boolToInt(score.Is120RuleSuspect),
			string(inconsistency), string(stages),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListRiskScores retrieves persisted scores for a session, highest first.
// A limit of 0 returns everything.
func (r *SQLRepository) ListRiskScores(ctx context.Context, sessionID string, limit int) ([]domain.RiskScore, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	query := `
		SELECT tesisat_no, muhatap_no, display_muhatap_no,
			   total_score, risk_level, breakdown, reasons,
			   is_tampering_suspect, is_120_rule_suspect, inconsistency, stages
		FROM risk_scores
		WHERE session_id = ?
		ORDER BY total_score DESC, tesisat_no
	`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []domain.RiskScore
	for rows.Next() {
		var score domain.RiskScore
		var level, breakdown, reasons, inconsistency, stages string
		var tampering, rule120 int

		if err := rows.Scan(
			&score.TesisatNo, &score.MuhatapNo, &score.DisplayMuhatapNo,
			&score.TotalScore, &level, &breakdown, &reasons,
			&tampering, &rule120, &inconsistency, &stages,
		); err != nil {
			return nil, err
		}

		score.RiskLevel = domain.RiskLevel(level)
		score.IsTamperingSuspect = tampering == 1
		score.Is120RuleSuspect = rule120 == 1
		json.Unmarshal([]byte(breakdown), &score.Breakdown)
		json.Unmarshal([]byte(reasons), &score.Reasons)
		json.Unmarshal([]byte(inconsistency), &score.Inconsistency)
		json.Unmarshal([]byte(stages), &score.Stages)

		scores = append(scores, score)
	}

	return scores, rows.Err()
}

// SaveBuildingRisks replaces the persisted building outliers for a session.
func (r *SQLRepository) SaveBuildingRisks(ctx context.Context, sessionID string, risks []domain.BuildingRisk) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM building_risks WHERE session_id = ?`), sessionID); err != nil {
		return err
	}

	insert := r.rebind(`
		INSERT INTO building_risks (
			session_id, tesisat_no, muhatap_no, address, lat, lng,
			personal_winter_avg, building_winter_median, deviation_percentage,
			neighbor_count, monthly_breakdown
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	for _, risk := range risks {
		monthly, _ := json.Marshal(risk.MonthlyBreakdown)

		if _, err := tx.ExecContext(ctx, insert,
			sessionID, risk.TesisatNo, risk.MuhatapNo, risk.Address,
			risk.Location.Lat, risk.Location.Lng,
			risk.PersonalWinterAvg, risk.BuildingWinterMedian, risk.DeviationPercentage,
			risk.NeighborCount, string(monthly),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListBuildingRisks retrieves persisted building outliers for a session.
func (r *SQLRepository) ListBuildingRisks(ctx context.Context, sessionID string) ([]domain.BuildingRisk, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	query := `
		SELECT tesisat_no, muhatap_no, address, lat, lng,
			   personal_winter_avg, building_winter_median, deviation_percentage,
			   neighbor_count, monthly_breakdown
		FROM building_risks
		WHERE session_id = ?
		ORDER BY deviation_percentage
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var risks []domain.BuildingRisk
	for rows.Next() {
		var risk domain.BuildingRisk
		var monthly string

		if err := rows.Scan(
			&risk.TesisatNo, &risk.MuhatapNo, &risk.Address,
			&risk.Location.Lat, &risk.Location.Lng,
			&risk.PersonalWinterAvg, &risk.BuildingWinterMedian, &risk.DeviationPercentage,
			&risk.NeighborCount, &monthly,
		); err != nil {
			return nil, err
		}

		json.Unmarshal([]byte(monthly), &risk.MonthlyBreakdown)
		risks = append(risks, risk)
	}

	return risks, rows.Err()
}

// SaveCustomRule upserts an operator-defined scoring rule.
func (r *SQLRepository) SaveCustomRule(ctx context.Context, rule *domain.CustomRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	createdAt := rule.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO custom_rules (
			id, name, description, expression, points, tag, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			points = excluded.points,
			tag = excluded.tag,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression,
		rule.Points, rule.Tag, boolToInt(rule.Enabled),
		createdAt, now,
	)
	return err
}

// GetCustomRule retrieves a rule by ID.
func (r *SQLRepository) GetCustomRule(ctx context.Context, ruleID string) (*domain.CustomRule, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, description, expression, points, tag, enabled, created_at, updated_at
		FROM custom_rules
		WHERE id = ?
	`

	var rule domain.CustomRule
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.Expression,
		&rule.Points, &rule.Tag, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	return &rule, nil
}

// ListCustomRules retrieves all rules, enabled and disabled, ordered by name.
func (r *SQLRepository) ListCustomRules(ctx context.Context) ([]*domain.CustomRule, error) {
	query := `
		SELECT id, name, description, expression, points, tag, enabled, created_at, updated_at
		FROM custom_rules
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.CustomRule
	for rows.Next() {
		var rule domain.CustomRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description, &rule.Expression,
			&rule.Points, &rule.Tag, &enabled,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// SaveAlert stores a critical-band alert.
func (r *SQLRepository) SaveAlert(ctx context.Context, alert *domain.Alert) error {
	if alert == nil || alert.ID == "" {
		return fmt.Errorf("%w: alert id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO alerts (id, session_id, tesisat_no, total_score, risk_level, reasons, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, alert.SessionID, alert.TesisatNo,
		alert.TotalScore, string(alert.RiskLevel), alert.Reasons, alert.CreatedAt,
	)
	return err
}

// ListAlerts retrieves alerts for a session, newest first.
func (r *SQLRepository) ListAlerts(ctx context.Context, sessionID string) ([]*domain.Alert, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, session_id, tesisat_no, total_score, risk_level, reasons, created_at
		FROM alerts
		WHERE session_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var alert domain.Alert
		var level string

		if err := rows.Scan(
			&alert.ID, &alert.SessionID, &alert.TesisatNo,
			&alert.TotalScore, &level, &alert.Reasons, &alert.CreatedAt,
		); err != nil {
			return nil, err
		}

		alert.RiskLevel = domain.RiskLevel(level)
		alerts = append(alerts, &alert)
	}

	return alerts, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
