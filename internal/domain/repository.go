package domain

import (
	"context"
	"time"
)

// Repository defines the interface for result persistence. Scoring itself
// is an in-memory batch; persistence is write-behind for reporting views.
type Repository interface {
	// Session bookkeeping
	SaveSession(ctx context.Context, session *SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (*SessionRecord, error)
	ListSessions(ctx context.Context) ([]*SessionRecord, error)

	// Risk scores
	SaveRiskScores(ctx context.Context, sessionID string, scores []RiskScore) error
	ListRiskScores(ctx context.Context, sessionID string, limit int) ([]RiskScore, error)

	// Peer-comparison results
	SaveBuildingRisks(ctx context.Context, sessionID string, risks []BuildingRisk) error
	ListBuildingRisks(ctx context.Context, sessionID string) ([]BuildingRisk, error)

	// Custom rule configurations
	SaveCustomRule(ctx context.Context, rule *CustomRule) error
	GetCustomRule(ctx context.Context, ruleID string) (*CustomRule, error)
	ListCustomRules(ctx context.Context) ([]*CustomRule, error)

	// Alerts
	SaveAlert(ctx context.Context, alert *Alert) error
	ListAlerts(ctx context.Context, sessionID string) ([]*Alert, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// SessionRecord is the persisted summary of one analysis session.
type SessionRecord struct {
	ID              string      `json:"id"`
	Name            string      `json:"name,omitempty"`
	SubscriberCount int         `json:"subscriberCount"`
	Stats           EngineStats `json:"stats"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
