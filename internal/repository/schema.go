package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    name TEXT,
    subscriber_count INTEGER NOT NULL,
    stats TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
`

const schemaRiskScores = `
CREATE TABLE IF NOT EXISTS risk_scores (
    session_id TEXT NOT NULL,
    tesisat_no TEXT NOT NULL,
    muhatap_no TEXT NOT NULL,
    display_muhatap_no TEXT,
    total_score INTEGER NOT NULL,
    risk_level TEXT NOT NULL,
    breakdown TEXT NOT NULL,
    reasons TEXT,
    is_tampering_suspect INTEGER NOT NULL DEFAULT 0,
    is_120_rule_suspect INTEGER NOT NULL DEFAULT 0,
    inconsistency TEXT,
    stages TEXT NOT NULL,
    PRIMARY KEY (session_id, tesisat_no)
);

CREATE INDEX IF NOT EXISTS idx_risk_scores_session ON risk_scores(session_id);
CREATE INDEX IF NOT EXISTS idx_risk_scores_score ON risk_scores(session_id, total_score);
CREATE INDEX IF NOT EXISTS idx_risk_scores_level ON risk_scores(session_id, risk_level);
`

const schemaBuildingRisks = `
CREATE TABLE IF NOT EXISTS building_risks (
    session_id TEXT NOT NULL,
    tesisat_no TEXT NOT NULL,
    muhatap_no TEXT NOT NULL,
    address TEXT,
    lat REAL NOT NULL,
    lng REAL NOT NULL,
    personal_winter_avg REAL NOT NULL,
    building_winter_median REAL NOT NULL,
    deviation_percentage REAL NOT NULL,
    neighbor_count INTEGER NOT NULL,
    monthly_breakdown TEXT,
    PRIMARY KEY (session_id, tesisat_no)
);

CREATE INDEX IF NOT EXISTS idx_building_risks_session ON building_risks(session_id);
`

const schemaCustomRules = `
CREATE TABLE IF NOT EXISTS custom_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    points INTEGER NOT NULL,
    tag TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_custom_rules_enabled ON custom_rules(enabled);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    tesisat_no TEXT NOT NULL,
    total_score INTEGER NOT NULL,
    risk_level TEXT NOT NULL,
    reasons TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_session ON alerts(session_id);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaSessions,
		schemaRiskScores,
		schemaBuildingRisks,
		schemaCustomRules,
		schemaAlerts,
	}
}
