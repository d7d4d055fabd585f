package repository

// Schema definitions for the Verdict database.
// Compatible with both SQLite and PostgreSQL.

const schemaApplications = `
CREATE TABLE IF NOT EXISTS applications (
    id TEXT PRIMARY KEY,
    domain TEXT NOT NULL,
    data TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    result TEXT,
    final_decision TEXT,
    reviewer_comment TEXT,
    reviewed_at TIMESTAMP,
    is_override INTEGER NOT NULL DEFAULT 0,
    override_explanation TEXT,
    agent_explanation TEXT,
    explanation_edited INTEGER NOT NULL DEFAULT 0,
    explanation_edited_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(status);
CREATE INDEX IF NOT EXISTS idx_applications_domain ON applications(domain);
CREATE INDEX IF NOT EXISTS idx_applications_created ON applications(created_at);
`

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    domain TEXT NOT NULL,
    status TEXT NOT NULL,
    reasoning TEXT NOT NULL,
    result TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_domain ON decisions(domain, created_at);
`

const schemaPolicies = `
CREATE TABLE IF NOT EXISTS policies (
    id TEXT PRIMARY KEY,
    domain TEXT NOT NULL,
    text TEXT NOT NULL,
    expression TEXT,
    delta INTEGER NOT NULL DEFAULT 0,
    factor TEXT,
    analysis TEXT,
    remediation TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policies_domain ON policies(domain);
CREATE INDEX IF NOT EXISTS idx_policies_enabled ON policies(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaApplications,
		schemaDecisions,
		schemaPolicies,
	}
}
