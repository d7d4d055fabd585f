// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/explainable-finance/verdict/internal/domain"
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

// SaveApplication stores a new application.
func (r *SQLRepository) SaveApplication(ctx context.Context, app *domain.Application) error {
	if app == nil || app.ID == "" {
		return fmt.Errorf("%w: application id is required", ErrInvalidInput)
	}

	data, err := json.Marshal(app.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal applicant data: %w", err)
	}
	result, overrideExpl := marshalReviewBlobs(app)

	query := `
		INSERT INTO applications (
			id, domain, data, status, created_at, updated_at,
			result, final_decision, reviewer_comment, reviewed_at,
			is_override, override_explanation,
			agent_explanation, explanation_edited, explanation_edited_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		app.ID, string(app.Domain), string(data), app.Status,
		app.CreatedAt, app.UpdatedAt,
		result, app.FinalDecision, app.ReviewerComment, app.ReviewedAt,
		boolToInt(app.IsOverride), overrideExpl,
		app.AgentExplanation, boolToInt(app.ExplanationEdited), app.ExplanationEditedAt,
	)
	return err
}

// GetApplication retrieves an application by ID.
func (r *SQLRepository) GetApplication(ctx context.Context, id string) (*domain.Application, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, domain, data, status, created_at, updated_at,
			   result, final_decision, reviewer_comment, reviewed_at,
			   is_override, override_explanation,
			   agent_explanation, explanation_edited, explanation_edited_at
		FROM applications
		WHERE id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), id)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return app, err
}

// ListApplications returns applications, optionally filtered by status,
// newest first.
func (r *SQLRepository) ListApplications(ctx context.Context, status string) ([]*domain.Application, error) {
	query := `
		SELECT id, domain, data, status, created_at, updated_at,
			   result, final_decision, reviewer_comment, reviewed_at,
			   is_override, override_explanation,
			   agent_explanation, explanation_edited, explanation_edited_at
		FROM applications
	`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*domain.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// UpdateApplication persists workflow and review changes.
func (r *SQLRepository) UpdateApplication(ctx context.Context, app *domain.Application) error {
	if app == nil || app.ID == "" {
		return fmt.Errorf("%w: application id is required", ErrInvalidInput)
	}

	data, err := json.Marshal(app.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal applicant data: %w", err)
	}
	result, overrideExpl := marshalReviewBlobs(app)

	query := `
		UPDATE applications
		SET domain = ?, data = ?, status = ?, updated_at = ?,
			result = ?, final_decision = ?, reviewer_comment = ?, reviewed_at = ?,
			is_override = ?, override_explanation = ?,
			agent_explanation = ?, explanation_edited = ?, explanation_edited_at = ?
		WHERE id = ?
	`

	res, err := r.db.ExecContext(ctx, r.rebind(query),
		string(app.Domain), string(data), app.Status, app.UpdatedAt,
		result, app.FinalDecision, app.ReviewerComment, app.ReviewedAt,
		boolToInt(app.IsOverride), overrideExpl,
		app.AgentExplanation, boolToInt(app.ExplanationEdited), app.ExplanationEditedAt,
		app.ID,
	)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveDecision appends to the decision history.
func (r *SQLRepository) SaveDecision(ctx context.Context, rec *domain.DecisionRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: decision id is required", ErrInvalidInput)
	}

	var result sql.NullString
	if rec.Result != nil {
		raw, err := json.Marshal(rec.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		result = sql.NullString{String: string(raw), Valid: true}
	}

	query := `
		INSERT INTO decisions (id, domain, status, reasoning, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, string(rec.Domain), rec.Status, rec.Reasoning, result, rec.CreatedAt,
	)
	return err
}

// ListDecisions returns the most recent decisions for a domain.
func (r *SQLRepository) ListDecisions(ctx context.Context, d domain.Domain, limit int) ([]*domain.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, domain, status, reasoning, result, created_at
		FROM decisions
		WHERE domain = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), string(d), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.DecisionRecord
	for rows.Next() {
		var rec domain.DecisionRecord
		var dom string
		var result sql.NullString
		if err := rows.Scan(&rec.ID, &dom, &rec.Status, &rec.Reasoning, &result, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Domain = domain.Domain(dom)
		if result.Valid {
			var dr domain.DecisionResult
			if err := json.Unmarshal([]byte(result.String), &dr); err == nil {
				rec.Result = &dr
			}
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// SavePolicy inserts or replaces an operator policy.
func (r *SQLRepository) SavePolicy(ctx context.Context, p *domain.PolicyConfig) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: policy id is required", ErrInvalidInput)
	}

	// Upsert keyed on id, portable across both drivers via delete+insert.
	delQuery := `DELETE FROM policies WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, r.rebind(delQuery), p.ID); err != nil {
		return err
	}

	query := `
		INSERT INTO policies (
			id, domain, text, expression, delta, factor,
			analysis, remediation, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, p.Domain, p.Text, p.Expression, p.Delta, p.Factor,
		p.Analysis, p.Remediation, boolToInt(p.Enabled), p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetPolicy retrieves a policy by ID.
func (r *SQLRepository) GetPolicy(ctx context.Context, id string) (*domain.PolicyConfig, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, domain, text, expression, delta, factor,
			   analysis, remediation, enabled, created_at, updated_at
		FROM policies
		WHERE id = ?
	`

	var p domain.PolicyConfig
	var enabled int
	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&p.ID, &p.Domain, &p.Text, &p.Expression, &p.Delta, &p.Factor,
		&p.Analysis, &p.Remediation, &enabled, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Enabled = enabled != 0
	return &p, nil
}

// ListPolicies returns policies for a domain including global ones, or all
// policies when domain is empty.
func (r *SQLRepository) ListPolicies(ctx context.Context, d string) ([]*domain.PolicyConfig, error) {
	query := `
		SELECT id, domain, text, expression, delta, factor,
			   analysis, remediation, enabled, created_at, updated_at
		FROM policies
	`
	args := []any{}
	if d != "" {
		query += ` WHERE domain = ? OR domain = ?`
		args = append(args, d, domain.PolicyDomainGlobal)
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*domain.PolicyConfig
	for rows.Next() {
		var p domain.PolicyConfig
		var enabled int
		if err := rows.Scan(
			&p.ID, &p.Domain, &p.Text, &p.Expression, &p.Delta, &p.Factor,
			&p.Analysis, &p.Remediation, &enabled, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p.Enabled = enabled != 0
		policies = append(policies, &p)
	}
	return policies, rows.Err()
}

// DeletePolicy removes a policy.
func (r *SQLRepository) DeletePolicy(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}

	query := `DELETE FROM policies WHERE id = ?`
	result, err := r.db.ExecContext(ctx, r.rebind(query), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(s scanner) (*domain.Application, error) {
	var app domain.Application
	var dom, data string
	var result, overrideExpl sql.NullString
	var reviewedAt, explEditedAt sql.NullTime
	var isOverride, explEdited int
	var finalDecision, reviewerComment, agentExpl sql.NullString

	err := s.Scan(
		&app.ID, &dom, &data, &app.Status, &app.CreatedAt, &app.UpdatedAt,
		&result, &finalDecision, &reviewerComment, &reviewedAt,
		&isOverride, &overrideExpl,
		&agentExpl, &explEdited, &explEditedAt,
	)
	if err != nil {
		return nil, err
	}

	app.Domain = domain.Domain(dom)
	if err := json.Unmarshal([]byte(data), &app.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal applicant data: %w", err)
	}
	if result.Valid && result.String != "" {
		var dr domain.DecisionResult
		if err := json.Unmarshal([]byte(result.String), &dr); err == nil {
			app.Result = &dr
		}
	}
	if overrideExpl.Valid && overrideExpl.String != "" {
		var oe domain.OverrideExplanation
		if err := json.Unmarshal([]byte(overrideExpl.String), &oe); err == nil {
			app.OverrideExplanation = &oe
		}
	}
	app.FinalDecision = finalDecision.String
	app.ReviewerComment = reviewerComment.String
	app.AgentExplanation = agentExpl.String
	app.IsOverride = isOverride != 0
	app.ExplanationEdited = explEdited != 0
	if reviewedAt.Valid {
		t := reviewedAt.Time
		app.ReviewedAt = &t
	}
	if explEditedAt.Valid {
		t := explEditedAt.Time
		app.ExplanationEditedAt = &t
	}
	return &app, nil
}

func marshalReviewBlobs(app *domain.Application) (result, overrideExpl sql.NullString) {
	if app.Result != nil {
		if raw, err := json.Marshal(app.Result); err == nil {
			result = sql.NullString{String: string(raw), Valid: true}
		}
	}
	if app.OverrideExplanation != nil {
		if raw, err := json.Marshal(app.OverrideExplanation); err == nil {
			overrideExpl = sql.NullString{String: string(raw), Valid: true}
		}
	}
	return result, overrideExpl
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
