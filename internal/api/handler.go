package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/explainable-finance/verdict/internal/domain"
	"github.com/explainable-finance/verdict/internal/engine"
	"github.com/explainable-finance/verdict/internal/repository"
	"github.com/explainable-finance/verdict/internal/rules"
)

// MaxBatchRecords bounds batch and upload requests.
const MaxBatchRecords = 50

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.ResultCache
	bus       domain.EventBus
	evaluator *engine.Evaluator
	policies  *rules.PolicyEngine
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.ResultCache, bus domain.EventBus, evaluator *engine.Evaluator, policies *rules.PolicyEngine, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		evaluator: evaluator,
		policies:  policies,
		version:   version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
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

// Decide handles POST /decision/{domain}: one applicant, one result.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	d, ok := h.domainParam(w, r)
	if !ok {
		return
	}

	var applicant domain.Applicant
	if err := json.NewDecoder(r.Body).Decode(&applicant); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result := h.evaluator.Evaluate(r.Context(), d, applicant)
	h.recordDecision(r, d, result)

	writeJSON(w, http.StatusOK, result)
}

// BatchResponse is the response for batch and upload evaluations.
type BatchResponse struct {
	Count   int                      `json:"count"`
	Results []*domain.DecisionResult `json:"results"`
}

// DecideBatch handles POST /decision/{domain}/batch: a JSON array of
// applicants evaluated concurrently, results in input order.
func (h *Handler) DecideBatch(w http.ResponseWriter, r *http.Request) {
	d, ok := h.domainParam(w, r)
	if !ok {
		return
	}

	var applicants []domain.Applicant
	if err := json.NewDecoder(r.Body).Decode(&applicants); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "request body must be a JSON array of applicants",
		})
		return
	}
	if len(applicants) > MaxBatchRecords {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("max %d records allowed", MaxBatchRecords),
		})
		return
	}

	results := h.evaluator.EvaluateBatch(r.Context(), d, applicants)
	for _, result := range results {
		h.recordDecision(r, d, result)
	}

	writeJSON(w, http.StatusOK, BatchResponse{Count: len(results), Results: results})
}

// SubmitApplication handles POST /applications?domain=: stores the
// applicant, evaluates it, and parks the case for human review. With
// async=true the evaluation is handed to the worker over the event bus and
// the application returns still pending_ai.
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	d, err := domain.ParseDomain(r.URL.Query().Get("domain"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "domain query parameter must be one of loan, credit, insurance, job",
		})
		return
	}

	var applicant domain.Applicant
	if err := json.NewDecoder(r.Body).Decode(&applicant); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	now := time.Now().UTC()
	app := &domain.Application{
		ID:        uuid.New().String(),
		Domain:    d,
		Data:      applicant,
		Status:    domain.AppStatusPendingAI,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.repo.SaveApplication(ctx, app); err != nil {
		slog.Error("failed to save application", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save application",
		})
		return
	}

	if r.URL.Query().Get("async") == "true" && h.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"applicationId": app.ID,
			"domain":        string(d),
			"applicant":     applicant,
		})
		if err := h.bus.Publish(ctx, domain.TopicApplicationReceived, payload); err != nil {
			slog.Error("failed to publish application", "id", app.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to enqueue application",
			})
			return
		}
		writeJSON(w, http.StatusAccepted, app)
		return
	}

	result := h.evaluator.Evaluate(ctx, d, applicant)
	h.recordDecision(r, d, result)

	app.Result = result
	app.Status = domain.AppStatusPendingHuman
	app.UpdatedAt = time.Now().UTC()
	if err := h.repo.UpdateApplication(ctx, app); err != nil {
		slog.Error("failed to update application", "id", app.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update application",
		})
		return
	}

	if h.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"applicationId": app.ID,
			"domain":        string(d),
			"result":        result,
		})
		if err := h.bus.Publish(ctx, domain.TopicDecisionCompleted, payload); err != nil {
			slog.Error("failed to publish decision", "id", app.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, app)
}

// ListApplications handles GET /applications?status=.
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.repo.ListApplications(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		slog.Error("failed to list applications", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list applications",
		})
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

// GetApplication handles GET /applications/{id}.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, ok := h.loadApplication(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// ReviewRequest is the request body for POST /applications/{id}/review.
// decision and comment may also arrive as query parameters.
type ReviewRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment,omitempty"`
}

// ReviewApplication handles POST /applications/{id}/review: records the
// human decision and, when it contradicts the automated one, attaches an
// override explanation assembled from the result's pre-computed alternative
// narrative.
func (h *Handler) ReviewApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	app, ok := h.loadApplication(w, r)
	if !ok {
		return
	}

	var req ReviewRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Decision == "" {
		req.Decision = r.URL.Query().Get("decision")
	}
	if req.Comment == "" {
		req.Comment = r.URL.Query().Get("comment")
	}

	decision := strings.ToLower(strings.TrimSpace(req.Decision))
	if decision != "approved" && decision != "rejected" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": `decision must be "approved" or "rejected"`,
		})
		return
	}

	now := time.Now().UTC()
	app.Status = domain.AppStatusCompleted
	app.FinalDecision = decision
	app.ReviewerComment = req.Comment
	app.ReviewedAt = &now
	app.UpdatedAt = now

	if app.Result != nil && contradicts(app.Result.Decision.Status, decision) {
		app.IsOverride = true
		app.OverrideExplanation = overrideExplanation(app.Result, decision, req.Comment)
	}

	if err := h.repo.UpdateApplication(ctx, app); err != nil {
		slog.Error("failed to update application", "id", app.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update application",
		})
		return
	}

	if app.IsOverride && h.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"applicationId": app.ID,
			"domain":        string(app.Domain),
			"aiDecision":    app.Result.Decision.Status,
			"finalDecision": decision,
		})
		if err := h.bus.Publish(ctx, domain.TopicDecisionOverridden, payload); err != nil {
			slog.Error("failed to publish override", "id", app.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, app)
}

// contradicts reports whether the reviewer decision reverses the automated
// verdict.
func contradicts(aiStatus, reviewerDecision string) bool {
	switch strings.ToUpper(aiStatus) {
	case domain.StatusApproved:
		return reviewerDecision == "rejected"
	case domain.StatusRejected:
		return reviewerDecision == "approved"
	}
	return false
}

// overrideExplanation assembles the customer-facing override account from
// the alternative narrative pre-computed at evaluation time. No second
// evaluation runs here.
func overrideExplanation(result *domain.DecisionResult, decision, comment string) *domain.OverrideExplanation {
	reasoning := result.AlternativeReasoning
	if reasoning == "" {
		reasoning = comment
	}
	context := fmt.Sprintf("Automated analysis recommended %s; manual review decided %s",
		result.Decision.Status, strings.ToUpper(decision))
	if comment != "" {
		context += ": " + comment
	}
	return &domain.OverrideExplanation{
		Summary: fmt.Sprintf("Manual review changed the automated %s recommendation to %s.",
			result.Decision.Status, strings.ToUpper(decision)),
		DetailedReasoning: reasoning,
		NextSteps:         append([]string(nil), result.AlternativeCounterfactuals...),
		OverrideContext:   context,
	}
}

// ExplanationRequest is the request body for PUT /applications/{id}/explanation.
type ExplanationRequest struct {
	Explanation string `json:"explanation"`
}

// UpdateExplanation handles PUT /applications/{id}/explanation: lets a
// reviewer replace the generated explanation text.
func (h *Handler) UpdateExplanation(w http.ResponseWriter, r *http.Request) {
	app, ok := h.loadApplication(w, r)
	if !ok {
		return
	}

	var req ExplanationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	now := time.Now().UTC()
	app.AgentExplanation = req.Explanation
	app.ExplanationEdited = true
	app.ExplanationEditedAt = &now
	app.UpdatedAt = now

	if err := h.repo.UpdateApplication(r.Context(), app); err != nil {
		slog.Error("failed to update application", "id", app.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update application",
		})
		return
	}

	writeJSON(w, http.StatusOK, app)
}

// AuditLog handles GET /audit-log: every application newest-first with its
// automated result, final decision, and override data.
func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	apps, err := h.repo.ListApplications(r.Context(), "")
	if err != nil {
		slog.Error("failed to list applications", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load audit log",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(apps),
		"entries": apps,
	})
}

// PolicyRequest is the request body for creating or updating a policy.
type PolicyRequest struct {
	ID          string `json:"id"`
	Domain      string `json:"domain"`
	Text        string `json:"text"`
	Expression  string `json:"expression,omitempty"`
	Delta       int    `json:"delta,omitempty"`
	Factor      string `json:"factor,omitempty"`
	Analysis    string `json:"analysis,omitempty"`
	Remediation string `json:"remediation,omitempty"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

// ListPolicies handles GET /policies?domain=.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.repo.ListPolicies(r.Context(), r.URL.Query().Get("domain"))
	if err != nil {
		slog.Error("failed to list policies", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list policies",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(policies),
		"policies": policies,
	})
}

// GetPolicy handles GET /policies/{id}.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.repo.GetPolicy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "policy not found",
			})
			return
		}
		slog.Error("failed to get policy", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get policy",
		})
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

// CreatePolicy handles POST /policies.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	h.savePolicy(w, r, "")
}

// UpdatePolicy handles PUT /policies/{id}.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	h.savePolicy(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) savePolicy(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if id != "" {
		req.ID = id
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "text is required",
		})
		return
	}
	if !validPolicyDomain(req.Domain) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": `domain must be one of loan, credit, insurance, job, or "global"`,
		})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	now := time.Now().UTC()
	cfg := &domain.PolicyConfig{
		ID:          req.ID,
		Domain:      req.Domain,
		Text:        req.Text,
		Expression:  req.Expression,
		Delta:       req.Delta,
		Factor:      req.Factor,
		Analysis:    req.Analysis,
		Remediation: req.Remediation,
		Enabled:     enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing, err := h.repo.GetPolicy(ctx, cfg.ID); err == nil {
		cfg.CreatedAt = existing.CreatedAt
	}

	if h.policies != nil && cfg.Expression != "" {
		if err := h.policies.Validate(cfg); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid policy expression: " + err.Error(),
			})
			return
		}
	}

	if err := h.repo.SavePolicy(ctx, cfg); err != nil {
		slog.Error("failed to save policy", "id", cfg.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save policy",
		})
		return
	}

	slog.Info("policy saved", "id", cfg.ID, "domain", cfg.Domain)
	writeJSON(w, http.StatusCreated, map[string]any{
		"policy":  cfg,
		"message": "Policy saved. Call POST /policies/reload to apply scoring changes.",
	})
}

// DeletePolicy handles DELETE /policies/{id}.
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	err := h.repo.DeletePolicy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "policy not found",
			})
			return
		}
		slog.Error("failed to delete policy", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete policy",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Policy deleted",
	})
}

// ReloadPolicies handles POST /policies/reload: recompiles every stored
// policy into the engine without a restart.
func (h *Handler) ReloadPolicies(w http.ResponseWriter, r *http.Request) {
	if h.policies == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "policy engine not available",
		})
		return
	}

	configs, err := h.repo.ListPolicies(r.Context(), "")
	if err != nil {
		slog.Error("failed to list policies", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load policies",
		})
		return
	}

	if err := h.policies.Reload(configs); err != nil {
		slog.Error("failed to reload policies", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload policies: " + err.Error(),
		})
		return
	}

	slog.Info("policies reloaded", "count", len(configs))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "policies reloaded successfully",
		"count":   len(configs),
	})
}

// domainParam validates the {domain} URL parameter.
func (h *Handler) domainParam(w http.ResponseWriter, r *http.Request) (domain.Domain, bool) {
	d, err := domain.ParseDomain(chi.URLParam(r, "domain"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "domain must be one of loan, credit, insurance, job",
		})
		return "", false
	}
	return d, true
}

// loadApplication resolves the {id} URL parameter to a stored application.
func (h *Handler) loadApplication(w http.ResponseWriter, r *http.Request) (*domain.Application, bool) {
	id := chi.URLParam(r, "id")
	app, err := h.repo.GetApplication(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "application not found",
			})
			return nil, false
		}
		slog.Error("failed to get application", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get application",
		})
		return nil, false
	}
	return app, true
}

// recordDecision appends one result to the decision history. Best-effort:
// history feeds audit and remote-prompt context, not the response.
func (h *Handler) recordDecision(r *http.Request, d domain.Domain, result *domain.DecisionResult) {
	if h.repo == nil || result == nil {
		return
	}
	rec := &domain.DecisionRecord{
		ID:        uuid.New().String(),
		Domain:    d,
		Status:    result.Decision.Status,
		Reasoning: result.Decision.Reasoning,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.SaveDecision(r.Context(), rec); err != nil {
		slog.Error("failed to record decision", "domain", d, "error", err)
	}
}

func validPolicyDomain(s string) bool {
	if s == domain.PolicyDomainGlobal {
		return true
	}
	_, err := domain.ParseDomain(s)
	return err == nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
