// Package engine composes normalization, rule evaluation, scoring, override
// synthesis, and the result cache into the evaluation entry point.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/explainable-finance/verdict/internal/decision"
	"github.com/explainable-finance/verdict/internal/domain"
	"github.com/explainable-finance/verdict/internal/normalize"
	"github.com/explainable-finance/verdict/internal/override"
	"github.com/explainable-finance/verdict/internal/rules"
)

// Engine identifiers recorded in result audits.
const (
	EngineRules  = "verdict-rules/1.0"
	EngineRemote = "verdict-remote/1.0"
)

// RemoteSource is the optional external decision path. Implementations must
// never fail; any internal error collapses to a fallback result.
type RemoteSource interface {
	Decide(ctx context.Context, d domain.Domain, a domain.Applicant, policies []*domain.PolicyConfig, history []*domain.DecisionRecord) *domain.DecisionResult
}

// ContextSource supplies operator policies and recent decisions for remote
// prompts. Satisfied by the repository; optional.
type ContextSource interface {
	ListPolicies(ctx context.Context, domain string) ([]*domain.PolicyConfig, error)
	ListDecisions(ctx context.Context, d domain.Domain, limit int) ([]*domain.DecisionRecord, error)
}

// Options configures an Evaluator. Everything beyond the defaults is
// optional: a nil cache disables memoization, a nil policy engine skips
// operator policies, a nil remote source pins evaluation to the rule tables.
type Options struct {
	Cache      domain.ResultCache
	CacheTTL   time.Duration
	Policies   *rules.PolicyEngine
	Remote     RemoteSource
	Context    ContextSource
	BatchWidth int
	Logger     *slog.Logger
}

// Evaluator runs the decision pipeline. Safe for concurrent use.
type Evaluator struct {
	processor  *decision.Processor
	cache      domain.ResultCache
	cacheTTL   time.Duration
	policies   *rules.PolicyEngine
	remote     RemoteSource
	contextSrc ContextSource
	batchWidth int
	logger     *slog.Logger
}

// New creates an evaluator.
func New(opts Options) *Evaluator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchWidth := opts.BatchWidth
	if batchWidth <= 0 {
		batchWidth = 5
	}
	cacheTTL := opts.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Evaluator{
		processor:  decision.NewProcessor(),
		cache:      opts.Cache,
		cacheTTL:   cacheTTL,
		policies:   opts.Policies,
		remote:     opts.Remote,
		contextSrc: opts.Context,
		batchWidth: batchWidth,
		logger:     logger,
	}
}

// Fingerprint derives the cache key from the domain and the canonical JSON
// of the raw applicant. Map keys are serialized sorted, so two applicants
// with the same content always collide.
func Fingerprint(d domain.Domain, a domain.Applicant) string {
	raw, err := json.Marshal(a)
	if err != nil {
		raw = []byte("{}")
	}
	sum := sha256.Sum256(append([]byte(string(d)+":"), raw...))
	return hex.EncodeToString(sum[:])
}

// Evaluate produces a DecisionResult for one applicant. It never fails: the
// cache is best-effort and both decision paths always return a result.
func (e *Evaluator) Evaluate(ctx context.Context, d domain.Domain, a domain.Applicant) *domain.DecisionResult {
	key := Fingerprint(d, a)

	if cached := e.fromCache(ctx, key); cached != nil {
		return cached
	}

	profile := normalize.Profile(d, a)

	var result *domain.DecisionResult
	if e.remote != nil {
		result = e.evaluateRemote(ctx, d, a, profile)
	} else {
		result = e.evaluateRules(profile)
	}

	result.Audit.Timestamp = time.Now().UTC()
	result.Audit.Cached = false

	e.toCache(ctx, key, result)
	return result
}

// EvaluateBatch evaluates applicants concurrently with bounded width,
// preserving input order in the output.
func (e *Evaluator) EvaluateBatch(ctx context.Context, d domain.Domain, applicants []domain.Applicant) []*domain.DecisionResult {
	results := make([]*domain.DecisionResult, len(applicants))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.batchWidth)
	for i, a := range applicants {
		g.Go(func() error {
			results[i] = e.Evaluate(ctx, d, a)
			return nil
		})
	}
	g.Wait()

	return results
}

func (e *Evaluator) evaluateRules(p *domain.Profile) *domain.DecisionResult {
	firings := rules.ForDomain(p.Domain).Evaluate(p)
	if e.policies != nil {
		firings = append(firings, e.policies.Evaluate(p)...)
	}

	result := e.processor.Process(p, firings)
	e.fillAlternative(result, p)
	result.Audit.Engine = EngineRules
	return result
}

func (e *Evaluator) evaluateRemote(ctx context.Context, d domain.Domain, a domain.Applicant, p *domain.Profile) *domain.DecisionResult {
	var policies []*domain.PolicyConfig
	var history []*domain.DecisionRecord
	if e.contextSrc != nil {
		if got, err := e.contextSrc.ListPolicies(ctx, string(d)); err == nil {
			policies = got
		}
		if got, err := e.contextSrc.ListDecisions(ctx, d, 5); err == nil {
			history = got
		}
	}

	result := e.remote.Decide(ctx, d, a, policies, history)
	e.fillAlternative(result, p)
	result.Audit.Engine = EngineRemote
	return result
}

// fillAlternative pre-computes the opposite-outcome narrative from the
// normalized profile alone.
func (e *Evaluator) fillAlternative(result *domain.DecisionResult, p *domain.Profile) {
	approved := result.Decision.Status == domain.StatusApproved
	result.AlternativeReasoning, result.AlternativeCounterfactuals = override.Synthesize(p, approved)
}

// fromCache returns a refreshed copy of a cached result, or nil on miss.
// Cache failures degrade to recomputation.
func (e *Evaluator) fromCache(ctx context.Context, key string) *domain.DecisionResult {
	if e.cache == nil {
		return nil
	}

	raw, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Debug("cache get failed", "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}

	var result domain.DecisionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		e.logger.Debug("cache entry corrupt", "error", err)
		return nil
	}

	// Only the audit freshness changes on a hit.
	result.Audit.Timestamp = time.Now().UTC()
	result.Audit.Cached = true
	return &result
}

func (e *Evaluator) toCache(ctx context.Context, key string, result *domain.DecisionResult) {
	if e.cache == nil {
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, raw, e.cacheTTL); err != nil {
		e.logger.Debug("cache set failed", "error", err)
	}
}
