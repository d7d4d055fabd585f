package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/explainable-finance/verdict/internal/cache"
	"github.com/explainable-finance/verdict/internal/domain"
	"github.com/explainable-finance/verdict/internal/rules"
)

func newRuleEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	return New(Options{Cache: cache.NewMemoryCache(100)})
}

func TestEvaluateLoanRejection(t *testing.T) {
	e := newRuleEvaluator(t)
	res := e.Evaluate(context.Background(), domain.DomainLoan, domain.Applicant{
		"monthly_income": 2000,
		"credit_score":   550,
		"loan_amount":    200000,
	})

	if res.Decision.Status != domain.StatusRejected {
		t.Errorf("status = %q, want REJECTED", res.Decision.Status)
	}
	if res.Audit.Engine != EngineRules {
		t.Errorf("engine = %q, want %q", res.Audit.Engine, EngineRules)
	}
	if res.Audit.Cached {
		t.Error("fresh result marked cached")
	}
	if res.AlternativeReasoning == "" {
		t.Error("missing alternative reasoning")
	}
	if len(res.AlternativeCounterfactuals) != 0 {
		t.Error("rejected result should carry no alternative counterfactuals")
	}
}

func TestEvaluateCacheHit(t *testing.T) {
	e := newRuleEvaluator(t)
	ctx := context.Background()
	a := domain.Applicant{"experience": 6, "education": "Master's", "skills_match": 85}

	first := e.Evaluate(ctx, domain.DomainJob, a)
	second := e.Evaluate(ctx, domain.DomainJob, a)

	if first.Audit.Cached {
		t.Error("first evaluation marked cached")
	}
	if !second.Audit.Cached {
		t.Error("second evaluation not served from cache")
	}
	if first.Decision != second.Decision {
		t.Error("cached decision differs from original")
	}
	if first.KeyMetrics.RiskScore != second.KeyMetrics.RiskScore {
		t.Error("cached metrics differ from original")
	}
	if len(first.AlternativeCounterfactuals) != len(second.AlternativeCounterfactuals) {
		t.Error("cached alternative counterfactuals differ")
	}
}

func TestFingerprintStableAcrossKeyOrder(t *testing.T) {
	a := domain.Applicant{"income": 50000.0, "credit_score": 700.0, "loan_amount": 90000.0}
	b := domain.Applicant{"loan_amount": 90000.0, "credit_score": 700.0, "income": 50000.0}
	if Fingerprint(domain.DomainLoan, a) != Fingerprint(domain.DomainLoan, b) {
		t.Error("fingerprint sensitive to key insertion order")
	}
	if Fingerprint(domain.DomainLoan, a) == Fingerprint(domain.DomainCredit, a) {
		t.Error("fingerprint ignores domain")
	}
}

func TestEvaluateWithoutCache(t *testing.T) {
	e := New(Options{})
	res := e.Evaluate(context.Background(), domain.DomainInsurance, domain.Applicant{
		"age": 25, "claims": 0, "premium": 100,
	})
	if res.Decision.Status != domain.StatusApproved {
		t.Errorf("status = %q, want APPROVED", res.Decision.Status)
	}
	if len(res.AlternativeCounterfactuals) == 0 {
		t.Error("approved borderline applicant should carry alternative counterfactuals")
	}
}

func TestEvaluateBatchPreservesOrder(t *testing.T) {
	e := newRuleEvaluator(t)

	applicants := make([]domain.Applicant, 20)
	for i := range applicants {
		// Alternate strong and weak applicants so order mix-ups are visible.
		if i%2 == 0 {
			applicants[i] = domain.Applicant{"experience": 10, "education": "PhD", "skills_match": 95, "batch_index": i}
		} else {
			applicants[i] = domain.Applicant{"experience": 0, "education": "", "skills_match": 10, "batch_index": i}
		}
	}

	results := e.EvaluateBatch(context.Background(), domain.DomainJob, applicants)
	if len(results) != len(applicants) {
		t.Fatalf("results = %d, want %d", len(results), len(applicants))
	}
	for i, res := range results {
		if res == nil {
			t.Fatalf("result[%d] is nil", i)
		}
		want := domain.StatusApproved
		if i%2 == 1 {
			want = domain.StatusRejected
		}
		if res.Decision.Status != want {
			t.Errorf("result[%d] status = %q, want %q", i, res.Decision.Status, want)
		}
	}
}

func TestEvaluateWithPolicyEngine(t *testing.T) {
	pe, err := rules.NewPolicyEngine()
	if err != nil {
		t.Fatalf("NewPolicyEngine: %v", err)
	}
	if err := pe.Load(&domain.PolicyConfig{
		ID:         "insurance-age-floor",
		Domain:     "insurance",
		Expression: `age < 21.0`,
		Delta:      -40,
		Analysis:   "Applicants under 21 require a guardian co-signer for coverage.",
		Enabled:    true,
	}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	e := New(Options{Policies: pe})

	// Without the policy this applicant scores 50+15+25 = 90.
	res := e.Evaluate(context.Background(), domain.DomainInsurance, domain.Applicant{
		"age": 19, "claims": 0,
	})
	if res.Decision.Status != domain.StatusRejected {
		t.Errorf("status = %q, want REJECTED with policy penalty", res.Decision.Status)
	}
	if res.KeyMetrics.RiskScore != 50 {
		t.Errorf("risk score = %d, want 50", res.KeyMetrics.RiskScore)
	}
}

type stubRemote struct {
	result *domain.DecisionResult
	calls  int
}

func (s *stubRemote) Decide(ctx context.Context, d domain.Domain, a domain.Applicant, policies []*domain.PolicyConfig, history []*domain.DecisionRecord) *domain.DecisionResult {
	s.calls++
	out := s.result.Clone()
	out.Domain = d
	return out
}

func TestEvaluateRemotePath(t *testing.T) {
	remote := &stubRemote{result: &domain.DecisionResult{
		Decision: domain.Decision{
			Status:     domain.StatusApproved,
			Confidence: 0.8,
			Reasoning:  "Remote approval.",
		},
		Fairness:   domain.Fairness{Assessment: "Fair", Concerns: "none"},
		KeyMetrics: domain.KeyMetrics{RiskScore: 20, ApprovalProbability: 0.8},
	}}

	e := New(Options{Remote: remote})
	res := e.Evaluate(context.Background(), domain.DomainLoan, domain.Applicant{"income": 48000})

	if remote.calls != 1 {
		t.Errorf("remote calls = %d, want 1", remote.calls)
	}
	if res.Audit.Engine != EngineRemote {
		t.Errorf("engine = %q, want %q", res.Audit.Engine, EngineRemote)
	}
	// The alternative narrative is synthesized locally even on the remote
	// path: income 48000 sits in the loan concern band.
	if res.AlternativeReasoning == "" {
		t.Error("missing alternative reasoning on remote path")
	}
	if len(res.AlternativeCounterfactuals) == 0 {
		t.Error("expected concern-band steps for borderline approved applicant")
	}
}

func TestEvaluateConcurrentSameApplicant(t *testing.T) {
	e := newRuleEvaluator(t)
	ctx := context.Background()

	applicants := make([]domain.Applicant, 50)
	for i := range applicants {
		applicants[i] = domain.Applicant{"income": 70000.0, "credit_score": 720.0}
	}

	results := e.EvaluateBatch(ctx, domain.DomainLoan, applicants)
	for i, res := range results {
		if res.Decision.Status != domain.StatusApproved {
			t.Fatalf("result[%d] status = %q", i, res.Decision.Status)
		}
	}
}

func TestFingerprintDistinctApplicants(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		key := Fingerprint(domain.DomainLoan, domain.Applicant{"income": fmt.Sprintf("%d", i*1000)})
		if seen[key] {
			t.Fatalf("fingerprint collision at %d", i)
		}
		seen[key] = true
	}
}
