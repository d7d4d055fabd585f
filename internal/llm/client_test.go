package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/explainable-finance/verdict/internal/domain"
)

func newTestClient(url string) *Client {
	return NewClient(domain.ModelConfig{
		URL:         url,
		Model:       "test-model",
		TimeoutSecs: 5,
		MaxInFlight: 3,
	}, nil)
}

func TestDecideParsesModelOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "test-model" || req.Stream {
			t.Errorf("unexpected request: %+v", req)
		}
		if !strings.Contains(req.Prompt, "loan decision engine") {
			t.Errorf("prompt missing domain: %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: validOutput})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	res := c.Decide(context.Background(), domain.DomainLoan, domain.Applicant{"income": 80000}, nil, nil)

	if res.Decision.Status != domain.StatusApproved {
		t.Errorf("status = %q, want APPROVED", res.Decision.Status)
	}
}

func TestDecideTransportFailureYieldsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	res := c.Decide(context.Background(), domain.DomainCredit, domain.Applicant{}, nil, nil)

	if res.Decision.Status != domain.StatusRejected {
		t.Errorf("status = %q, want REJECTED", res.Decision.Status)
	}
	if res.Fairness.Assessment != "Unknown" {
		t.Errorf("fairness = %q, want fallback", res.Fairness.Assessment)
	}
}

func TestDecideUnreachableEndpointYieldsFallback(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	res := c.Decide(context.Background(), domain.DomainJob, domain.Applicant{}, nil, nil)
	if res.Decision.Status != domain.StatusRejected || res.Decision.Confidence != 0.5 {
		t.Errorf("got (%q, %v), want fallback", res.Decision.Status, res.Decision.Confidence)
	}
}

func TestDecideSingleAttemptNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.Decide(context.Background(), domain.DomainLoan, domain.Applicant{}, nil, nil)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want exactly 1", got)
	}
}

func TestDecideCancelledContextYieldsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: validOutput})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	res := c.Decide(ctx, domain.DomainInsurance, domain.Applicant{}, nil, nil)
	if res.Decision.Status != domain.StatusRejected {
		t.Errorf("status = %q, want fallback REJECTED", res.Decision.Status)
	}
}

func TestPromptIncludesPoliciesAndHistory(t *testing.T) {
	policies := []*domain.PolicyConfig{
		{ID: "g1", Domain: domain.PolicyDomainGlobal, Text: "Always verify identity documents.", Enabled: true},
		{ID: "l1", Domain: "loan", Text: "Loans above RM500k need collateral.", Enabled: true},
		{ID: "c1", Domain: "credit", Text: "Credit-only policy.", Enabled: true},
		{ID: "off", Domain: "loan", Text: "Disabled policy.", Enabled: false},
	}
	history := []*domain.DecisionRecord{
		{Status: domain.StatusApproved, Reasoning: "Good income profile."},
	}

	prompt := BuildPrompt(domain.DomainLoan, domain.Applicant{"income": 50000}, policies, history)

	if !strings.Contains(prompt, "APPLICABLE POLICIES AND RULES:") {
		t.Error("missing policy section")
	}
	if !strings.Contains(prompt, "1. Always verify identity documents.") {
		t.Error("global policy should come first")
	}
	if !strings.Contains(prompt, "2. Loans above RM500k need collateral.") {
		t.Error("missing domain policy")
	}
	if strings.Contains(prompt, "Credit-only policy.") {
		t.Error("other-domain policy leaked into prompt")
	}
	if strings.Contains(prompt, "Disabled policy.") {
		t.Error("disabled policy leaked into prompt")
	}
	if !strings.Contains(prompt, "RECENT SIMILAR DECISIONS:") {
		t.Error("missing history section")
	}
	if !strings.Contains(prompt, "Income: 50000") {
		t.Errorf("missing applicant line, prompt:\n%s", prompt)
	}
}
