package llm

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/explainable-finance/verdict/internal/domain"
)

const validOutput = `{"decision":{"status":"APPROVED","confidence":0.82,"reasoning":"Strong income and clean history."},"counterfactuals":[],"fairness":{"assessment":"Fair","concerns":"none"},"key_metrics":{"risk_score":20,"approval_probability":0.8,"critical_factors":["income","history"]}}`

func TestExtractPlainJSON(t *testing.T) {
	parsed := ExtractDecision(domain.DomainLoan, validOutput)
	if parsed.Fallback {
		t.Fatalf("unexpected fallback: %s", parsed.Reason)
	}
	res := parsed.Result
	if res.Decision.Status != domain.StatusApproved {
		t.Errorf("status = %q", res.Decision.Status)
	}
	if res.Decision.Confidence != 0.82 {
		t.Errorf("confidence = %v", res.Decision.Confidence)
	}
	if res.KeyMetrics.RiskScore != 20 {
		t.Errorf("risk score = %d", res.KeyMetrics.RiskScore)
	}
}

func TestExtractSurroundedByProse(t *testing.T) {
	text := "Here is my evaluation:\n" + validOutput + "\nLet me know if you need more."
	parsed := ExtractDecision(domain.DomainLoan, text)
	if parsed.Fallback {
		t.Fatalf("unexpected fallback: %s", parsed.Reason)
	}
}

func TestExtractFencedJSON(t *testing.T) {
	text := "```json\n" + validOutput + "\n```"
	parsed := ExtractDecision(domain.DomainCredit, text)
	if parsed.Fallback {
		t.Fatalf("unexpected fallback: %s", parsed.Reason)
	}
	if parsed.Result.Domain != domain.DomainCredit {
		t.Errorf("domain = %q", parsed.Result.Domain)
	}
}

func TestExtractEmptyTextFallsBack(t *testing.T) {
	parsed := ExtractDecision(domain.DomainJob, "")
	if !parsed.Fallback {
		t.Fatal("expected fallback")
	}
	res := parsed.Result
	if res.Decision.Status != domain.StatusRejected {
		t.Errorf("status = %q, want REJECTED", res.Decision.Status)
	}
	if res.Decision.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", res.Decision.Confidence)
	}
	if res.Fairness.Assessment != "Unknown" {
		t.Errorf("fairness = %q, want Unknown", res.Fairness.Assessment)
	}
	if res.KeyMetrics.RiskScore != 50 {
		t.Errorf("risk score = %d, want 50", res.KeyMetrics.RiskScore)
	}
	if len(res.Counterfactuals) != 3 {
		t.Errorf("counterfactuals = %v, want 3 generic steps", res.Counterfactuals)
	}
}

func TestExtractGarbageFallsBack(t *testing.T) {
	parsed := ExtractDecision(domain.DomainJob, "I am sorry, I cannot evaluate this application.")
	if !parsed.Fallback {
		t.Fatal("expected fallback")
	}
}

func TestExtractUnknownStatusCoercedToRejected(t *testing.T) {
	text := `{"decision":{"status":"MAYBE","confidence":0.6,"reasoning":"unsure"}}`
	parsed := ExtractDecision(domain.DomainLoan, text)
	if parsed.Fallback {
		t.Fatalf("unexpected fallback: %s", parsed.Reason)
	}
	if parsed.Result.Decision.Status != domain.StatusRejected {
		t.Errorf("status = %q, want REJECTED", parsed.Result.Decision.Status)
	}
}

func TestNormalizeCounterfactualsList(t *testing.T) {
	raw := json.RawMessage(`["Improve credit", "Step 2: already done", "Add documents"]`)
	got := NormalizeCounterfactuals(raw)
	want := []string{
		"Step 1: Improve credit",
		"Step 2: already done",
		"Step 3: Add documents",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNormalizeCounterfactualsPackedString(t *testing.T) {
	raw := json.RawMessage(`"Do one thing;Do another thing\nDo a third thing"`)
	got := NormalizeCounterfactuals(raw)
	if len(got) != 3 {
		t.Fatalf("got %v, want 3 entries", got)
	}
	for i, s := range got {
		if !strings.HasPrefix(s, "Step ") {
			t.Errorf("step[%d] = %q not numbered", i, s)
		}
	}
}

func TestNormalizeCounterfactualsCapped(t *testing.T) {
	raw := json.RawMessage(`["a","b","c","d","e","f","g"]`)
	if got := NormalizeCounterfactuals(raw); len(got) != 5 {
		t.Errorf("len = %d, want 5", len(got))
	}
}
