package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/explainable-finance/verdict/internal/domain"
)

// FormatAsText renders an applicant as "Key: value" lines, which costs fewer
// prompt tokens than JSON. Keys are title-cased and sorted for determinism.
func FormatAsText(a domain.Applicant) string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(readableKey(k))
		b.WriteString(": ")
		b.WriteString(formatValue(a[k]))
	}
	return b.String()
}

func readableKey(k string) string {
	words := strings.Split(strings.ReplaceAll(k, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "N/A"
	case string:
		return t
	case map[string]any:
		raw, err := json.Marshal(t)
		if err != nil {
			return "N/A"
		}
		return string(raw)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

// PolicySection formats operator policies for prompt injection. Global
// policies come first, then domain-scoped ones. Empty when no policy
// applies.
func PolicySection(d domain.Domain, policies []*domain.PolicyConfig) string {
	var global, scoped []*domain.PolicyConfig
	for _, p := range policies {
		if !p.Enabled || p.Text == "" {
			continue
		}
		switch p.Domain {
		case domain.PolicyDomainGlobal:
			global = append(global, p)
		case string(d):
			scoped = append(scoped, p)
		}
	}

	all := append(global, scoped...)
	if len(all) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nAPPLICABLE POLICIES AND RULES:\n")
	for i, p := range all {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.Text)
	}
	return b.String()
}

// HistorySection formats recent same-domain decisions for prompt context.
// Reasoning snippets are truncated to keep the prompt compact.
func HistorySection(records []*domain.DecisionRecord) string {
	if len(records) == 0 {
		return ""
	}

	const maxSnippet = 400

	var b strings.Builder
	b.WriteString("\n\nRECENT SIMILAR DECISIONS:\n")
	for i, rec := range records {
		snippet := rec.Reasoning
		if len(snippet) > maxSnippet {
			snippet = snippet[:maxSnippet]
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, rec.Status, snippet)
	}
	return b.String()
}

// BuildPrompt assembles the compact decision prompt with the output-format
// contract the extractor expects.
func BuildPrompt(d domain.Domain, a domain.Applicant, policies []*domain.PolicyConfig, history []*domain.DecisionRecord) string {
	return fmt.Sprintf(`You are a %s decision engine. Output JSON only.
Evaluate this application and decide APPROVED or REJECTED.

DATA:
%s%s%s

OUTPUT FORMAT:
{"decision":{"status":"APPROVED/REJECTED","confidence":0.0-1.0,"reasoning":"2-3 sentence explanation"},"counterfactuals":["Step 1:...","Step 2:...","Step 3:..."],"fairness":{"assessment":"Fair/Unfair","concerns":"brief"},"key_metrics":{"risk_score":0-100,"approval_probability":0.0-1.0,"critical_factors":["f1","f2"]}}

RULES: If REJECTED, list 3 actionable steps. If APPROVED, counterfactuals can be empty.`,
		d, FormatAsText(a), PolicySection(d, policies), HistorySection(history))
}
