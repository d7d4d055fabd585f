package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/explainable-finance/verdict/internal/domain"
)

// MaxUploadBytes bounds uploaded file size (10 MB).
const MaxUploadBytes = 10 << 20

// DecideUpload handles POST /decision/{domain}/upload: a multipart CSV,
// JSON, or TXT file of applicants, evaluated as a batch and stored as
// applications awaiting review.
func (h *Handler) DecideUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	d, ok := h.domainParam(w, r)
	if !ok {
		return
	}

	filename, content, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	applicants, err := parseApplicants(filename, content)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if len(applicants) > MaxBatchRecords {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("max %d records allowed", MaxBatchRecords),
		})
		return
	}

	results := h.evaluator.EvaluateBatch(ctx, d, applicants)

	// Each upload row becomes a reviewable application with the automated
	// result already attached.
	for i, result := range results {
		h.recordDecision(r, d, result)

		now := time.Now().UTC()
		app := &domain.Application{
			ID:        uuid.New().String(),
			Domain:    d,
			Data:      applicants[i],
			Status:    domain.AppStatusPendingHuman,
			Result:    result,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := h.repo.SaveApplication(ctx, app); err != nil {
			slog.Error("failed to save uploaded application", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, BatchResponse{Count: len(results), Results: results})
}

// UploadPolicies handles POST /policies/upload?domain=: a file of free-text
// policies, one stored per entry. JSON takes a list of strings or objects
// with a "text" field, CSV needs a "policy" column, TXT is one per line.
func (h *Handler) UploadPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyDomain := r.URL.Query().Get("domain")
	if !validPolicyDomain(policyDomain) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": `domain must be one of loan, credit, insurance, job, or "global"`,
		})
		return
	}

	filename, content, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	texts, err := parsePolicyTexts(filename, content)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	now := time.Now().UTC()
	saved := make([]*domain.PolicyConfig, 0, len(texts))
	for _, text := range texts {
		cfg := &domain.PolicyConfig{
			ID:        uuid.New().String(),
			Domain:    policyDomain,
			Text:      text,
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := h.repo.SavePolicy(ctx, cfg); err != nil {
			slog.Error("failed to save uploaded policy", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save policy",
			})
			return
		}
		saved = append(saved, cfg)
	}

	slog.Info("policies uploaded", "domain", policyDomain, "count", len(saved))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"count":    len(saved),
		"policies": saved,
	})
}

// readUpload extracts the "file" part of a multipart request, enforcing the
// size limit.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": `multipart form with a "file" part is required`,
		})
		return "", nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("file exceeds the %d MB limit", MaxUploadBytes>>20),
		})
		return "", nil, false
	}

	return header.Filename, content, true
}

// parseApplicants decodes an uploaded file into applicant records based on
// its extension.
func parseApplicants(filename string, content []byte) ([]domain.Applicant, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return parseCSVApplicants(content)
	case ".json":
		return parseJSONApplicants(content)
	case ".txt":
		// A text file carries one applicant as "key: value" lines.
		applicant := parseKeyValueText(string(content))
		if len(applicant) == 0 {
			return nil, fmt.Errorf("no key: value lines found in text file")
		}
		return []domain.Applicant{applicant}, nil
	}
	return nil, fmt.Errorf("unsupported file type. Use .csv, .json, or .txt")
}

func parseCSVApplicants(content []byte) ([]domain.Applicant, error) {
	reader := csv.NewReader(strings.NewReader(string(content)))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV: %v", err)
	}

	var applicants []domain.Applicant
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid CSV: %v", err)
		}
		applicant := make(domain.Applicant, len(header))
		for i, col := range header {
			if i < len(record) {
				applicant[strings.TrimSpace(col)] = numericOrString(record[i])
			}
		}
		applicants = append(applicants, applicant)
	}
	return applicants, nil
}

func parseJSONApplicants(content []byte) ([]domain.Applicant, error) {
	var list []domain.Applicant
	if err := json.Unmarshal(content, &list); err == nil {
		return list, nil
	}

	var single domain.Applicant
	if err := json.Unmarshal(content, &single); err == nil {
		return []domain.Applicant{single}, nil
	}

	return nil, fmt.Errorf("JSON must be an applicant object or a list of them")
}

// parseKeyValueText turns "key: value" lines into one applicant record.
// Keys are lower-cased with spaces replaced by underscores.
func parseKeyValueText(text string) domain.Applicant {
	parsed := make(domain.Applicant)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
		if key == "" {
			continue
		}
		parsed[key] = numericOrString(strings.TrimSpace(value))
	}
	return parsed
}

// numericOrString converts a CSV/TXT cell to a number when it parses as
// one, else keeps the string.
func numericOrString(s string) any {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func parsePolicyTexts(filename string, content []byte) ([]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return parseJSONPolicyTexts(content)
	case ".csv":
		return parseCSVPolicyTexts(content)
	case ".txt":
		var texts []string
		for _, line := range strings.Split(string(content), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				texts = append(texts, line)
			}
		}
		return texts, nil
	}
	return nil, fmt.Errorf("unsupported file type. Use .json, .csv, or .txt")
}

func parseJSONPolicyTexts(content []byte) ([]string, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, fmt.Errorf("JSON must be a list of policy strings or objects")
	}

	var texts []string
	for _, entry := range entries {
		var s string
		if err := json.Unmarshal(entry, &s); err == nil {
			texts = append(texts, s)
			continue
		}
		var obj struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(entry, &obj); err == nil && obj.Text != "" {
			texts = append(texts, obj.Text)
			continue
		}
		return nil, fmt.Errorf("JSON must be a list of policy strings or objects with a \"text\" field")
	}
	return texts, nil
}

func parseCSVPolicyTexts(content []byte) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(string(content)))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV: %v", err)
	}

	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "policy") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf(`CSV must have a "policy" column`)
	}

	var texts []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid CSV: %v", err)
		}
		if col < len(record) {
			if text := strings.TrimSpace(record[col]); text != "" {
				texts = append(texts, text)
			}
		}
	}
	return texts, nil
}
