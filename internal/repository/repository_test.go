package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/explainable-finance/verdict/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestApplication(d domain.Domain) *domain.Application {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Application{
		ID:        uuid.New().String(),
		Domain:    d,
		Data:      domain.Applicant{"income": 50000.0, "credit_score": 680.0},
		Status:    domain.AppStatusPendingAI,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestApplicationRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	app := newTestApplication(domain.DomainLoan)
	if err := repo.SaveApplication(ctx, app); err != nil {
		t.Fatalf("SaveApplication: %v", err)
	}

	got, err := repo.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if got.Domain != domain.DomainLoan {
		t.Errorf("domain = %q", got.Domain)
	}
	if got.Status != domain.AppStatusPendingAI {
		t.Errorf("status = %q", got.Status)
	}
	if got.Data["income"] != 50000.0 {
		t.Errorf("data income = %v", got.Data["income"])
	}
	if got.IsOverride {
		t.Error("fresh application marked override")
	}
}

func TestGetApplicationNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetApplication(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateApplicationReviewFlow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	app := newTestApplication(domain.DomainCredit)
	if err := repo.SaveApplication(ctx, app); err != nil {
		t.Fatalf("SaveApplication: %v", err)
	}

	reviewed := time.Now().UTC().Truncate(time.Second)
	app.Status = domain.AppStatusCompleted
	app.Result = &domain.DecisionResult{
		Domain:   domain.DomainCredit,
		Decision: domain.Decision{Status: domain.StatusRejected, Confidence: 0.4, Reasoning: "weak profile"},
	}
	app.FinalDecision = "approved"
	app.ReviewerComment = "verified employment by phone"
	app.ReviewedAt = &reviewed
	app.IsOverride = true
	app.OverrideExplanation = &domain.OverrideExplanation{
		Summary:         "Manual approval after verification.",
		NextSteps:       []string{"Submit signed agreement"},
		OverrideContext: "AI recommended REJECTED; reviewer decided approved",
	}
	app.UpdatedAt = reviewed

	if err := repo.UpdateApplication(ctx, app); err != nil {
		t.Fatalf("UpdateApplication: %v", err)
	}

	got, err := repo.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if !got.IsOverride {
		t.Error("override flag lost")
	}
	if got.Result == nil || got.Result.Decision.Status != domain.StatusRejected {
		t.Error("stored result lost")
	}
	if got.OverrideExplanation == nil || got.OverrideExplanation.Summary == "" {
		t.Error("override explanation lost")
	}
	if got.ReviewedAt == nil {
		t.Error("reviewed_at lost")
	}
}

func TestUpdateMissingApplication(t *testing.T) {
	repo := newTestRepo(t)
	app := newTestApplication(domain.DomainJob)
	err := repo.UpdateApplication(context.Background(), app)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListApplicationsByStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	pending := newTestApplication(domain.DomainLoan)
	done := newTestApplication(domain.DomainLoan)
	done.Status = domain.AppStatusCompleted

	repo.SaveApplication(ctx, pending)
	repo.SaveApplication(ctx, done)

	got, err := repo.ListApplications(ctx, domain.AppStatusPendingAI)
	if err != nil {
		t.Fatalf("ListApplications: %v", err)
	}
	if len(got) != 1 || got[0].ID != pending.ID {
		t.Errorf("filtered list = %v", got)
	}

	all, err := repo.ListApplications(ctx, "")
	if err != nil {
		t.Fatalf("ListApplications all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all = %d, want 2", len(all))
	}
}

func TestDecisionHistory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := &domain.DecisionRecord{
			ID:        uuid.New().String(),
			Domain:    domain.DomainInsurance,
			Status:    domain.StatusApproved,
			Reasoning: "clean record",
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		if err := repo.SaveDecision(ctx, rec); err != nil {
			t.Fatalf("SaveDecision: %v", err)
		}
	}
	// Different domain must not leak into the listing.
	repo.SaveDecision(ctx, &domain.DecisionRecord{
		ID: uuid.New().String(), Domain: domain.DomainJob,
		Status: domain.StatusRejected, Reasoning: "other", CreatedAt: time.Now().UTC(),
	})

	got, err := repo.ListDecisions(ctx, domain.DomainInsurance, 2)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, rec := range got {
		if rec.Domain != domain.DomainInsurance {
			t.Errorf("domain = %q", rec.Domain)
		}
	}
}

func TestPolicyCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	p := &domain.PolicyConfig{
		ID:         "loan-cap",
		Domain:     "loan",
		Text:       "Loans above RM1M need board approval.",
		Expression: `loan_amount > 1000000.0`,
		Delta:      -30,
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.SavePolicy(ctx, p); err != nil {
		t.Fatalf("SavePolicy: %v", err)
	}

	got, err := repo.GetPolicy(ctx, "loan-cap")
	if err != nil {
		t.Fatalf("GetPolicy: %v", err)
	}
	if got.Delta != -30 || !got.Enabled {
		t.Errorf("policy = %+v", got)
	}

	// Saving again with the same ID replaces.
	p.Text = "Loans above RM1M need board approval and collateral."
	if err := repo.SavePolicy(ctx, p); err != nil {
		t.Fatalf("SavePolicy replace: %v", err)
	}
	got, _ = repo.GetPolicy(ctx, "loan-cap")
	if got.Text != p.Text {
		t.Errorf("text = %q", got.Text)
	}

	// Global policies appear in domain-scoped listings.
	repo.SavePolicy(ctx, &domain.PolicyConfig{
		ID: "global-kyc", Domain: domain.PolicyDomainGlobal,
		Text: "Verify identity.", Enabled: true, CreatedAt: now, UpdatedAt: now,
	})
	repo.SavePolicy(ctx, &domain.PolicyConfig{
		ID: "credit-only", Domain: "credit",
		Text: "Credit policy.", Enabled: true, CreatedAt: now, UpdatedAt: now,
	})

	scoped, err := repo.ListPolicies(ctx, "loan")
	if err != nil {
		t.Fatalf("ListPolicies: %v", err)
	}
	if len(scoped) != 2 {
		t.Errorf("scoped = %d, want loan + global", len(scoped))
	}

	if err := repo.DeletePolicy(ctx, "loan-cap"); err != nil {
		t.Fatalf("DeletePolicy: %v", err)
	}
	if _, err := repo.GetPolicy(ctx, "loan-cap"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after delete", err)
	}
	if err := repo.DeletePolicy(ctx, "loan-cap"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete err = %v, want ErrNotFound", err)
	}
}

func TestRebindPostgresPlaceholders(t *testing.T) {
	r := &SQLRepository{driver: "postgres"}
	got := r.rebind("SELECT * FROM t WHERE a = ? AND b = ?")
	want := "SELECT * FROM t WHERE a = $1 AND b = $2"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	r.driver = "sqlite"
	passthrough := "SELECT * FROM t WHERE a = ?"
	if got := r.rebind(passthrough); got != passthrough {
		t.Errorf("sqlite rebind altered query: %q", got)
	}
}
