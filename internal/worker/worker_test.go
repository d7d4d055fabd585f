package worker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/explainable-finance/verdict/internal/bus"
	"github.com/explainable-finance/verdict/internal/domain"
	"github.com/explainable-finance/verdict/internal/engine"
	"github.com/explainable-finance/verdict/internal/repository"
)

func TestWorkerProcessesApplication(t *testing.T) {
	ctx := context.Background()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "worker.db"),
	})
	if err != nil {
		t.Fatalf("repository.New: %v", err)
	}
	defer repo.Close()

	b := bus.NewChannelBus(10)
	defer b.Close()

	w := NewWorker(b, repo, engine.New(engine.Options{}))
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	completed := make(chan *domain.Message, 1)
	b.Subscribe(ctx, domain.TopicDecisionCompleted, func(ctx context.Context, msg *domain.Message) error {
		completed <- msg
		return nil
	})

	app := &domain.Application{
		ID:        uuid.New().String(),
		Domain:    domain.DomainJob,
		Data:      domain.Applicant{"experience": 6.0, "education": "Master's", "skills_match": 85.0},
		Status:    domain.AppStatusPendingAI,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.SaveApplication(ctx, app); err != nil {
		t.Fatalf("SaveApplication: %v", err)
	}

	payload, _ := json.Marshal(ApplicationMessage{
		ApplicationID: app.ID,
		Domain:        "job",
		Applicant:     app.Data,
	})
	if err := b.Publish(ctx, domain.TopicApplicationReceived, payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("decision.completed not published")
	}

	got, err := repo.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if got.Status != domain.AppStatusPendingHuman {
		t.Errorf("status = %q, want pending_human", got.Status)
	}
	if got.Result == nil || got.Result.Decision.Status != domain.StatusApproved {
		t.Errorf("result = %+v, want APPROVED", got.Result)
	}

	history, err := repo.ListDecisions(ctx, domain.DomainJob, 10)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history = %d, want 1", len(history))
	}
}

func TestWorkerIgnoresMalformedPayload(t *testing.T) {
	b := bus.NewChannelBus(10)
	defer b.Close()

	w := NewWorker(b, nil, engine.New(engine.Options{}))
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := b.Publish(context.Background(), domain.TopicApplicationReceived, []byte("not json")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// The worker must stay alive after a bad message.
	time.Sleep(50 * time.Millisecond)
	if err := b.Ping(context.Background()); err != nil {
		t.Errorf("bus unhealthy: %v", err)
	}
}
