// Package worker provides async application processing from the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/explainable-finance/verdict/internal/domain"
	"github.com/explainable-finance/verdict/internal/engine"
)

// Worker consumes submitted applications from the bus, evaluates them, and
// moves them to human review.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	evaluator *engine.Evaluator

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates an async evaluation worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, evaluator *engine.Evaluator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		evaluator: evaluator,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the application intake topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicApplicationReceived, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("evaluation worker started", "topic", domain.TopicApplicationReceived)
	return nil
}

// ApplicationMessage is the intake message payload.
type ApplicationMessage struct {
	ApplicationID string           `json:"applicationId"`
	Domain        string           `json:"domain"`
	Applicant     domain.Applicant `json:"applicant"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var appMsg ApplicationMessage
	if err := json.Unmarshal(msg.Payload, &appMsg); err != nil {
		slog.Error("failed to parse application message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	d, err := domain.ParseDomain(appMsg.Domain)
	if err != nil {
		slog.Error("application message carries unknown domain",
			"message_id", msg.ID,
			"domain", appMsg.Domain,
		)
		return err
	}

	result := w.evaluator.Evaluate(ctx, d, appMsg.Applicant)

	// Move the application to human review with the automated result
	// attached.
	if w.repo != nil && appMsg.ApplicationID != "" {
		app, err := w.repo.GetApplication(ctx, appMsg.ApplicationID)
		if err != nil {
			slog.Error("failed to load application",
				"application_id", appMsg.ApplicationID,
				"error", err,
			)
		} else {
			app.Result = result
			app.Status = domain.AppStatusPendingHuman
			app.UpdatedAt = time.Now().UTC()
			if err := w.repo.UpdateApplication(ctx, app); err != nil {
				slog.Error("failed to update application",
					"application_id", appMsg.ApplicationID,
					"error", err,
				)
			}
		}

		if err := w.repo.SaveDecision(ctx, &domain.DecisionRecord{
			ID:        uuid.New().String(),
			Domain:    d,
			Status:    result.Decision.Status,
			Reasoning: result.Decision.Reasoning,
			Result:    result,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			slog.Error("failed to record decision",
				"application_id", appMsg.ApplicationID,
				"error", err,
			)
		}
	}

	payload, _ := json.Marshal(map[string]any{
		"applicationId": appMsg.ApplicationID,
		"domain":        string(d),
		"result":        result,
	})
	if err := w.bus.Publish(ctx, domain.TopicDecisionCompleted, payload); err != nil {
		slog.Error("failed to publish decision",
			"application_id", appMsg.ApplicationID,
			"error", err,
		)
	}

	slog.Info("application processed",
		"application_id", appMsg.ApplicationID,
		"domain", d,
		"status", result.Decision.Status,
		"cached", result.Audit.Cached,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("evaluation worker stopped")
	return nil
}
