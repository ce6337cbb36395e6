package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"textanalysis/internal/broker"
	"textanalysis/internal/logger"
	"textanalysis/pkg/cel"
	"textanalysis/pkg/metrics"
	"textanalysis/pkg/models"
	"textanalysis/pkg/tracing"
)

// Publisher forwards processed updates to the output destination. Deletes
// are never published.
type Publisher struct {
	producer    broker.Producer
	destination string
	filter      *cel.Filter
	logger      logger.Logger
}

// New compiles filterExpr; an empty expression forwards every update.
func New(producer broker.Producer, destination, filterExpr string, log logger.Logger) (*Publisher, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	filter, err := evaluator.CompileFilter(filterExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid publisher filter: %w", err)
	}

	return &Publisher{
		producer:    producer,
		destination: destination,
		filter:      filter,
		logger:      log,
	}, nil
}

// Publish reports whether a message was sent. Failures are not retried.
func (p *Publisher) Publish(ctx context.Context, record models.ProcessedRecord) (bool, error) {
	update, ok := record.(*models.UpdateRecord)
	if !ok {
		return false, nil
	}

	match, err := p.filter.Match(ctx, update)
	if err != nil {
		return false, err
	}
	if !match {
		metrics.IncPublisherFiltered()
		p.logger.DebugwCtx(ctx, "Update withheld by publisher filter",
			"id", update.ID,
			"filter", p.filter.Expression(),
		)
		return false, nil
	}

	body, err := json.Marshal(update)
	if err != nil {
		return false, fmt.Errorf("failed to encode update: %w", err)
	}

	msg := broker.Message{
		Key:     update.ID,
		Body:    body,
		Headers: tracing.InjectMap(ctx),
	}

	if err := p.producer.Publish(ctx, p.destination, msg); err != nil {
		return false, fmt.Errorf("failed to publish to %s: %w", p.destination, err)
	}

	return true, nil
}
