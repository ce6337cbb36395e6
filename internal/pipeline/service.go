package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"textanalysis/internal/broker"
	"textanalysis/internal/logger"
	"textanalysis/internal/store"
	apperrors "textanalysis/pkg/errors"
	"textanalysis/pkg/logging"
	"textanalysis/pkg/metrics"
	"textanalysis/pkg/models"
)

type Processor interface {
	Process(ctx context.Context, raw models.RawRecord) (models.ProcessedRecord, error)
}

type Publisher interface {
	Publish(ctx context.Context, record models.ProcessedRecord) (bool, error)
}

// Service runs one inbound message through decode, transform, persist and
// publish. Every failure is logged here and returned classified; callers
// acknowledge the message either way.
type Service struct {
	processor Processor
	repo      store.Repository
	publisher Publisher
	logger    logger.Logger
}

func NewService(processor Processor, repo store.Repository, publisher Publisher, log logger.Logger) *Service {
	return &Service{
		processor: processor,
		repo:      repo,
		publisher: publisher,
		logger:    log,
	}
}

// Handle implements broker.HandlerFunc.
func (s *Service) Handle(ctx context.Context, msg broker.Message) error {
	start := time.Now()

	raw, err := models.DecodeRawRecord(msg.Body)
	if err != nil {
		ctx = s.tagContext(ctx, models.PeekID(msg.Body))
		appErr := apperrors.Wrap(err, apperrors.ErrDecode)
		s.logger.ErrorwCtx(ctx, "Failed to decode message",
			"error", appErr,
			"size_bytes", len(msg.Body),
		)
		metrics.ObserveMessage("unknown", "decode_error", time.Since(start))
		return appErr
	}

	ctx = s.tagContext(ctx, raw.ID)
	action := actionLabel(raw)

	record, err := s.processor.Process(ctx, raw)
	if err != nil {
		if apperrors.IsValidation(err) {
			s.logger.WarnwCtx(ctx, "Message rejected",
				"error", err,
				"type", raw.Type,
			)
			metrics.ObserveMessage(action, "validation_error", time.Since(start))
			return err
		}
		return s.downstream(ctx, start, action, "scoring failed", err)
	}

	if err := store.Save(ctx, s.repo, record); err != nil {
		return s.downstream(ctx, start, action, "store write failed", err)
	}

	published, err := s.publisher.Publish(ctx, record)
	if err != nil {
		return s.downstream(ctx, start, action, "publish failed", err)
	}

	fields := []interface{}{
		"action", action,
		"published", published,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if u, ok := record.(*models.UpdateRecord); ok {
		fields = append(fields,
			"toxicity_score", u.ToxicityScore,
			"is_toxic", u.IsToxic,
			"processing_time", u.ProcessingTime,
		)
	}
	s.logger.InfowCtx(ctx, "Message processed", fields...)
	metrics.ObserveMessage(action, "success", time.Since(start))

	return nil
}

func (s *Service) downstream(ctx context.Context, start time.Time, action, message string, cause error) error {
	appErr := apperrors.Wrap(cause, apperrors.ErrDownstream.WithMessage(message))
	s.logger.ErrorwCtx(ctx, "Message processing failed",
		"error", appErr,
		"action", action,
	)
	metrics.ObserveMessage(action, "downstream_error", time.Since(start))
	return appErr
}

func (s *Service) tagContext(ctx context.Context, id string) context.Context {
	if id != "" {
		ctx = logging.WithMessageID(ctx, id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ctx = logging.WithTraceID(ctx, sc.TraceID().String())
	}
	return ctx
}

func actionLabel(raw models.RawRecord) string {
	switch a := raw.Action(); a {
	case models.ActionUpdate, models.ActionDelete:
		return string(a)
	default:
		return "unknown"
	}
}
