package processor

import (
	"context"
	"time"

	"textanalysis/internal/constants"
	"textanalysis/internal/scoring"
	apperrors "textanalysis/pkg/errors"
	"textanalysis/pkg/metrics"
	"textanalysis/pkg/models"
	"textanalysis/pkg/tracing"
)

// Processor turns a decoded inbound record into its processed form.
type Processor struct {
	scorer    scoring.Scorer
	threshold int
	now       func() time.Time
}

func New(scorer scoring.Scorer, threshold int) *Processor {
	return &Processor{
		scorer:    scorer,
		threshold: threshold,
		now:       time.Now,
	}
}

// Process classifies raw by its type. Deletes pass through with only their
// id; updates are scored. Scorer errors are returned as-is.
func (p *Processor) Process(ctx context.Context, raw models.RawRecord) (models.ProcessedRecord, error) {
	switch raw.Action() {
	case models.ActionDelete:
		return models.NewDeleteRecord(raw.ID), nil
	case models.ActionUpdate:
		return p.processUpdate(ctx, raw)
	default:
		return nil, apperrors.ErrValidation.
			WithMessage("unknown type").
			WithDetail("type", raw.Type)
	}
}

func (p *Processor) processUpdate(ctx context.Context, raw models.RawRecord) (models.ProcessedRecord, error) {
	if !raw.HasText() {
		return nil, apperrors.ErrValidation.
			WithMessage("missing text").
			WithDetail("id", raw.ID)
	}

	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "processor.score")
	defer span.End()

	res, err := p.scorer.Score(ctx, *raw.Text)
	if err != nil {
		return nil, err
	}

	score := scoring.Clamp(res.Score)
	record := models.NewUpdateRecordBuilder(raw).
		WithScore(score, p.threshold).
		WithProcessingTime(res.Duration).
		WithProcessedAt(p.now()).
		Build()

	metrics.ObserveToxicity(record.ToxicityScore, record.IsToxic)
	return record, nil
}
