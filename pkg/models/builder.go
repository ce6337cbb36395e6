package models

import (
	"math"
	"time"
)

type UpdateRecordBuilder struct {
	record *UpdateRecord
}

func NewUpdateRecordBuilder(raw RawRecord) *UpdateRecordBuilder {
	r := &UpdateRecord{
		Action:    ActionUpdate,
		ID:        raw.ID,
		UserID:    raw.UserID,
		Timestamp: raw.Timestamp,
	}
	if raw.Text != nil {
		r.OriginalText = *raw.Text
	}
	return &UpdateRecordBuilder{record: r}
}

// WithScore sets the score and derives IsToxic from threshold (strictly greater).
func (b *UpdateRecordBuilder) WithScore(score, threshold int) *UpdateRecordBuilder {
	b.record.ToxicityScore = score
	b.record.IsToxic = score > threshold
	return b
}

// WithProcessingTime records d in seconds, rounded to two decimals.
func (b *UpdateRecordBuilder) WithProcessingTime(d time.Duration) *UpdateRecordBuilder {
	b.record.ProcessingTime = RoundSeconds(d)
	return b
}

func (b *UpdateRecordBuilder) WithProcessedAt(t time.Time) *UpdateRecordBuilder {
	b.record.ProcessedAt = t.UTC().Truncate(time.Millisecond)
	return b
}

func (b *UpdateRecordBuilder) Build() *UpdateRecord {
	if b.record.ProcessedAt.IsZero() {
		b.WithProcessedAt(time.Now())
	}
	return b.record
}

func RoundSeconds(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return math.Round(d.Seconds()*100) / 100
}
