package store

import (
	"time"

	"textanalysis/pkg/models"
)

// Document is the persisted form of an update, keyed by ID.
type Document struct {
	ID             string    `bson:"id" json:"id"`
	UserID         *string   `bson:"user_id" json:"user_id"`
	OriginalText   string    `bson:"original_text" json:"original_text"`
	Timestamp      *string   `bson:"timestamp" json:"timestamp"`
	ProcessingTime float64   `bson:"processing_time" json:"processing_time"`
	ToxicityScore  int       `bson:"toxicity_score" json:"toxicity_score"`
	IsToxic        bool      `bson:"is_toxic" json:"is_toxic"`
	ProcessedAt    time.Time `bson:"processed_at" json:"processed_at"`
}

func DocumentFromRecord(r *models.UpdateRecord) Document {
	return Document{
		ID:             r.ID,
		UserID:         r.UserID,
		OriginalText:   r.OriginalText,
		Timestamp:      r.Timestamp,
		ProcessingTime: r.ProcessingTime,
		ToxicityScore:  r.ToxicityScore,
		IsToxic:        r.IsToxic,
		ProcessedAt:    r.ProcessedAt,
	}
}
