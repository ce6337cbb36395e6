package cel

var FilterExpressionExamples = map[string]string{
	"toxic_only":      `is_toxic`,
	"score_threshold": `toxicity_score >= 50`,
	"score_range":     `toxicity_score >= 20 && toxicity_score <= 80`,
	"known_user":      `user_id != ""`,
	"user_in_list":    `user_id in ["user_1", "user_2"]`,
	"text_contains":   `original_text.contains("urgent")`,
	"slow_analysis":   `processing_time > 10.0`,
	"recent":          `processed_at > timestamp("2024-01-01T00:00:00Z")`,
	"combined":        `is_toxic && user_id.startsWith("user_")`,
	"id_prefix":       `id.startsWith("msg_")`,
	"has_source_time": `timestamp != ""`,
	"clean_and_quick": `!is_toxic && processing_time < 5.0`,
}
