package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRawRecord(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    RawRecord
		wantErr bool
	}{
		{
			name: "full update",
			body: `{"id":"1","type":"update","text":"hello","user_id":"u1","timestamp":"T"}`,
			want: RawRecord{ID: "1", Type: "update", Text: strPtr("hello"), UserID: strPtr("u1"), Timestamp: strPtr("T")},
		},
		{
			name: "bare delete",
			body: `{"id":"2","type":"delete"}`,
			want: RawRecord{ID: "2", Type: "delete"},
		},
		{
			name: "numeric id",
			body: `{"id":42,"type":"delete"}`,
			want: RawRecord{ID: "42", Type: "delete"},
		},
		{
			name: "missing id and null fields",
			body: `{"type":"update","text":null,"extra":{"a":1}}`,
			want: RawRecord{Type: "update"},
		},
		{name: "not json", body: `not-json`, wantErr: true},
		{name: "json array", body: `[1,2]`, wantErr: true},
		{name: "json null", body: `null`, wantErr: true},
		{name: "text wrong type", body: `{"id":"1","type":"update","text":5}`, wantErr: true},
		{
			name: "numeric type kept as text",
			body: `{"id":"1","type":5}`,
			want: RawRecord{ID: "1", Type: "5"},
		},
		{
			name: "bool type kept as text",
			body: `{"id":"1","type":true}`,
			want: RawRecord{ID: "1", Type: "true"},
		},
		{name: "id object", body: `{"id":{"x":1},"type":"delete"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRawRecord([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeekID(t *testing.T) {
	assert.Equal(t, "7", PeekID([]byte(`{"id":"7","type":"update"}`)))
	assert.Equal(t, "8", PeekID([]byte(`{"id":8}`)))
	assert.Equal(t, "", PeekID([]byte(`garbage`)))
	assert.Equal(t, "", PeekID([]byte(`{"type":"delete"}`)))
}

func TestRawRecordAction(t *testing.T) {
	assert.Equal(t, ActionUpdate, RawRecord{Type: "UPDATE"}.Action())
	assert.Equal(t, ActionDelete, RawRecord{Type: " Delete "}.Action())
	assert.Equal(t, Action("archive"), RawRecord{Type: "Archive"}.Action())

	assert.False(t, RawRecord{}.HasText())
	assert.False(t, RawRecord{Text: strPtr("")}.HasText())
	assert.True(t, RawRecord{Text: strPtr("x")}.HasText())
}

func TestUpdateRecordBuilder(t *testing.T) {
	raw := RawRecord{ID: "1", Type: "update", Text: strPtr("hello"), UserID: strPtr("u1")}
	at := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.FixedZone("CEST", 2*3600))

	rec := NewUpdateRecordBuilder(raw).
		WithScore(71, 70).
		WithProcessingTime(2345678 * time.Microsecond).
		WithProcessedAt(at).
		Build()

	assert.Equal(t, ActionUpdate, rec.Action)
	assert.Equal(t, "1", rec.ID)
	assert.Equal(t, "hello", rec.OriginalText)
	assert.Equal(t, 71, rec.ToxicityScore)
	assert.True(t, rec.IsToxic)
	assert.Equal(t, 2.35, rec.ProcessingTime)
	assert.Equal(t, time.UTC, rec.ProcessedAt.Location())
	assert.Equal(t, 123000000, rec.ProcessedAt.Nanosecond())
	assert.Nil(t, rec.Timestamp)

	atThreshold := NewUpdateRecordBuilder(raw).WithScore(70, 70).Build()
	assert.False(t, atThreshold.IsToxic)
	assert.False(t, atThreshold.ProcessedAt.IsZero())
}

func TestUpdateRecordJSONShape(t *testing.T) {
	rec := NewUpdateRecordBuilder(RawRecord{ID: "1", Text: strPtr("hi")}).
		WithScore(10, 70).
		WithProcessedAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)).
		Build()

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "update", out["action"])
	assert.Equal(t, "hi", out["original_text"])
	assert.Equal(t, "2024-01-02T03:04:05Z", out["processed_at"])
	assert.Contains(t, out, "user_id")
	assert.Nil(t, out["user_id"])
	assert.Equal(t, false, out["is_toxic"])
}

func TestRoundSeconds(t *testing.T) {
	assert.Equal(t, 0.0, RoundSeconds(-time.Second))
	assert.Equal(t, 1.0, RoundSeconds(999*time.Millisecond))
	assert.Equal(t, 14.99, RoundSeconds(14994*time.Millisecond))
}

func TestProcessedRecordVariants(t *testing.T) {
	var rec ProcessedRecord = NewDeleteRecord("2")
	assert.Equal(t, ActionDelete, rec.RecordAction())
	assert.Equal(t, "2", rec.RecordID())

	rec = &UpdateRecord{ID: "3"}
	assert.Equal(t, ActionUpdate, rec.RecordAction())
}

func strPtr(s string) *string { return &s }
