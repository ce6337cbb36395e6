package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textanalysis/pkg/cel"
	"textanalysis/pkg/models"
)

func TestBatchOptions_ExpectedUpdates(t *testing.T) {
	assert.Equal(t, 400, defaultBatchOptions().expectedUpdates())
	assert.Equal(t, 6, batchOptions{Size: 10, DeleteEvery: 3}.expectedUpdates())
	assert.Equal(t, 10, batchOptions{Size: 10}.expectedUpdates())

	for _, opts := range []batchOptions{
		{Size: 10, DeleteEvery: 3},
		{Size: 7, DeleteEvery: 2},
		{Size: 1, DeleteEvery: 5},
		{Size: 500, DeleteEvery: 5},
	} {
		updates := 0
		for i := 0; i < opts.Size; i++ {
			if batchRecord(i, opts.DeleteEvery, "ts").Action() == models.ActionUpdate {
				updates++
			}
		}
		assert.Equal(t, updates, opts.expectedUpdates(), "size=%d every=%d", opts.Size, opts.DeleteEvery)
	}
}

func TestBatchRecord(t *testing.T) {
	del := batchRecord(0, 5, "ts")
	assert.Equal(t, "msg_0", del.ID)
	assert.Equal(t, "delete", del.Type)
	assert.Nil(t, del.Text)
	assert.Equal(t, "user_0", *del.UserID)

	upd := batchRecord(23, 5, "ts")
	assert.Equal(t, "msg_23", upd.ID)
	assert.Equal(t, "update", upd.Type)
	assert.Equal(t, "Test message 23", *upd.Text)
	assert.Equal(t, "user_3", *upd.UserID)
	assert.Equal(t, "ts", *upd.Timestamp)

	updates := 0
	for i := 0; i < 500; i++ {
		if batchRecord(i, 5, "ts").Action() == models.ActionUpdate {
			updates++
		}
	}
	assert.Equal(t, 400, updates)
}

func TestExampleRecords(t *testing.T) {
	recs := exampleRecords(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, recs, 3)

	body, err := json.Marshal(recs[2])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"msg3","type":"delete"}`, string(body))

	body, err = json.Marshal(recs[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"msg1","type":"update","user_id":"u1","text":"Hello world","timestamp":"2025-01-01T00:00:00.000000"}`, string(body))

	assert.Equal(t, "delete", recs[1].Type)
	assert.Equal(t, "Another comment", *recs[1].Text)
}

func TestPollUntil(t *testing.T) {
	calls := 0
	n, err := pollUntil(context.Background(), time.Millisecond, func(ctx context.Context) (int64, bool, error) {
		calls++
		return int64(calls), calls == 3, nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	n, err = pollUntil(ctx, 5*time.Millisecond, func(ctx context.Context) (int64, bool, error) {
		return 7, false, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 7, n)

	boom := errors.New("count failed")
	_, err = pollUntil(context.Background(), time.Millisecond, func(ctx context.Context) (int64, bool, error) {
		return 0, false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestPrintFilterExamples(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printFilterExamples(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, len(cel.FilterExpressionExamples))
	assert.True(t, strings.HasPrefix(lines[0], "clean_and_quick"))
	assert.Contains(t, buf.String(), "toxicity_score >= 50")
}

func TestCheckFilter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, checkFilter(&buf, "is_toxic && toxicity_score > 90"))
	assert.Equal(t, "ok\n", buf.String())

	assert.Error(t, checkFilter(&buf, "toxicity_score"))
	assert.Error(t, checkFilter(&buf, "unknown_field == 1"))
}
