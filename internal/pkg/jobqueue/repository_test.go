package jobqueue

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelayBounds(t *testing.T) {
	t.Parallel()

	base := 60 * time.Second
	for attempt := 0; attempt < 5; attempt++ {
		for i := 0; i < 50; i++ {
			d := BackoffDelay(base, attempt)
			lower := time.Duration(float64(base) * pow3(attempt) * 0.8)
			upper := time.Duration(float64(base) * pow3(attempt) * 1.2)
			assert.GreaterOrEqual(t, d, lower)
			assert.LessOrEqual(t, d, upper)
		}
	}
}

func pow3(n int) float64 {
	out := 1.0
	for i := 0; i < n; i++ {
		out *= 3
	}
	return out
}

func TestAppendErrorEntryAccumulatesHistory(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`{"video_id":"v1"}`)

	p1 := appendErrorEntry(payload, 0, errors.New("first failure"))
	var doc1 map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(p1, &doc1))
	var entries1 []ErrorEntry
	require.NoError(t, json.Unmarshal(doc1["errors"], &entries1))
	require.Len(t, entries1, 1)
	assert.Equal(t, "first failure", entries1[0].Message)

	p2 := appendErrorEntry(p1, 1, errors.New("second failure"))
	var doc2 map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(p2, &doc2))
	var entries2 []ErrorEntry
	require.NoError(t, json.Unmarshal(doc2["errors"], &entries2))
	require.Len(t, entries2, 2)
	assert.Equal(t, "first failure", entries2[0].Message)
	assert.Equal(t, "second failure", entries2[1].Message)

	// original payload fields survive
	var videoID struct {
		VideoID string `json:"video_id"`
	}
	require.NoError(t, json.Unmarshal(p2, &videoID))
	assert.Equal(t, "v1", videoID.VideoID)
}
