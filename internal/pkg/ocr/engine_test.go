package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognizeSucceedsOnFirstAttempt(t *testing.T) {
	engine := &MockEngine{Text: "hello   world\n"}
	frame := checkerboard(16)

	text, err := Recognize(context.Background(), engine, frame)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestRecognizeFallsBackToEnglishOnly(t *testing.T) {
	engine := &MockEngine{Text: "ok", FailCount: 1}
	frame := checkerboard(16)

	text, err := Recognize(context.Background(), engine, frame)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestRecognizeReturnsFatalWhenBothAttemptsFail(t *testing.T) {
	engine := &MockEngine{FailCount: 2}
	frame := checkerboard(16)

	_, err := Recognize(context.Background(), engine, frame)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOCRFatal)
}

func TestPostProcessCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", postProcess("  a   b\n\tc  "))
}
