package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcileIntervalMatchesContract(t *testing.T) {
	assert.Equal(t, 15, int(ReconcileInterval.Seconds()), "reconciler must run every 15 seconds")
}
