package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilTrailIsSafe(t *testing.T) {
	var trail *Trail

	trail.RecordSwap(context.Background(), SwapRecord{
		Signature: "sig",
		Timestamp: time.Now(),
		Outcome:   "finalized",
	})

	assert.NoError(t, trail.Close())
}
