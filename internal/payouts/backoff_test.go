package payouts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBackoffGrowth(t *testing.T) {
	base := time.Minute
	cap := 6 * time.Hour

	assert.Equal(t, time.Minute, NextBackoff(base, cap, 1))
	assert.Equal(t, 4*time.Minute, NextBackoff(base, cap, 2))
	assert.Equal(t, 16*time.Minute, NextBackoff(base, cap, 3))
	assert.Equal(t, 64*time.Minute, NextBackoff(base, cap, 4))
}

func TestNextBackoffCap(t *testing.T) {
	assert.Equal(t, 6*time.Hour, NextBackoff(time.Minute, 6*time.Hour, 5))
	assert.Equal(t, 6*time.Hour, NextBackoff(time.Minute, 6*time.Hour, 50))
}

func TestNextBackoffDefaults(t *testing.T) {
	assert.Equal(t, time.Minute, NextBackoff(0, 0, 1))
	assert.Equal(t, 6*time.Hour, NextBackoff(0, 0, 10))
}

func TestNextBackoffMinimumAttempt(t *testing.T) {
	assert.Equal(t, time.Minute, NextBackoff(time.Minute, 6*time.Hour, 0))
	assert.Equal(t, time.Minute, NextBackoff(time.Minute, 6*time.Hour, -3))
}
