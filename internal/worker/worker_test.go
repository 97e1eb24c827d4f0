package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffForScalesWithAttempts(t *testing.T) {
	assert.Equal(t, 10*time.Second, backoffFor(1))
	assert.Equal(t, 40*time.Second, backoffFor(3))
}

func TestBackoffForCapsAtMaximum(t *testing.T) {
	assert.Equal(t, 5*time.Minute, backoffFor(100))
}
