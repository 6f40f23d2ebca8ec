package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClockHonorsPinnedTime(t *testing.T) {
	pinned := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := WithTime(context.Background(), pinned)

	assert.Equal(t, pinned, SystemClock{}.Now(ctx))
	assert.WithinDuration(t, time.Now().UTC(), SystemClock{}.Now(context.Background()), time.Second)
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)
	c := Fixed(at)

	assert.Equal(t, at, c.Now(context.Background()))
	later := at.Add(time.Hour)
	assert.Equal(t, later, c.Now(WithTime(context.Background(), later)))
}
