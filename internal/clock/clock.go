package clock

import (
	"context"
	"time"
)

type Clock interface {
	Now(ctx context.Context) time.Time
}

type simulatedTimeKey struct{}

// WithTime pins the time every Clock reports for calls made with ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, simulatedTimeKey{}, t.UTC())
}

// FromContext returns the time pinned by WithTime, if any.
func FromContext(ctx context.Context) (time.Time, bool) {
	if ctx == nil {
		return time.Time{}, false
	}
	t, ok := ctx.Value(simulatedTimeKey{}).(time.Time)
	return t, ok
}
