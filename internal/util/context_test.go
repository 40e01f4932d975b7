package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContextWithStartTime(t *testing.T) {
	t.Parallel()

	now := time.Now()
	ctx := ContextWithStartTime(context.Background(), now)

	assert.Equal(t, now, StartTimeFromContext(ctx))
	assert.True(t, StartTimeFromContext(context.Background()).IsZero())
}

func TestContextWithRoute(t *testing.T) {
	t.Parallel()

	ctx := ContextWithRoute(context.Background(), "/sap/opu/odata")

	assert.Equal(t, "/sap/opu/odata", RouteFromContext(ctx))
	assert.Empty(t, RouteFromContext(context.Background()))
}

func TestContextWithDestination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ctx      context.Context
		expected string
		found    bool
	}{
		{
			name:     "set",
			ctx:      ContextWithDestination(context.Background(), "erp"),
			expected: "erp",
			found:    true,
		},
		{
			name: "not set",
			ctx:  context.Background(),
		},
		{
			name: "empty name",
			ctx:  ContextWithDestination(context.Background(), ""),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			name, ok := DestinationFromContext(tt.ctx)
			assert.Equal(t, tt.expected, name)
			assert.Equal(t, tt.found, ok)
		})
	}
}

func TestElapsedTime(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Duration(0), ElapsedTime(context.Background()))

	ctx := ContextWithStartTime(context.Background(), time.Now().Add(-50*time.Millisecond))
	assert.GreaterOrEqual(t, ElapsedTime(ctx), 50*time.Millisecond)
}

func TestContextChaining(t *testing.T) {
	t.Parallel()

	ctx := ContextWithRoute(context.Background(), "/api")
	ctx = ContextWithDestination(ctx, "backend")

	assert.Equal(t, "/api", RouteFromContext(ctx))
	name, ok := DestinationFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "backend", name)
}
