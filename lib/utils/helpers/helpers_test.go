package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHelpers(t *testing.T) {
	t.Run(`Round check`, func(t *testing.T) {
		require.Equal(t, 8.5, Round(8.5, 2))
		require.Equal(t, 7.33, Round(7.3333333, 2))
		require.Equal(t, 0.667, Round(0.6666666, 3))
		require.Equal(t, 9.0, Round(8.999999, 2))
		require.Equal(t, 8.99, Round(8.994, 2))
	})

	t.Run(`IsContextDone check`, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		require.False(t, IsContextDone(ctx))
		cancel()
		require.True(t, IsContextDone(ctx))
		require.True(t, IsContextDone(nil))
	})

	t.Run(`Sleep check`, func(t *testing.T) {
		require.True(t, Sleep(context.Background(), time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.False(t, Sleep(ctx, time.Hour))
	})

	t.Run(`FloatValue check`, func(t *testing.T) {
		require.Equal(t, 0.0, FloatValue(nil))
		require.Equal(t, 1.5, FloatValue(FloatPtr(1.5)))
	})
}
