package ui

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptimistic(t *testing.T) {
	t.Run("success keeps the applied change", func(t *testing.T) {
		state := 0
		got, err := Optimistic(context.Background(),
			func() { state = 1 },
			func() { state = 0 },
			func(context.Context) (string, error) {
				require.Equal(t, 1, state)
				return "ok", nil
			},
		)
		require.NoError(t, err)
		require.Equal(t, "ok", got)
		require.Equal(t, 1, state)
	})

	t.Run("failure inverts", func(t *testing.T) {
		state := 0
		boom := errors.New("boom")
		_, err := Optimistic(context.Background(),
			func() { state = 1 },
			func() { state = 0 },
			func(context.Context) (int, error) { return 7, boom },
		)
		require.ErrorIs(t, err, boom)
		require.Equal(t, 0, state)
	})

	t.Run("call ignores caller cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Optimistic(ctx, func() {}, func() {}, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, ctx.Err()
		})
		require.NoError(t, err)
	})
}
