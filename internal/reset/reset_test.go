package reset_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sidecartridge/booster/boosterd/internal/reset"
)

func TestNewCommand(t *testing.T) {
	t.Parallel()

	require.Equal(t, reset.Noop{}, reset.NewCommand("   "))

	r := reset.NewCommand("true --flag value")
	cmd, ok := r.(*reset.Command)
	require.True(t, ok)
	require.Equal(t, "true", cmd.Name)
	require.Equal(t, []string{"--flag", "value"}, cmd.Args)
}

func TestReset(t *testing.T) {
	t.Parallel()

	require.NoError(t, reset.NewCommand("true").Reset(context.Background()))
	require.Error(t, reset.NewCommand("false").Reset(context.Background()))
	require.NoError(t, reset.Noop{}.Reset(context.Background()))
}
