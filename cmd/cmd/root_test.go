package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCmd_HasRunSubcommand(t *testing.T) {
	found, _, err := rootCmd.Find([]string{"run"})
	require.NoError(t, err)
	require.Equal(t, "run", found.Name())
}

func TestRunCmd_FlagsRegistered(t *testing.T) {
	for _, name := range []string{"dry-run", "verbose", "simple", "date", "no-auto-disable", "no-rerun"} {
		require.NotNil(t, runCmd.Flags().Lookup(name), "flag %q should be registered", name)
	}
}
