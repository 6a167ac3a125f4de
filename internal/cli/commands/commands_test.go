package commands_test

import (
	"bytes"
	"testing"

	"github.com/leapstack-labs/dbtcontracts/internal/cli"
	"github.com/leapstack-labs/dbtcontracts/internal/cli/config"
)

// executeCommand runs the root command with the given args and returns
// captured stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	root := cli.NewRootCmd()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), errOut.String(), err
}
