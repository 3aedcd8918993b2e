package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand_DeclaresOptionalConfigArgAndWorkspaceFlag(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := NewRootCommand(out)

	assert.Equal(t, "fab [config-file]", cmd.Use)
	flag := cmd.Flags().Lookup("workspace")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestNewRootCommand_RunEReturnsExitErrorOnMissingConfigPath(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := NewRootCommand(out)
	cmd.SetArgs([]string{""})

	err := cmd.Execute()
	require.Error(t, err)
}

func TestNewRootCommand_RegistersAmbientOverrideFlags(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := NewRootCommand(out)

	for _, name := range []string{"project", "source-root", "root", "two-stage", "housekeeping-older-than"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing --%s flag", name)
	}
}
