package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_MissingConfigFileReturnsError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"/no/such/fab.hcl"})
	require.Error(t, err)
}

func TestRun_UnknownFlagReturnsError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"--this-is-not-a-valid-flag"})
	require.Error(t, err)
}

func TestRun_HelpExitsCleanly(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"--help"})
	require.NoError(t, err)
	require.Contains(t, out.String(), "fab")
}
