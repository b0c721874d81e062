package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirrorGenerateCmd_DryRunEmitsPlaceholderToStdout(t *testing.T) {
	// Given: an empty access store and --dry-run
	cfg = testConfig()
	cmd := newMirrorGenerateCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--dry-run"})

	// When: generating
	err := cmd.Execute()

	// Then: the no-data placeholder is written to stdout, not a file
	require.NoError(t, err)
	assert.Equal(t, "# mirror — no access data yet\n", buf.String())
}
