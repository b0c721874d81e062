package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/reconsolidate/internal/config"
)

// testConfig returns a config whose stores all live in-memory, so command
// tests never touch the real ~/.reconsolidate state.
func testConfig() *config.Config {
	c := config.Default()
	c.Paths.AccessStore = ":memory:"
	c.Paths.VectorStore = ":memory:"
	c.Paths.MetricsStore = ":memory:"
	c.Paths.SessionsDir = ""
	return c
}

func TestLogEventCmd_LogsAndReportsCount(t *testing.T) {
	// Given: an in-memory access store
	cfg = testConfig()
	cmd := newLogEventCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"how does auth work", `[{"file":"auth.go","lines":"10","score":0.9}]`})

	// When: logging an event with results
	err := cmd.Execute()

	// Then: the count of logged results is reported
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"results": 1`)
}

func TestLogEventCmd_RejectsMalformedResultsJSON(t *testing.T) {
	// Given: an in-memory access store
	cfg = testConfig()
	cmd := newLogEventCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"q", `not json`})

	// When: logging with unparseable results
	err := cmd.Execute()

	// Then: a JSON error object is printed and the command reports failure
	assert.Error(t, err)
	assert.Contains(t, buf.String(), `"error"`)
}

func TestStatsCmd_ReportsZeroedStatsOnEmptyStore(t *testing.T) {
	// Given: a freshly opened, empty access store
	cfg = testConfig()
	cmd := newStatsCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	// When: requesting stats
	err := cmd.Execute()

	// Then: zeroed counters are reported, not an error
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"total_access_events": 0`)
}

func TestDumpCmd_RejectsNonIntegerLimit(t *testing.T) {
	cfg = testConfig()
	cmd := newDumpCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"not-a-number"})

	err := cmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, buf.String(), `"error"`)
}

func TestLogSessionCmd_ExtractsFromPositionalTranscript(t *testing.T) {
	// Given: a transcript supplied as a positional JSON-array argument
	cfg = testConfig()
	cmd := newLogSessionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	transcript := `[{"id":"m1","message":{"role":"assistant","content":[` +
		`{"type":"toolCall","name":"memory_search","arguments":{"query":"hello"}}]}},` +
		`{"id":"m2","parentId":"m1","message":{"role":"toolResult","content":[` +
		`{"type":"text","text":"{\"results\":[{\"path\":\"a.go\",\"startLine\":1,\"score\":0.5}]}"}]}}]`
	cmd.SetArgs([]string{transcript, "sess-1"})

	// When: extracting
	err := cmd.Execute()

	// Then: one event is extracted
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"extracted": 1`)
}
