package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatJSON_ReconError_HasErrorKey(t *testing.T) {
	re := New(ErrCodeEmptyState, "no access events yet", nil)

	data := FormatJSON(re)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "no access events yet", parsed["error"])
	assert.Equal(t, ErrCodeEmptyState, parsed["code"])
}

func TestFormatJSON_PlainError_WrapsAsInternal(t *testing.T) {
	data := FormatJSON(errors.New("unexpected"))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "unexpected", parsed["error"])
	assert.Equal(t, ErrCodeInternal, parsed["code"])
}

func TestFormatJSON_Nil_ReturnsNil(t *testing.T) {
	assert.Nil(t, FormatJSON(nil))
}
