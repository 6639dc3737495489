package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterTagsRunID(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewWithWriter("debug", buf)
	require.NoError(t, err)

	logger.Debug("hello")
	require.NoError(t, logger.Sync())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.NotEmpty(t, entry["run_id"])
}

func TestNewWithWriterFiltersLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewWithWriter("warn", buf)
	require.NoError(t, err)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())
}

func TestNewWithWriterRejectsBadLevel(t *testing.T) {
	_, err := NewWithWriter("chatty", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
