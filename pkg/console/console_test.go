package console

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "history")
	require.NoError(t, os.WriteFile(file, []byte("/list_sessions\nhello\n"), 0600))

	c := Open(file, nil)
	c.line.AppendHistory("/exit")
	require.NoError(t, c.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "/list_sessions\nhello\n/exit\n", string(data))
}

func TestMissingHistoryFileIsCreated(t *testing.T) {
	file := filepath.Join(t.TempDir(), "history")

	c := Open(file, nil)
	require.NoError(t, c.Close())

	_, err := os.Stat(file)
	assert.NoError(t, err)
}
