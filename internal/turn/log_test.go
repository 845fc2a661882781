package turn

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLog_NameEncodesNumberAndLabel(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLog(dir, 3, Label("coding"))
	require.NoError(t, err)
	defer log.Close()

	assert.Equal(t, "turn-003-coding.log", log.Filename())
	assert.FileExists(t, log.Path())
}

func TestNewLog_NamesSortChronologically(t *testing.T) {
	dir := t.TempDir()
	a, err := NewLog(dir, 9, Label("fix"))
	require.NoError(t, err)
	defer a.Close()
	b, err := NewLog(dir, 10, Label("fix"))
	require.NoError(t, err)
	defer b.Close()

	assert.Less(t, a.Filename(), b.Filename())
}

func TestNewLog_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLog(dir, 1, Label("coding"))
	require.NoError(t, err)
	require.NoError(t, log.Append("precious"))
	require.NoError(t, log.Close())

	_, err = NewLog(dir, 1, Label("coding"))
	require.Error(t, err)

	content, err := os.ReadFile(log.Path())
	require.NoError(t, err)
	assert.Contains(t, string(content), "precious")
}

func TestLog_Append(t *testing.T) {
	log, err := NewLog(t.TempDir(), 2, Label("review"))
	require.NoError(t, err)
	require.NoError(t, log.Append("line one"))
	require.NoError(t, log.Append("line two"))
	require.NoError(t, log.Close())

	content, err := os.ReadFile(log.Path())
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(content))
}
