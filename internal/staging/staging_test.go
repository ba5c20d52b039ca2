package staging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspace_Lifecycle(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	ws, err := New(base, uuid.New())
	require.NoError(t, err)
	assert.DirExists(t, ws.Dir())
	assert.Equal(t, base, filepath.Dir(ws.Dir()))

	first, err := ws.AddInput("q3.pdf", strings.NewReader("one"))
	require.NoError(t, err)
	second, err := ws.AddInput("q3.pdf", strings.NewReader("two"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, []string{first, second}, ws.Inputs())
	assert.Equal(t, "01-q3.pdf", filepath.Base(first))

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	require.NoError(t, ws.Remove())
	assert.NoDirExists(t, ws.Dir())
	assert.NoError(t, ws.Remove(), "remove is idempotent")
}

func TestWorkspace_SanitizesNames(t *testing.T) {
	t.Parallel()

	ws, err := New(t.TempDir(), uuid.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Remove() })

	tests := []string{"../../etc/passwd", `..\..\boot.ini`, "", ".."}
	for _, name := range tests {
		path, err := ws.AddInput(name, strings.NewReader("x"))
		require.NoError(t, err)
		assert.Equal(t, ws.Dir(), filepath.Dir(path), "input %q escaped the staging dir", name)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestWorkspace_AddInputFailureLeavesNoFile(t *testing.T) {
	t.Parallel()

	ws, err := New(t.TempDir(), uuid.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Remove() })

	_, err = ws.AddInput("a.pdf", failingReader{})
	assert.ErrorIs(t, err, ErrLocalIO)
	assert.Empty(t, ws.Inputs())

	entries, err := os.ReadDir(ws.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWorkspace_RetainAndAttach(t *testing.T) {
	t.Parallel()

	ws, err := New(t.TempDir(), uuid.New())
	require.NoError(t, err)
	input, err := ws.AddInput("a.pdf", strings.NewReader("x"))
	require.NoError(t, err)

	attached, err := Attach(ws.Dir(), ws.Inputs())
	require.NoError(t, err)
	assert.Equal(t, []string{input}, attached.Inputs())

	_, err = Attach(ws.Dir(), []string{"/etc/passwd"})
	assert.ErrorIs(t, err, ErrLocalIO)

	require.NoError(t, os.WriteFile(ws.ArtifactPath(), []byte("%PDF"), 0o600))
	keep := t.TempDir()
	dest, err := attached.Retain(keep, "task.pdf")
	require.NoError(t, err)
	assert.FileExists(t, dest)

	require.NoError(t, attached.Remove())
	assert.FileExists(t, dest, "retained artifact survives workspace removal")

	_, err = Attach(ws.Dir(), nil)
	assert.ErrorIs(t, err, ErrLocalIO)
}

func TestSweep(t *testing.T) {
	base := t.TempDir()
	taskID := uuid.New()
	other := uuid.New()

	leftover, err := New(base, taskID)
	require.NoError(t, err)
	_, err = leftover.AddInput("a.pdf", strings.NewReader("x"))
	require.NoError(t, err)
	unrelated, err := New(base, other)
	require.NoError(t, err)

	removed, err := Sweep(base, taskID)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, leftover.Dir())
	assert.DirExists(t, unrelated.Dir())

	removed, err = Sweep(base, taskID)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestDiscard(t *testing.T) {
	ws, err := New(t.TempDir(), uuid.New())
	require.NoError(t, err)

	require.NoError(t, Discard(ws.Dir()))
	assert.NoDirExists(t, ws.Dir())
	assert.NoError(t, Discard(""))
}
