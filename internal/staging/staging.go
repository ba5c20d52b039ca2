// Package staging manages the per-task scratch directory that holds uploaded
// sources and the downloaded artifact for the duration of one run.
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrLocalIO is returned for any failure to create, write, or remove staged files.
var ErrLocalIO = errors.New("local staging I/O error")

const artifactName = "artifact.pdf"

// Workspace is a scoped temporary directory owned by exactly one task run.
// It is not safe for concurrent use.
type Workspace struct {
	dir    string
	inputs []string
}

// New creates a fresh directory under baseDir (os.TempDir when empty).
func New(baseDir string, taskID uuid.UUID) (*Workspace, error) {
	if baseDir != "" {
		if err := os.MkdirAll(baseDir, 0o750); err != nil {
			return nil, fmt.Errorf("%w: create staging base: %v", ErrLocalIO, err)
		}
	}

	dir, err := os.MkdirTemp(baseDir, "deck-"+taskID.String()+"-")
	if err != nil {
		return nil, fmt.Errorf("%w: create staging dir: %v", ErrLocalIO, err)
	}

	return &Workspace{dir: dir}, nil
}

// Attach reopens an existing staging directory whose inputs were written by
// an earlier Workspace, for example across the submission/execution boundary.
func Attach(dir string, inputs []string) (*Workspace, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: staging dir: %v", ErrLocalIO, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrLocalIO, dir)
	}

	ws := &Workspace{dir: dir}
	for _, in := range inputs {
		if filepath.Dir(in) != filepath.Clean(dir) {
			return nil, fmt.Errorf("%w: input %s is outside the staging dir", ErrLocalIO, in)
		}
		ws.inputs = append(ws.inputs, in)
	}
	return ws, nil
}

// Dir returns the staging directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// AddInput materializes one uploaded file. Names are reduced to their base
// and prefixed with their submission index so order and uniqueness survive.
func (w *Workspace) AddInput(name string, r io.Reader) (string, error) {
	base := sanitizeName(name)
	path := filepath.Join(w.dir, fmt.Sprintf("%02d-%s", len(w.inputs)+1, base))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("%w: create input: %v", ErrLocalIO, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: write input %s: %v", ErrLocalIO, base, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: close input %s: %v", ErrLocalIO, base, err)
	}

	w.inputs = append(w.inputs, path)
	return path, nil
}

// Inputs returns the staged input paths in submission order.
func (w *Workspace) Inputs() []string {
	return append([]string(nil), w.inputs...)
}

// ArtifactPath is where the downloaded artifact is written.
func (w *Workspace) ArtifactPath() string {
	return filepath.Join(w.dir, artifactName)
}

// Retain moves the artifact to destDir as name before the workspace is removed.
func (w *Workspace) Retain(destDir, name string) (string, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", fmt.Errorf("%w: create retain dir: %v", ErrLocalIO, err)
	}

	dest := filepath.Join(destDir, sanitizeName(name))
	if err := os.Rename(w.ArtifactPath(), dest); err != nil {
		return "", fmt.Errorf("%w: retain artifact: %v", ErrLocalIO, err)
	}
	return dest, nil
}

// Remove deletes the directory and everything in it. It is safe to call
// more than once.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("%w: remove staging dir: %v", ErrLocalIO, err)
	}
	return nil
}

func sanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || strings.TrimSpace(base) == "" {
		return "source"
	}
	return base
}

// Discard removes a staging directory that could not be attached.
func Discard(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: discard staging dir: %v", ErrLocalIO, err)
	}
	return nil
}

// Sweep removes any staging directories left behind for taskID under
// baseDir (os.TempDir when empty) and returns how many were removed.
func Sweep(baseDir string, taskID uuid.UUID) (int, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}

	matches, err := filepath.Glob(filepath.Join(baseDir, "deck-"+taskID.String()+"-*"))
	if err != nil {
		return 0, fmt.Errorf("%w: sweep staging dirs: %v", ErrLocalIO, err)
	}

	removed := 0
	var errs []error
	for _, dir := range matches {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("%w: sweep staging dirs: %v", ErrLocalIO, errors.Join(errs...))
	}
	return removed, nil
}
