package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrPublicationFailed is returned when an artifact could not be made externally resolvable.
var ErrPublicationFailed = errors.New("artifact publication failed")

// Publisher publishes a finished artifact for a task.
// Version: 1.0
type Publisher interface {
	// Publish copies the artifact at localPath to its public location and
	// returns the locator clients use to fetch it.
	Publish(ctx context.Context, localPath string, taskID uuid.UUID) (string, error)
}

// ObjectName is the file name a task's artifact is published under.
func ObjectName(taskID uuid.UUID) string {
	return taskID.String() + ".pdf"
}

// LocalPublisher copies artifacts into a directory that the API serves
// under /generated/.
type LocalPublisher struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

// Ensure LocalPublisher implements Publisher interface
var _ Publisher = (*LocalPublisher)(nil)

// URLPrefix is the path the API serves published artifacts from.
const URLPrefix = "/generated/"

// NewLocalPublisher creates dir if needed. baseURL may be empty, in which
// case locators are host-relative ("/generated/{id}.pdf").
func NewLocalPublisher(dir, baseURL string, logger *slog.Logger) (*LocalPublisher, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: publish directory is required", ErrPublicationFailed)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create publish directory: %w", err)
	}
	if baseURL != "" {
		if _, err := url.Parse(baseURL); err != nil {
			return nil, fmt.Errorf("invalid publish base URL: %w", err)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LocalPublisher{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With(slog.String("component", "local_publisher")),
	}, nil
}

// Dir returns the directory artifacts are published into.
func (p *LocalPublisher) Dir() string {
	return p.dir
}

// Publish implements Publisher. The copy is written to a temporary name and
// renamed so readers never observe a partial file.
func (p *LocalPublisher) Publish(ctx context.Context, localPath string, taskID uuid.UUID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublicationFailed, err)
	}

	name := ObjectName(taskID)
	dest := filepath.Join(p.dir, name)

	if err := copyFile(localPath, dest); err != nil {
		p.logger.Error("failed to publish artifact",
			"task_id", taskID.String(),
			"error", err)
		return "", fmt.Errorf("%w: %v", ErrPublicationFailed, err)
	}

	p.logger.Info("artifact published", "task_id", taskID.String(), "path", dest)
	return p.baseURL + URLPrefix + name, nil
}

func copyFile(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".publish-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
