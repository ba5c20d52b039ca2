package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/deckgen-api/internal/generation"
	"google.golang.org/genai"
)

const cleanupTimeout = 30 * time.Second

type workspace struct {
	title string
	files []*genai.File
	jobs  map[generation.JobHandle]*job
}

type job struct {
	done    chan struct{}
	cancel  context.CancelFunc
	outline *DeckOutline
	err     error
}

// Client is one generation session. It is not shared between task runs.
type Client struct {
	api             remoteAPI
	model           string
	maxOutputTokens int32
	pollInterval    time.Duration
	renderer        *DeckRenderer
	logger          *slog.Logger

	mu         sync.Mutex
	workspaces map[string]*workspace
	closed     bool
}

// Ensure Client implements generation.Client interface
var _ generation.Client = (*Client)(nil)

func newClient(c *Connector) *Client {
	return &Client{
		api:             c.api,
		model:           c.config.Model,
		maxOutputTokens: c.config.MaxOutputTokens,
		pollInterval:    c.pollInterval,
		renderer:        c.renderer,
		logger:          c.logger,
		workspaces:      make(map[string]*workspace),
	}
}

// CreateWorkspace verifies the model is reachable and opens a local workspace.
func (c *Client) CreateWorkspace(ctx context.Context, title string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.api.GetModel(ctx, c.model); err != nil {
		return "", classifyError("create workspace", err)
	}

	id := "ws-" + uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", fmt.Errorf("%w: session closed", generation.ErrRemoteUnavailable)
	}
	c.workspaces[id] = &workspace{title: title, jobs: make(map[generation.JobHandle]*job)}

	c.logger.DebugContext(ctx, "workspace created", "workspace_id", id, "model", c.model)
	return id, nil
}

// AddSource uploads path through the Files API and, when asked, polls until
// the file becomes ACTIVE.
func (c *Client) AddSource(
	ctx context.Context,
	workspaceID string,
	path string,
	waitForProcessing bool,
	waitTimeout time.Duration,
) error {
	ws, err := c.workspace(workspaceID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	file, err := c.api.UploadFile(ctx, path, mimeTypeFor(path), filepath.Base(path))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: upload of %s did not finish within %s",
				generation.ErrProcessingTimeout, filepath.Base(path), waitTimeout)
		}
		return classifyError("upload source", err)
	}

	c.mu.Lock()
	ws.files = append(ws.files, file)
	c.mu.Unlock()

	if !waitForProcessing {
		return nil
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		switch file.State {
		case genai.FileStateActive:
			return nil
		case genai.FileStateFailed:
			return fmt.Errorf("%w: source %s could not be processed", generation.ErrRemoteRejected, filepath.Base(path))
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: source %s not processed within %s",
					generation.ErrProcessingTimeout, filepath.Base(path), waitTimeout)
			}
			return classifyError("await source", ctx.Err())
		case <-ticker.C:
		}

		refreshed, err := c.api.GetFile(ctx, file.Name)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			return classifyError("poll source", err)
		}
		file.State = refreshed.State
		file.URI = refreshed.URI
	}
}

// RequestArtifactGeneration starts a GenerateContent call in the background.
// The call outlives ctx; it is bounded by AwaitArtifactCompletion or Close.
func (c *Client) RequestArtifactGeneration(
	ctx context.Context,
	workspaceID string,
	instructions generation.Instructions,
	timeout time.Duration,
) (generation.JobHandle, error) {
	ws, err := c.workspace(workspaceID)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	files := append([]*genai.File(nil), ws.files...)
	c.mu.Unlock()
	if len(files) == 0 {
		return "", fmt.Errorf("%w: workspace %s has no sources", generation.ErrRemoteRejected, workspaceID)
	}

	if err := ctx.Err(); err != nil {
		return "", classifyError("request generation", err)
	}

	parts := make([]*genai.Part, 0, len(files)+1)
	for _, f := range files {
		parts = append(parts, genai.NewPartFromURI(f.URI, f.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(instructions.Prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   outlineSchema(),
		MaxOutputTokens:  c.maxOutputTokens,
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	handle := generation.JobHandle("job-" + uuid.NewString())
	j := &job{done: make(chan struct{}), cancel: cancel}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return "", fmt.Errorf("%w: session closed", generation.ErrRemoteUnavailable)
	}
	ws.jobs[handle] = j
	c.mu.Unlock()

	go func() {
		defer close(j.done)
		resp, err := c.api.GenerateContent(jobCtx, c.model, contents, cfg)
		if err != nil {
			j.err = classifyError("generate deck", err)
			return
		}
		j.outline, j.err = parseOutline(resp)
	}()

	c.logger.DebugContext(ctx, "generation requested",
		"workspace_id", workspaceID,
		"job", string(handle),
		"sources", len(files),
		"language", instructions.Language)

	return handle, nil
}

// AwaitArtifactCompletion waits for the background call started by
// RequestArtifactGeneration. On timeout the call is cancelled.
func (c *Client) AwaitArtifactCompletion(
	ctx context.Context,
	workspaceID string,
	handle generation.JobHandle,
	timeout time.Duration,
) error {
	j, err := c.job(workspaceID, handle)
	if err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-j.done:
	case <-timer.C:
		j.cancel()
		return fmt.Errorf("%w: deck not ready after %s", generation.ErrGenerationTimeout, timeout)
	case <-ctx.Done():
		j.cancel()
		return classifyError("await generation", ctx.Err())
	}

	if j.err != nil {
		if errors.Is(j.err, generation.ErrRemoteUnavailable) {
			return j.err
		}
		return fmt.Errorf("%w: %v", generation.ErrRemoteFailure, j.err)
	}
	return nil
}

// DownloadArtifact renders the finished outline to destPath.
func (c *Client) DownloadArtifact(
	ctx context.Context,
	workspaceID string,
	handle generation.JobHandle,
	destPath string,
	timeout time.Duration,
) error {
	j, err := c.job(workspaceID, handle)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-j.done:
	case <-ctx.Done():
		return fmt.Errorf("%w: artifact %s is not ready", generation.ErrRemoteRejected, handle)
	}
	if j.err != nil || j.outline == nil {
		return fmt.Errorf("%w: artifact %s has no content", generation.ErrRemoteFailure, handle)
	}

	if err := c.renderer.Render(j.outline, destPath); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// Close cancels outstanding jobs and deletes every uploaded file.
// Calling Close more than once is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	workspaces := c.workspaces
	c.workspaces = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	var errs []error
	for _, ws := range workspaces {
		for _, j := range ws.jobs {
			j.cancel()
		}
		for _, f := range ws.files {
			if err := c.api.DeleteFile(ctx, f.Name); err != nil {
				c.logger.Warn("failed to delete uploaded source",
					"file", f.Name,
					"error", err)
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

func (c *Client) workspace(id string) (*workspace, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("%w: session closed", generation.ErrRemoteUnavailable)
	}
	ws, ok := c.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown workspace %s", generation.ErrRemoteRejected, id)
	}
	return ws, nil
}

func (c *Client) job(workspaceID string, handle generation.JobHandle) (*job, error) {
	ws, err := c.workspace(workspaceID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := ws.jobs[handle]
	if !ok {
		return nil, fmt.Errorf("%w: unknown job %s", generation.ErrRemoteRejected, handle)
	}
	return j, nil
}

func parseOutline(resp *genai.GenerateContentResponse) (*DeckOutline, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("empty response")
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", generation.ErrRemoteRejected)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}

	var outline DeckOutline
	if err := json.Unmarshal([]byte(sb.String()), &outline); err != nil {
		return nil, fmt.Errorf("malformed deck outline: %w", err)
	}
	if len(outline.Slides) == 0 {
		return nil, errors.New("deck outline has no slides")
	}

	return &outline, nil
}

func mimeTypeFor(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return "application/octet-stream"
}
