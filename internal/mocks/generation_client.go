package mocks

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/phrazzld/deckgen-api/internal/generation"
)

// FakeConnector hands out FakeClient sessions. Each Connect call clones
// Template so sessions never share call logs.
type FakeConnector struct {
	// Template configures every client this connector creates.
	Template FakeClient

	// ConnectErr is returned from Connect when set.
	ConnectErr error

	mu      sync.Mutex
	clients []*FakeClient
}

var _ generation.Connector = (*FakeConnector)(nil)

// Connect implements generation.Connector.
func (c *FakeConnector) Connect(ctx context.Context) (generation.Client, error) {
	if c.ConnectErr != nil {
		return nil, c.ConnectErr
	}

	client := &FakeClient{
		WorkspaceID:    c.Template.WorkspaceID,
		Job:            c.Template.Job,
		ArtifactBody:   c.Template.ArtifactBody,
		CreateErr:      c.Template.CreateErr,
		AddSourceErr:   c.Template.AddSourceErr,
		RequestErr:     c.Template.RequestErr,
		AwaitErr:       c.Template.AwaitErr,
		DownloadErr:    c.Template.DownloadErr,
		CloseErr:       c.Template.CloseErr,
		AwaitDelay:     c.Template.AwaitDelay,
		AwaitBlocks:    c.Template.AwaitBlocks,
		AddSourceDelay: c.Template.AddSourceDelay,
		OnAwait:        c.Template.OnAwait,
		AwaitRelease:   c.Template.AwaitRelease,
	}

	c.mu.Lock()
	c.clients = append(c.clients, client)
	c.mu.Unlock()
	return client, nil
}

// Clients returns every session created so far.
func (c *FakeConnector) Clients() []*FakeClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*FakeClient(nil), c.clients...)
}

// FakeClient is a generation.Client with programmable results and delays.
// The zero value succeeds at every step with workspace "ws-1".
type FakeClient struct {
	WorkspaceID  string
	Job          generation.JobHandle
	ArtifactBody []byte

	CreateErr    error
	AddSourceErr error
	RequestErr   error
	AwaitErr     error
	DownloadErr  error
	CloseErr     error

	// AwaitDelay delays AwaitArtifactCompletion. AwaitBlocks makes it wait
	// for the full timeout and then return generation.ErrGenerationTimeout.
	AwaitDelay     time.Duration
	AwaitBlocks    bool
	AddSourceDelay time.Duration

	// OnAwait runs when AwaitArtifactCompletion is entered.
	OnAwait func()

	// AwaitRelease, when set, makes AwaitArtifactCompletion block until the
	// channel is closed, ignoring ctx.
	AwaitRelease <-chan struct{}

	mu           sync.Mutex
	Sources      []string
	Instructions []generation.Instructions
	Calls        []string
	CloseCount   int
}

var _ generation.Client = (*FakeClient)(nil)

func (f *FakeClient) record(call string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, call)
	f.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CreateWorkspace implements generation.Client.
func (f *FakeClient) CreateWorkspace(ctx context.Context, title string, timeout time.Duration) (string, error) {
	f.record("create_workspace")
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	if f.WorkspaceID == "" {
		return "ws-1", nil
	}
	return f.WorkspaceID, nil
}

// AddSource implements generation.Client.
func (f *FakeClient) AddSource(
	ctx context.Context,
	workspaceID string,
	path string,
	waitForProcessing bool,
	waitTimeout time.Duration,
) error {
	f.record("add_source")
	if err := sleepCtx(ctx, f.AddSourceDelay); err != nil {
		return err
	}
	if f.AddSourceErr != nil {
		return f.AddSourceErr
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: source %s: %v", generation.ErrRemoteRejected, path, err)
	}
	f.mu.Lock()
	f.Sources = append(f.Sources, path)
	f.mu.Unlock()
	return nil
}

// RequestArtifactGeneration implements generation.Client.
func (f *FakeClient) RequestArtifactGeneration(
	ctx context.Context,
	workspaceID string,
	instructions generation.Instructions,
	timeout time.Duration,
) (generation.JobHandle, error) {
	f.record("request_generation")
	if f.RequestErr != nil {
		return "", f.RequestErr
	}
	f.mu.Lock()
	f.Instructions = append(f.Instructions, instructions)
	f.mu.Unlock()
	if f.Job == "" {
		return "job-1", nil
	}
	return f.Job, nil
}

// AwaitArtifactCompletion implements generation.Client.
func (f *FakeClient) AwaitArtifactCompletion(
	ctx context.Context,
	workspaceID string,
	job generation.JobHandle,
	timeout time.Duration,
) error {
	f.record("await_generation")
	if f.OnAwait != nil {
		f.OnAwait()
	}
	if f.AwaitRelease != nil {
		<-f.AwaitRelease
		return f.AwaitErr
	}
	if f.AwaitBlocks {
		if err := sleepCtx(ctx, timeout); err != nil {
			return err
		}
		return fmt.Errorf("%w: job %s after %s", generation.ErrGenerationTimeout, job, timeout)
	}
	if err := sleepCtx(ctx, f.AwaitDelay); err != nil {
		return err
	}
	return f.AwaitErr
}

// DownloadArtifact implements generation.Client.
func (f *FakeClient) DownloadArtifact(
	ctx context.Context,
	workspaceID string,
	job generation.JobHandle,
	destPath string,
	timeout time.Duration,
) error {
	f.record("download_artifact")
	if f.DownloadErr != nil {
		return f.DownloadErr
	}
	body := f.ArtifactBody
	if body == nil {
		body = []byte("%PDF-1.4\n%fake deck\n")
	}
	return os.WriteFile(destPath, body, 0o600)
}

// Close implements generation.Client.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	f.CloseCount++
	f.mu.Unlock()
	return f.CloseErr
}

// CallLog returns the operations invoked so far, in order.
func (f *FakeClient) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

// Closed reports whether Close was called at least once.
func (f *FakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CloseCount > 0
}
