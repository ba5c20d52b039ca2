package generation

import (
	"context"
	"time"
)

// JobHandle identifies one artifact generation job inside a workspace.
type JobHandle string

// Client is one session with the remote generation service.
// Every operation takes an explicit timeout; implementations must return
// ErrProcessingTimeout or ErrGenerationTimeout (wrapped) when a remote wait
// expires, and must honour ctx cancellation.
// Version: 1.0
type Client interface {
	// CreateWorkspace creates a remote container for one task's sources and
	// artifacts. Fails with ErrRemoteUnavailable or ErrRemoteRejected.
	CreateWorkspace(ctx context.Context, title string, timeout time.Duration) (string, error)

	// AddSource uploads the file at path into the workspace. When
	// waitForProcessing is set it blocks until the remote side has ingested
	// the file or waitTimeout elapses.
	AddSource(
		ctx context.Context,
		workspaceID string,
		path string,
		waitForProcessing bool,
		waitTimeout time.Duration,
	) error

	// RequestArtifactGeneration starts generation of a slide deck and returns
	// a handle to await.
	RequestArtifactGeneration(
		ctx context.Context,
		workspaceID string,
		instructions Instructions,
		timeout time.Duration,
	) (JobHandle, error)

	// AwaitArtifactCompletion blocks until the job finishes. Returns
	// ErrGenerationTimeout when timeout elapses and ErrRemoteFailure when the
	// remote side reports a failed job.
	AwaitArtifactCompletion(ctx context.Context, workspaceID string, job JobHandle, timeout time.Duration) error

	// DownloadArtifact writes the finished artifact to destPath.
	DownloadArtifact(
		ctx context.Context,
		workspaceID string,
		job JobHandle,
		destPath string,
		timeout time.Duration,
	) error

	// Close releases the session and any remote resources it still holds.
	// It must be safe to call after a partial failure and more than once.
	Close() error
}

// Connector opens a new Client session. One session is used per task run.
type Connector interface {
	Connect(ctx context.Context) (Client, error)
}

// ConnectorFunc adapts a plain function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (Client, error)

// Connect calls f(ctx).
func (f ConnectorFunc) Connect(ctx context.Context) (Client, error) {
	return f(ctx)
}
