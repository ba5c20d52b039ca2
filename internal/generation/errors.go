package generation

import "errors"

// Common errors returned by generation clients. Adapters wrap these with
// operation context; callers classify with errors.Is.
var (
	// ErrRemoteUnavailable is returned when the remote service cannot be
	// reached or is temporarily unable to serve a request.
	ErrRemoteUnavailable = errors.New("generation service unavailable")

	// ErrRemoteRejected is returned when the remote service refuses a request,
	// for example an unsupported source file or an invalid workspace.
	ErrRemoteRejected = errors.New("generation service rejected the request")

	// ErrProcessingTimeout is returned when a source is not ingested before
	// its wait timeout elapses.
	ErrProcessingTimeout = errors.New("source processing timeout")

	// ErrGenerationTimeout is returned when an artifact is not ready before
	// the await timeout elapses.
	ErrGenerationTimeout = errors.New("artifact generation timeout")

	// ErrRemoteFailure is returned when the remote service reports that
	// artifact generation itself failed.
	ErrRemoteFailure = errors.New("artifact generation failed")

	// ErrInvalidConfig is returned when a client or connector is misconfigured.
	ErrInvalidConfig = errors.New("invalid generation client configuration")
)

// IsTimeout reports whether err is one of the remote wait timeouts.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrProcessingTimeout) || errors.Is(err, ErrGenerationTimeout)
}
