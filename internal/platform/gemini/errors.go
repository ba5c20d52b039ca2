package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/phrazzld/deckgen-api/internal/generation"
	"google.golang.org/genai"
)

// classifyError maps a genai or transport error onto the generation taxonomy.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", generation.ErrRemoteUnavailable, op, err)
	}

	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %s: %s", generation.ErrRemoteUnavailable, op, apiErr.Message)
		case apiErr.Code >= http.StatusBadRequest:
			return fmt.Errorf("%w: %s: %s", generation.ErrRemoteRejected, op, apiErr.Message)
		}
	}

	return fmt.Errorf("%w: %s: %v", generation.ErrRemoteUnavailable, op, err)
}
