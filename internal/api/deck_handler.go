package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/phrazzld/deckgen-api/internal/api/shared"
	"github.com/phrazzld/deckgen-api/internal/platform/logger"
	"github.com/phrazzld/deckgen-api/internal/service"
)

// Multipart form field names
const (
	formFieldTitle = "title"
	formFieldFiles = "files"
)

// multipartMemory is how much of a form is held in memory before parts
// spill to temporary files.
const multipartMemory = 32 << 20

// DeckHandlerConfig bounds what a single submission may carry.
type DeckHandlerConfig struct {
	// MaxUploadBytes caps the request body; 0 means no limit.
	MaxUploadBytes int64
	// MaxFiles caps the number of files; 0 leaves the check to the service.
	MaxFiles int
}

// DeckHandler handles deck submission and task status requests.
type DeckHandler struct {
	deckService service.DeckService
	config      DeckHandlerConfig
	logger      *slog.Logger
}

// NewDeckHandler creates a new DeckHandler.
func NewDeckHandler(deckService service.DeckService, config DeckHandlerConfig, logger *slog.Logger) *DeckHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeckHandler{
		deckService: deckService,
		config:      config,
		logger:      logger.With("component", "deck_handler"),
	}
}

// SubmitDeck handles POST /api/decks. The body is a multipart form with an
// optional title and one or more files. The response is sent as soon as the
// task is recorded; generation runs in the background.
func (h *DeckHandler) SubmitDeck(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	if h.config.MaxUploadBytes > 0 {
		if r.ContentLength > h.config.MaxUploadBytes {
			HandleAPIError(w, r, fmt.Errorf("%w: content length %d", ErrUploadTooLarge, r.ContentLength), "")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			HandleAPIError(w, r, fmt.Errorf("%w: %w", ErrUploadTooLarge, err), "")
			return
		}
		HandleAPIError(w, r, fmt.Errorf("%w: %w", ErrInvalidForm, err), "")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("failed to remove multipart temp files", "error", err)
		}
	}()

	req := SubmitDeckRequest{Title: r.FormValue(formFieldTitle)}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	headers := r.MultipartForm.File[formFieldFiles]
	if len(headers) == 0 {
		HandleAPIError(w, r, service.ErrNoSources, "")
		return
	}
	if h.config.MaxFiles > 0 && len(headers) > h.config.MaxFiles {
		HandleAPIError(w, r, fmt.Errorf("%w: %d files", service.ErrTooManySources, len(headers)), "")
		return
	}

	uploads, closeAll, err := openUploads(headers)
	defer closeAll()
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read uploaded files")
		return
	}

	task, err := h.deckService.SubmitDeck(r.Context(), userID, req.Title, uploads)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit deck")
		return
	}

	log.Info("deck submission accepted", "task_id", task.ID, "files", len(uploads))
	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitDeckResponse{
		TaskID: task.ID,
		Status: task.Status,
	})
}

// ListTasks handles GET /api/decks.
func (h *DeckHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	tasks, err := h.deckService.ListTasks(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponse(tasks))
}

// GetTask handles GET /api/decks/{id}.
func (h *DeckHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	task, err := h.deckService.GetTask(r.Context(), taskID, userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// openUploads opens every file part in order. The returned func closes
// whatever was opened, including on error.
func openUploads(headers []*multipart.FileHeader) ([]service.Upload, func(), error) {
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("open upload %q: %w", fh.Filename, err)
		}
		files = append(files, f)
		uploads = append(uploads, service.Upload{Filename: fh.Filename, Content: f})
	}

	return uploads, closeAll, nil
}
