package gcs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/phrazzld/deckgen-api/internal/config"
	"github.com/phrazzld/deckgen-api/internal/publish"
	"google.golang.org/api/option"
)

const defaultPublicBaseURL = "https://storage.googleapis.com"

// objectWriterFactory opens a writer for bucket/object. It exists so the
// upload path can be tested without a live bucket.
type objectWriterFactory func(ctx context.Context, bucket, object string) io.WriteCloser

// Publisher uploads artifacts to a public bucket.
type Publisher struct {
	client    *storage.Client
	newWriter objectWriterFactory
	bucket    string
	baseURL   string
	logger    *slog.Logger
}

// Ensure Publisher implements publish.Publisher interface
var _ publish.Publisher = (*Publisher)(nil)

// NewPublisher creates a GCS publisher. When cfg.CredentialsFile is empty,
// application default credentials are used.
func NewPublisher(ctx context.Context, cfg config.PublisherConfig, logger *slog.Logger) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket is required", publish.ErrPublicationFailed)
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	p := newPublisher(cfg, logger, func(ctx context.Context, bucket, object string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = "application/pdf"
		w.CacheControl = "public, max-age=3600"
		return w
	})
	p.client = client
	return p, nil
}

func newPublisher(cfg config.PublisherConfig, logger *slog.Logger, factory objectWriterFactory) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = defaultPublicBaseURL + "/" + cfg.Bucket
	}

	return &Publisher{
		newWriter: factory,
		bucket:    cfg.Bucket,
		baseURL:   base,
		logger:    logger.With(slog.String("component", "gcs_publisher")),
	}
}

// Publish implements publish.Publisher.
func (p *Publisher) Publish(ctx context.Context, localPath string, taskID uuid.UUID) (string, error) {
	object := publish.ObjectName(taskID)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", publish.ErrPublicationFailed, err)
	}
	defer func() { _ = f.Close() }()

	// Cancelling ctx aborts the upload; Close then reports the failure.
	w := p.newWriter(ctx, p.bucket, object)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		p.logger.Error("artifact upload failed",
			"task_id", taskID.String(),
			"bucket", p.bucket,
			"error", err)
		return "", fmt.Errorf("%w: upload %s: %v", publish.ErrPublicationFailed, object, err)
	}
	if err := w.Close(); err != nil {
		p.logger.Error("artifact upload failed",
			"task_id", taskID.String(),
			"bucket", p.bucket,
			"error", err)
		return "", fmt.Errorf("%w: finalize %s: %v", publish.ErrPublicationFailed, object, err)
	}

	url := p.baseURL + "/" + object
	p.logger.Info("artifact published", "task_id", taskID.String(), "url", url)
	return url, nil
}

// Close releases the storage client.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
