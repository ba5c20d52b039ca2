package gemini

import (
	"context"

	"google.golang.org/genai"
)

// remoteAPI is the subset of the genai client the adapter uses.
type remoteAPI interface {
	GetModel(ctx context.Context, model string) error
	UploadFile(ctx context.Context, path, mimeType, displayName string) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

type genaiRemote struct {
	client *genai.Client
}

func (r *genaiRemote) GetModel(ctx context.Context, model string) error {
	_, err := r.client.Models.Get(ctx, model, nil)
	return err
}

func (r *genaiRemote) UploadFile(ctx context.Context, path, mimeType, displayName string) (*genai.File, error) {
	return r.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
}

func (r *genaiRemote) GetFile(ctx context.Context, name string) (*genai.File, error) {
	return r.client.Files.Get(ctx, name, nil)
}

func (r *genaiRemote) DeleteFile(ctx context.Context, name string) error {
	_, err := r.client.Files.Delete(ctx, name, nil)
	return err
}

func (r *genaiRemote) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	return r.client.Models.GenerateContent(ctx, model, contents, config)
}
