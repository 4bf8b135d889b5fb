package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kozaktomas/add-me-in/internal/imagefile"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openAIImageModel = openai.ImageModelGPTImage1

// OpenAIProvider edits images through the OpenAI images/edits endpoint.
// The endpoint never returns text, so results carry no note.
type OpenAIProvider struct {
	client *openai.Client
}

func NewOpenAIProvider(apiKey string, opts ...option.RequestOption) *OpenAIProvider {
	// The service is called exactly once per user action.
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client}
}

func (p *OpenAIProvider) Name() string {
	return string(openAIImageModel)
}

// GetUsage returns an empty usage; the image endpoint is billed per image.
func (p *OpenAIProvider) GetUsage() *Usage {
	return &Usage{}
}

func (p *OpenAIProvider) ResetUsage() {}

func (p *OpenAIProvider) Compose(ctx context.Context, group, person *imagefile.EncodedImage) (*GenerationResult, error) {
	if err := validateImages(group, person); err != nil {
		return nil, newGenerationError(OperationCompose, err)
	}
	return p.edit(ctx, OperationCompose, buildComposePrompt(), group, person)
}

func (p *OpenAIProvider) Refine(ctx context.Context, current *imagefile.EncodedImage, instruction string) (*GenerationResult, error) {
	if err := validateImages(current); err != nil {
		return nil, newGenerationError(OperationRefine, err)
	}
	return p.edit(ctx, OperationRefine, instruction, current)
}

func (p *OpenAIProvider) edit(ctx context.Context, op Operation, prompt string, images ...*imagefile.EncodedImage) (*GenerationResult, error) {
	files := make([]io.Reader, 0, len(images))
	for i, img := range images {
		data, err := img.Bytes()
		if err != nil {
			return nil, newGenerationError(op, err)
		}
		files = append(files, openai.File(bytes.NewReader(data), imageFilename(i, img.MediaType), img.MediaType))
	}

	slog.InfoContext(ctx, "Calling OpenAI image edit", "operation", op, "model", openAIImageModel, "images", len(images))

	resp, err := p.client.Images.Edit(ctx, openai.ImageEditParams{
		Image:  openai.ImageEditParamsImageUnion{OfFileArray: files},
		Prompt: prompt,
		Model:  openAIImageModel,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Error calling OpenAI API", "operation", op, "error", err)
		return nil, newGenerationError(op, err)
	}

	result := &GenerationResult{}
	for _, img := range resp.Data {
		if img.B64JSON != "" {
			result.Image = img.B64JSON
			break
		}
	}
	return result, nil
}

// imageFilename names an upload part so the API can infer its format.
func imageFilename(index int, mediaType string) string {
	ext := ".png"
	switch mediaType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	}
	return fmt.Sprintf("image-%d%s", index+1, ext)
}
