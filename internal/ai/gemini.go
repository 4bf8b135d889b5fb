package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kozaktomas/add-me-in/internal/imagefile"
	"google.golang.org/genai"
)

// DefaultGeminiModel is the image-capable Gemini model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash-image-preview"

// contentGenerator is the subset of *genai.Models used by the provider.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiProvider struct {
	models  contentGenerator
	model   string
	pricing RequestPricing

	mu    sync.Mutex
	usage Usage
}

func NewGeminiProvider(ctx context.Context, apiKey, model string, pricing RequestPricing) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiProvider(client.Models, model, pricing), nil
}

func newGeminiProvider(models contentGenerator, model string, pricing RequestPricing) *GeminiProvider {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{
		models:  models,
		model:   model,
		pricing: pricing,
	}
}

func (p *GeminiProvider) Name() string {
	return p.model
}

func (p *GeminiProvider) GetUsage() *Usage {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := p.usage
	return &u
}

func (p *GeminiProvider) ResetUsage() {
	p.mu.Lock()
	p.usage = Usage{}
	p.mu.Unlock()
}

func (p *GeminiProvider) trackUsage(meta *genai.GenerateContentResponseUsageMetadata) {
	if meta == nil {
		return
	}
	p.mu.Lock()
	p.usage.add(int64(meta.PromptTokenCount), int64(meta.CandidatesTokenCount), p.pricing)
	p.mu.Unlock()
}

func (p *GeminiProvider) Compose(ctx context.Context, group, person *imagefile.EncodedImage) (*GenerationResult, error) {
	if err := validateImages(group, person); err != nil {
		return nil, newGenerationError(OperationCompose, err)
	}
	return p.generate(ctx, OperationCompose, buildComposePrompt(), group, person)
}

func (p *GeminiProvider) Refine(ctx context.Context, current *imagefile.EncodedImage, instruction string) (*GenerationResult, error) {
	if err := validateImages(current); err != nil {
		return nil, newGenerationError(OperationRefine, err)
	}
	return p.generate(ctx, OperationRefine, instruction, current)
}

// generate sends one request: the images in order followed by the instruction.
func (p *GeminiProvider) generate(ctx context.Context, op Operation, instruction string, images ...*imagefile.EncodedImage) (*GenerationResult, error) {
	parts, err := buildParts(instruction, images...)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to build Gemini request", "operation", op, "error", err)
		return nil, newGenerationError(op, err)
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage), string(genai.ModalityText)},
	}

	slog.InfoContext(ctx, "Calling Gemini", "operation", op, "model", p.model, "images", len(images))

	resp, err := p.models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		slog.ErrorContext(ctx, "Error calling Gemini API", "operation", op, "model", p.model, "error", err)
		return nil, newGenerationError(op, err)
	}

	p.trackUsage(resp.UsageMetadata)

	result := ParseResponse(resp)
	slog.InfoContext(ctx, "Gemini API response",
		"operation", op,
		"candidatesCount", len(resp.Candidates),
		"hasImage", result.HasImage(),
		"hasNote", result.Note != "")

	return result, nil
}

// buildParts lays out the request: image parts first, then the instruction text.
func buildParts(instruction string, images ...*imagefile.EncodedImage) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(images)+1)
	for i, img := range images {
		data, err := base64.StdEncoding.DecodeString(img.Payload)
		if err != nil {
			return nil, fmt.Errorf("decoding image %d: %w", i+1, err)
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: img.MediaType,
				Data:     data,
			},
		})
	}
	parts = append(parts, genai.NewPartFromText(instruction))
	return parts, nil
}

// ParseResponse scans the first candidate's parts in order. The first inline-data
// part becomes the image and the first text part becomes the note.
func ParseResponse(resp *genai.GenerateContentResponse) *GenerationResult {
	result := &GenerationResult{}
	if resp == nil || len(resp.Candidates) == 0 {
		return result
	}

	// Only the first candidate is used; image models return a single one.
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return result
	}

	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		switch {
		case part.InlineData != nil && len(part.InlineData.Data) > 0:
			if result.Image == "" {
				result.Image = base64.StdEncoding.EncodeToString(part.InlineData.Data)
			}
		case part.Text != "":
			if result.Note == "" {
				result.Note = part.Text
			}
		}
	}

	return result
}
