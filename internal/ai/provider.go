package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/add-me-in/internal/imagefile"
)

// ErrGenerationFailure marks every failure of a call to the image-editing service.
var ErrGenerationFailure = errors.New("generation failed")

// Operation identifies which edit was requested.
type Operation string

const (
	OperationCompose Operation = "compose"
	OperationRefine  Operation = "refine"
)

// GenerationError carries a message that is safe to show to the user.
// The underlying service error is kept for logging only.
type GenerationError struct {
	Op      Operation
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	return e.Message
}

// Unwrap exposes both ErrGenerationFailure and the service error.
func (e *GenerationError) Unwrap() []error {
	return []error{ErrGenerationFailure, e.Cause}
}

func newGenerationError(op Operation, cause error) *GenerationError {
	msg := "Failed to generate image with AI. Please check your API key and try again."
	if op == OperationRefine {
		msg = "Failed to refine image with AI. Please check your API key and try again."
	}
	return &GenerationError{Op: op, Message: msg, Cause: cause}
}

// GenerationResult is the parsed reply of the image-editing service.
// Image is a base64 payload without header; either field may be empty.
type GenerationResult struct {
	Image string
	Note  string
}

// HasImage reports whether the reply carried image data.
func (r *GenerationResult) HasImage() bool {
	return r != nil && r.Image != ""
}

// Provider defines the interface for image-editing backends.
type Provider interface {
	Name() string
	// Compose adds the person into the group photo.
	Compose(ctx context.Context, group, person *imagefile.EncodedImage) (*GenerationResult, error)
	// Refine edits the current image following a free-text instruction.
	Refine(ctx context.Context, current *imagefile.EncodedImage, instruction string) (*GenerationResult, error)

	// Usage tracking.
	GetUsage() *Usage
	ResetUsage()
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"` // in USD
}

// RequestPricing holds input/output prices per 1M tokens
type RequestPricing struct {
	Input  float64
	Output float64
}

func (u *Usage) add(inputTokens, outputTokens int64, pricing RequestPricing) {
	u.InputTokens += int(inputTokens)
	u.OutputTokens += int(outputTokens)
	u.TotalCost += float64(inputTokens) / 1_000_000 * pricing.Input
	u.TotalCost += float64(outputTokens) / 1_000_000 * pricing.Output
}

func validateImages(images ...*imagefile.EncodedImage) error {
	for i, img := range images {
		if img == nil || img.Payload == "" {
			return fmt.Errorf("image %d is missing", i+1)
		}
	}
	return nil
}
