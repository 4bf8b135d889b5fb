package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kozaktomas/add-me-in/internal/ai"
	"github.com/kozaktomas/add-me-in/internal/imagefile"
)

// resultMediaType is assumed for every generated image.
const resultMediaType = "image/png"

// Controller owns one SessionState. Every transition validates its guard
// before touching the state. The lock is never held across a service call;
// the Busy flag keeps a single generate or refine in flight.
type Controller struct {
	provider ai.Provider

	mu    sync.Mutex
	state SessionState
	// epoch is bumped by Reset so a reply to a call started before the reset is dropped.
	epoch uint64
}

// NewController creates a controller in the initial state.
func NewController(provider ai.Provider) *Controller {
	return &Controller{provider: provider}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.snapshot()
}

// Upload stores the image produced by ingest into slot. Ingestion failures are
// recorded as a user-facing error and leave the slot unchanged. Uploads are
// rejected once a result exists.
func (c *Controller) Upload(slot Slot, ingest func() (*imagefile.EncodedImage, error)) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Busy {
		c.state.LastError = MsgBusy
		return c.state.snapshot()
	}
	if c.state.ResultHandle != "" {
		c.state.LastError = MsgStartOver
		return c.state.snapshot()
	}

	img, err := ingest()
	if err != nil {
		slog.Warn("Failed to process uploaded image", "slot", slot, "error", err)
		c.state.LastError = MsgUploadFailed
		return c.state.snapshot()
	}

	switch slot {
	case SlotGroup:
		c.state.Group = img
	case SlotPerson:
		c.state.Person = img
	default:
		c.state.LastError = MsgUploadFailed
		return c.state.snapshot()
	}
	c.state.LastError = ""
	return c.state.snapshot()
}

// SetGroupImage stores an already ingested group photo.
func (c *Controller) SetGroupImage(img *imagefile.EncodedImage) Snapshot {
	return c.Upload(SlotGroup, ingested(img))
}

// SetPersonImage stores an already ingested photo of the person to add.
func (c *Controller) SetPersonImage(img *imagefile.EncodedImage) Snapshot {
	return c.Upload(SlotPerson, ingested(img))
}

func ingested(img *imagefile.EncodedImage) func() (*imagefile.EncodedImage, error) {
	return func() (*imagefile.EncodedImage, error) {
		if img == nil {
			return nil, imagefile.ErrEncodingFailure
		}
		return img, nil
	}
}

// SetInstruction stores the refinement instruction. It is ignored while a
// call is in flight.
func (c *Controller) SetInstruction(text string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Busy {
		return c.state.snapshot()
	}
	c.state.Instruction = NormalizeInstruction(text)
	return c.state.snapshot()
}

// Generate composes the person into the group photo.
func (c *Controller) Generate(ctx context.Context) Snapshot {
	c.mu.Lock()
	if !c.state.hasInputs() {
		c.state.LastError = MsgMissingInputs
		defer c.mu.Unlock()
		return c.state.snapshot()
	}
	if c.state.Busy {
		c.state.LastError = MsgBusy
		defer c.mu.Unlock()
		return c.state.snapshot()
	}
	if c.state.ResultHandle != "" {
		c.state.LastError = MsgStartOver
		defer c.mu.Unlock()
		return c.state.snapshot()
	}

	group, person := c.state.Group, c.state.Person
	c.state.ResultNote = ""
	epoch := c.begin()
	c.mu.Unlock()

	return c.execute(ctx, epoch, ai.OperationCompose,
		func(ctx context.Context) (*ai.GenerationResult, error) {
			return c.provider.Compose(ctx, group, person)
		},
		func(result *ai.GenerationResult, err error) {
			switch {
			case err != nil:
				c.state.LastError = failureMessage(err)
			case !result.HasImage():
				c.state.LastError = noteOr(result.Note, MsgComposeNoImage)
			default:
				c.state.ResultHandle = imagefile.DataURL(resultMediaType, result.Image)
				c.state.ResultNote = result.Note
				c.state.LastError = ""
			}
		})
}

// Refine applies the stored instruction to the current result. On failure the
// previous result stays on screen.
func (c *Controller) Refine(ctx context.Context) Snapshot {
	c.mu.Lock()
	instruction := strings.TrimSpace(c.state.Instruction)
	if c.state.ResultHandle == "" || instruction == "" {
		c.state.LastError = MsgMissingRefine
		defer c.mu.Unlock()
		return c.state.snapshot()
	}
	if c.state.Busy {
		c.state.LastError = MsgBusy
		defer c.mu.Unlock()
		return c.state.snapshot()
	}

	current, err := imagefile.FromDataURL(c.state.ResultHandle)
	if err != nil {
		slog.Error("Failed to decompose result for refinement", "error", err)
		c.state.LastError = MsgInvalidResult
		defer c.mu.Unlock()
		return c.state.snapshot()
	}

	epoch := c.begin()
	c.mu.Unlock()

	return c.execute(ctx, epoch, ai.OperationRefine,
		func(ctx context.Context) (*ai.GenerationResult, error) {
			return c.provider.Refine(ctx, current, instruction)
		},
		func(result *ai.GenerationResult, err error) {
			switch {
			case err != nil:
				c.state.LastError = failureMessage(err)
			case !result.HasImage():
				c.state.LastError = noteOr(result.Note, MsgRefineNoImage)
			default:
				c.state.ResultHandle = imagefile.DataURL(resultMediaType, result.Image)
				c.state.ResultNote = result.Note
				c.state.Instruction = ""
				c.state.LastError = ""
			}
		})
}

// Reset returns the session to its initial state. A call that is still in
// flight is not cancelled; its reply is discarded when it arrives.
func (c *Controller) Reset() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = SessionState{}
	c.epoch++
	return c.state.snapshot()
}

// begin marks the session busy. Caller holds c.mu.
func (c *Controller) begin() uint64 {
	c.state.Busy = true
	c.state.LastError = ""
	return c.epoch
}

// execute runs call with the busy flag held and releases it on every exit
// path, including a panic inside the provider. apply runs under c.mu together
// with the release, unless the session was reset meanwhile.
func (c *Controller) execute(
	ctx context.Context,
	epoch uint64,
	op ai.Operation,
	call func(context.Context) (*ai.GenerationResult, error),
	apply func(*ai.GenerationResult, error),
) (snap Snapshot) {
	var (
		result *ai.GenerationResult
		err    error
	)

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Generation panicked", "operation", op, "panic", r)
			result, err = nil, fmt.Errorf("panic during %s: %v", op, r)
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.epoch != epoch {
			slog.InfoContext(ctx, "Discarding reply for a reset session", "operation", op)
			snap = c.state.snapshot()
			return
		}

		c.state.Busy = false
		if err != nil {
			slog.WarnContext(ctx, "Generation failed", "operation", op, "error", err)
		}
		apply(result, err)
		snap = c.state.snapshot()
	}()

	result, err = call(ctx)
	return snap
}

// failureMessage maps an error to the text shown to the user.
func failureMessage(err error) string {
	var genErr *ai.GenerationError
	if errors.As(err, &genErr) {
		return errorPrefix + genErr.Message
	}
	return MsgUnexpectedFailed
}

func noteOr(note, fallback string) string {
	if strings.TrimSpace(note) != "" {
		return note
	}
	return fallback
}
