// Package studio holds the per-visitor editing session: the two uploaded
// photos, the current result and the guarded transitions between them.
package studio

import (
	"strings"

	"github.com/kozaktomas/add-me-in/internal/imagefile"
)

// Phase is the user-visible state of a session, derived from SessionState.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseReadyToGenerate Phase = "ready_to_generate"
	PhaseGenerating      Phase = "generating"
	PhaseResultShown     Phase = "result_shown"
	PhaseRefining        Phase = "refining"
)

// Slot names one of the two upload targets.
type Slot string

const (
	SlotGroup  Slot = "group"
	SlotPerson Slot = "person"
)

// ParseSlot validates a slot name coming from a URL.
func ParseSlot(s string) (Slot, bool) {
	switch Slot(s) {
	case SlotGroup, SlotPerson:
		return Slot(s), true
	}
	return "", false
}

// User-facing messages.
const (
	MsgUploadFailed     = "Failed to process image file. Please try another one."
	MsgMissingInputs    = "Please upload both a group photo and a photo of the person to add."
	MsgMissingRefine    = "Please enter a refinement instruction."
	MsgBusy             = "Please wait for the current request to finish."
	MsgStartOver        = "Click \"Try Another\" to start over with new photos."
	MsgComposeNoImage   = "The AI could not generate an image. Please try again."
	MsgRefineNoImage    = "The AI could not refine the image. Please try again."
	MsgInvalidResult    = "The current result could not be prepared for refinement. Please start over."
	MsgUnexpectedFailed = "Something went wrong. Please try again."
	errorPrefix         = "An error occurred: "
)

// SessionState is everything a session shows. The zero value is the initial state.
type SessionState struct {
	Group        *imagefile.EncodedImage
	Person       *imagefile.EncodedImage
	ResultHandle string
	ResultNote   string
	Busy         bool
	LastError    string
	Instruction  string
}

// Phase derives the current phase.
func (s *SessionState) Phase() Phase {
	switch {
	case s.Busy && s.ResultHandle == "":
		return PhaseGenerating
	case s.Busy:
		return PhaseRefining
	case s.ResultHandle != "":
		return PhaseResultShown
	case s.hasInputs():
		return PhaseReadyToGenerate
	default:
		return PhaseIdle
	}
}

func (s *SessionState) hasInputs() bool {
	return s.Group != nil && s.Person != nil
}

// CanGenerate reports whether the generate action is enabled. Once a result
// exists only refine and reset are available.
func (s *SessionState) CanGenerate() bool {
	return s.hasInputs() && !s.Busy && s.ResultHandle == ""
}

// CanRefine reports whether the refine action is enabled.
func (s *SessionState) CanRefine() bool {
	return s.ResultHandle != "" && strings.TrimSpace(s.Instruction) != "" && !s.Busy
}

// Snapshot is a read-only copy of a session for rendering and JSON.
type Snapshot struct {
	Phase        Phase                   `json:"phase"`
	Group        *imagefile.EncodedImage `json:"group,omitempty"`
	Person       *imagefile.EncodedImage `json:"person,omitempty"`
	ResultHandle string                  `json:"result,omitempty"`
	ResultNote   string                  `json:"note,omitempty"`
	Busy         bool                    `json:"busy"`
	LastError    string                  `json:"error,omitempty"`
	Instruction  string                  `json:"instruction"`
	CanGenerate  bool                    `json:"can_generate"`
	CanRefine    bool                    `json:"can_refine"`
}

func (s *SessionState) snapshot() Snapshot {
	return Snapshot{
		Phase:        s.Phase(),
		Group:        s.Group,
		Person:       s.Person,
		ResultHandle: s.ResultHandle,
		ResultNote:   s.ResultNote,
		Busy:         s.Busy,
		LastError:    s.LastError,
		Instruction:  s.Instruction,
		CanGenerate:  s.CanGenerate(),
		CanRefine:    s.CanRefine(),
	}
}
