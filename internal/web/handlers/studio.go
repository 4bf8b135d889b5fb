package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/add-me-in/internal/constants"
	"github.com/kozaktomas/add-me-in/internal/imagefile"
	"github.com/kozaktomas/add-me-in/internal/studio"
	"github.com/kozaktomas/add-me-in/internal/web/middleware"
	"github.com/kozaktomas/add-me-in/internal/web/static"
)

// StudioHandler serves the page and the actions of a visitor's session.
type StudioHandler struct {
	timeout time.Duration
}

// NewStudioHandler creates a new studio handler.
func NewStudioHandler() *StudioHandler {
	return &StudioHandler{timeout: constants.GenerationTimeout}
}

// IndexPage is the data rendered by the index template.
type IndexPage struct {
	studio.Snapshot
	Accept         string
	UploadField    string
	RefreshSeconds int
	ResultFilename string
}

// Index renders the page for the current session.
func (h *StudioHandler) Index(w http.ResponseWriter, r *http.Request) {
	ctrl := middleware.MustGetStudio(r.Context(), w)
	if ctrl == nil {
		return
	}

	page := IndexPage{
		Snapshot:       ctrl.Snapshot(),
		Accept:         constants.AcceptedImageTypes,
		UploadField:    constants.UploadFormField,
		RefreshSeconds: constants.BusyRefreshSeconds,
		ResultFilename: constants.ResultFilename,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := static.Render(w, page); err != nil {
		slog.Error("Failed to render page", "error", err)
	}
}

// State returns the session snapshot as JSON.
func (h *StudioHandler) State(w http.ResponseWriter, r *http.Request) {
	ctrl := middleware.MustGetStudio(r.Context(), w)
	if ctrl == nil {
		return
	}
	respondJSON(w, http.StatusOK, ctrl.Snapshot())
}

// Upload stores the posted photo into the slot named in the URL.
func (h *StudioHandler) Upload(w http.ResponseWriter, r *http.Request) {
	slot, ok := studio.ParseSlot(chi.URLParam(r, "slot"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown upload slot")
		return
	}

	ctrl := middleware.MustGetStudio(r.Context(), w)
	if ctrl == nil {
		return
	}

	img, err := readUpload(w, r)
	snap := ctrl.Upload(slot, func() (*imagefile.EncodedImage, error) {
		return img, err
	})
	if err == nil && snap.LastError == "" {
		slog.Info("Photo uploaded", "slot", slot, "type", img.MediaType, "width", img.Width, "height", img.Height)
	}
	respondSnapshot(w, r, snap)
}

// readUpload reads and encodes the single file of an upload form.
func readUpload(w http.ResponseWriter, r *http.Request) (*imagefile.EncodedImage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return nil, fmt.Errorf("parsing multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[constants.UploadFormField]
	if len(files) == 0 {
		return nil, fmt.Errorf("no file in field %q", constants.UploadFormField)
	}

	header := files[0]
	img, err := imagefile.FromFileHeader(header)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", sanitizeForLog(header.Filename), err)
	}
	return img, nil
}

// Generate composes the uploaded person into the group photo.
func (h *StudioHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctrl := middleware.MustGetStudio(r.Context(), w)
	if ctrl == nil {
		return
	}

	ctx, cancel := h.callContext(r)
	defer cancel()

	respondSnapshot(w, r, ctrl.Generate(ctx))
}

// Refine applies the posted instruction to the current result.
func (h *StudioHandler) Refine(w http.ResponseWriter, r *http.Request) {
	ctrl := middleware.MustGetStudio(r.Context(), w)
	if ctrl == nil {
		return
	}

	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form")
		return
	}
	if r.PostForm.Has("instruction") {
		ctrl.SetInstruction(r.PostForm.Get("instruction"))
	}

	ctx, cancel := h.callContext(r)
	defer cancel()

	respondSnapshot(w, r, ctrl.Refine(ctx))
}

// Reset clears the session.
func (h *StudioHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctrl := middleware.MustGetStudio(r.Context(), w)
	if ctrl == nil {
		return
	}
	respondSnapshot(w, r, ctrl.Reset())
}

// Result downloads the current result image.
func (h *StudioHandler) Result(w http.ResponseWriter, r *http.Request) {
	ctrl := middleware.MustGetStudio(r.Context(), w)
	if ctrl == nil {
		return
	}

	snap := ctrl.Snapshot()
	if snap.ResultHandle == "" {
		respondError(w, http.StatusNotFound, "no result available")
		return
	}

	img, err := imagefile.FromDataURL(snap.ResultHandle)
	if err != nil {
		slog.Error("Stored result is not a valid data URL", "error", err)
		respondError(w, http.StatusInternalServerError, "result is unavailable")
		return
	}
	data, err := img.Bytes()
	if err != nil {
		slog.Error("Failed to decode stored result", "error", err)
		respondError(w, http.StatusInternalServerError, "result is unavailable")
		return
	}

	w.Header().Set("Content-Type", img.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", constants.ResultFilename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// callContext detaches the model call from the request lifetime and bounds it
// by the handler timeout.
func (h *StudioHandler) callContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
}
