// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Upload constants
const (
	// MaxUploadSize is the maximum size of a multipart upload request (20 MiB)
	MaxUploadSize = 20 << 20

	// UploadFormField is the multipart field carrying the uploaded photo
	UploadFormField = "file"

	// AcceptedImageTypes is offered to the browser's file picker
	AcceptedImageTypes = "image/png, image/jpeg, image/webp"
)

// Result constants
const (
	// ResultFilename is the suggested name when downloading the result
	ResultFilename = "ai-group-photo.png"
)

// Server constants
const (
	// GenerationTimeout bounds a single request to the web server, including the model call
	GenerationTimeout = 5 * time.Minute

	// ShutdownTimeout is how long in-flight requests get to finish on shutdown
	ShutdownTimeout = 30 * time.Second

	// BusyRefreshSeconds is the page auto-refresh interval while a call is in flight
	BusyRefreshSeconds = 3
)
