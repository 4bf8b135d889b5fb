// Package imagefile converts uploaded files into base64 payloads with a
// self-describing data URI, and back.
package imagefile

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	_ "golang.org/x/image/webp"
)

var (
	// ErrInvalidInputKind is returned when the source does not declare an image media type.
	ErrInvalidInputKind = errors.New("file is not an image")
	// ErrEncodingFailure is returned when the source cannot be read or encoded.
	ErrEncodingFailure = errors.New("failed to encode image")
	// ErrMalformedHandle is returned when a data URI cannot be split into media type and payload.
	ErrMalformedHandle = errors.New("invalid data URL")
)

const imagePrefix = "image/"

// EncodedImage is an uploaded image held in memory.
// Payload is always the part of PreviewHandle after its header.
type EncodedImage struct {
	Payload       string `json:"-"`
	MediaType     string `json:"media_type"`
	PreviewHandle string `json:"preview_url"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
}

// DataURL builds a data URI for a base64 payload.
func DataURL(mediaType, payload string) string {
	return "data:" + mediaType + ";base64," + payload
}

// FromFile reads r fully and encodes it. declaredType is the media type the
// source claims to have, e.g. the Content-Type of a multipart part.
func FromFile(r io.Reader, declaredType string) (*EncodedImage, error) {
	mediaType := bareMediaType(declaredType)
	if !strings.HasPrefix(mediaType, imagePrefix) {
		return nil, fmt.Errorf("%w: declared type %q", ErrInvalidInputKind, declaredType)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading source: %v", ErrEncodingFailure, err)
	}

	previewHandle := DataURL(mediaType, base64.StdEncoding.EncodeToString(data))
	_, payload, ok := strings.Cut(previewHandle, ",")
	if !ok || payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrEncodingFailure)
	}

	img := &EncodedImage{
		Payload:       payload,
		MediaType:     mediaType,
		PreviewHandle: previewHandle,
	}

	// Dimensions are informational only; unknown formats keep zero values.
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
	}

	return img, nil
}

// FromFileHeader encodes an uploaded multipart file using its Content-Type header.
func FromFileHeader(fh *multipart.FileHeader) (*EncodedImage, error) {
	declaredType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(bareMediaType(declaredType), imagePrefix) {
		return nil, fmt.Errorf("%w: %s has type %q", ErrInvalidInputKind, fh.Filename, declaredType)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrEncodingFailure, fh.Filename, err)
	}
	defer f.Close()

	return FromFile(f, declaredType)
}

// FromDataURL rebuilds an EncodedImage from an existing data URI, e.g. a
// generated result that is about to be refined.
func FromDataURL(handle string) (*EncodedImage, error) {
	header, payload, ok := strings.Cut(handle, ",")
	if !ok || payload == "" {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformedHandle)
	}

	_, rest, ok := strings.Cut(header, ":")
	if !ok {
		return nil, fmt.Errorf("%w: missing media type", ErrMalformedHandle)
	}
	mediaType, _, ok := strings.Cut(rest, ";")
	if !ok || mediaType == "" {
		return nil, fmt.Errorf("%w: missing media type", ErrMalformedHandle)
	}

	return &EncodedImage{
		Payload:       payload,
		MediaType:     mediaType,
		PreviewHandle: handle,
	}, nil
}

// Bytes decodes the payload back into raw image bytes.
func (e *EncodedImage) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", ErrMalformedHandle, err)
	}
	return data, nil
}

// bareMediaType strips parameters such as "; charset=binary" and lowercases the type.
func bareMediaType(declared string) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(declared))
}
