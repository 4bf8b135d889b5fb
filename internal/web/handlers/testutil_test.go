package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/add-me-in/internal/ai"
	"github.com/kozaktomas/add-me-in/internal/config"
	"github.com/kozaktomas/add-me-in/internal/imagefile"
	"github.com/kozaktomas/add-me-in/internal/studio"
	"github.com/kozaktomas/add-me-in/internal/web/middleware"
)

// mockProvider is an ai.Provider returning canned replies
type mockProvider struct {
	mu          sync.Mutex
	result      *ai.GenerationResult
	err         error
	calls       int
	instruction string
	ctxErr      error
	usage       ai.Usage
}

func (m *mockProvider) Name() string { return "mock-image-model" }

func (m *mockProvider) Compose(ctx context.Context, _, _ *imagefile.EncodedImage) (*ai.GenerationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.ctxErr = ctx.Err()
	return m.result, m.err
}

func (m *mockProvider) Refine(_ context.Context, _ *imagefile.EncodedImage, instruction string) (*ai.GenerationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.instruction = instruction
	return m.result, m.err
}

func (m *mockProvider) GetUsage() *ai.Usage {
	u := m.usage
	return &u
}

func (m *mockProvider) ResetUsage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = ai.Usage{}
}

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Provider: config.ProviderGemini,
		Gemini:   config.GeminiConfig{APIKey: "test-key"},
	}
}

// requestWithStudio creates a request with a session holding ctrl in context
func requestWithStudio(r *http.Request, ctrl *studio.Controller) *http.Request {
	ctx := middleware.SetSessionInContext(r.Context(), &middleware.Session{ID: "test-session", Studio: ctrl})
	return r.WithContext(ctx)
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// uploadRequest builds a multipart upload of content with the given part Content-Type
func uploadRequest(t *testing.T, slot, contentType string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="photo.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("failed to create part: %v", err)
	}
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload/"+slot, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return requestWithChiParams(req, map[string]string{"slot": slot})
}

// formRequest builds a url-encoded POST
func formRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// asJSON asks for a JSON reply instead of a redirect
func asJSON(r *http.Request) *http.Request {
	r.Header.Set("Accept", "application/json")
	return r
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
