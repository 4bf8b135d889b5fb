// Package static holds the embedded page template.
package static

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(
	template.New("").Funcs(template.FuncMap{"imageURL": imageURL, "dict": dict}).ParseFS(templateFS, "templates/*.html"),
)

// Render writes the index page for data.
func Render(w io.Writer, data any) error {
	return templates.ExecuteTemplate(w, "index.html", data)
}

// imageURL marks an inline image data URL as safe for an img src. Anything
// else renders as an empty string.
func imageURL(handle string) template.URL {
	if !strings.HasPrefix(handle, "data:image/") {
		return ""
	}
	return template.URL(handle) //nolint:gosec // restricted to data:image/ URLs
}

// dict builds a map from key/value pairs so a sub-template can take several arguments.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict requires key/value pairs")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}
