package handlers

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/kozaktomas/add-me-in/internal/studio"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// wantsJSON reports whether the client asked for a JSON reply instead of a page.
func wantsJSON(r *http.Request) bool {
	for accept := range strings.SplitSeq(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(accept))
		if err == nil && mediaType == "application/json" {
			return true
		}
	}
	return false
}

// respondSnapshot finishes a form action: JSON clients get the new state,
// browsers are redirected back to the page (post/redirect/get).
func respondSnapshot(w http.ResponseWriter, r *http.Request, snap studio.Snapshot) {
	if wantsJSON(r) {
		respondJSON(w, http.StatusOK, snap)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
