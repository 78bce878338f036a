package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-registry/internal/constants"
)

// errMissingUpload is returned by readUpload when the form has no such file.
var errMissingUpload = errors.New("missing upload")

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

// logRequestError logs a failed request once, tagged with the chi request ID.
func logRequestError(r *http.Request, op string, err error) {
	log.Printf("[%s] %s %s: %s failed: %s",
		chiMiddleware.GetReqID(r.Context()), r.Method, r.URL.Path, op, sanitizeForLog(err.Error()))
}

// parseUploadForm limits the body to MaxUploadSize and parses the multipart form.
// It reports whether the form was usable; on false the response has been written.
func parseUploadForm(w http.ResponseWriter, r *http.Request, missingMsg string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Image too large (limit %d MB)", constants.MaxUploadSize>>20))
			return false
		}
		respondError(w, http.StatusBadRequest, missingMsg)
		return false
	}
	return true
}

// readUpload returns the bytes of the named multipart file.
func readUpload(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, errMissingUpload
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) == 0 {
		return nil, errMissingUpload
	}
	return data, nil
}
