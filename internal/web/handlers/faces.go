package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-registry/internal/embedding"
	"github.com/kozaktomas/face-registry/internal/facematch"
	"github.com/kozaktomas/face-registry/internal/gallery"
)

const (
	msgMissingNameOrImage = "Missing name or image"
	msgMissingImage       = "Missing image"
	msgInvalidImage       = "Invalid image format"
	msgNoFace             = "No face detected"
	msgUnknownPerson      = "Unknown person"
)

// Registry is the gallery surface the handlers need.
type Registry interface {
	Register(ctx context.Context, label string, embedding []float32) (gallery.Record, error)
	Recognize(ctx context.Context, embedding []float32) (gallery.MatchResult, error)
	List(ctx context.Context) ([]gallery.Record, error)
	Remove(ctx context.Context, id string) error
}

// FacesHandler handles enrollment, recognition and gallery listing.
type FacesHandler struct {
	registry Registry
	provider embedding.Provider
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(registry Registry, provider embedding.Provider) *FacesHandler {
	return &FacesHandler{
		registry: registry,
		provider: provider,
	}
}

type registerResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// recognizeResponse carries either Name or Message. Score is null when the gallery is empty.
type recognizeResponse struct {
	Name    string   `json:"name,omitempty"`
	Message string   `json:"message,omitempty"`
	Score   *float64 `json:"score"`
}

type listResponse struct {
	KnownFaces []string `json:"known_faces"`
	TotalCount int      `json:"total_count"`
}

type faceRecordResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

type facesResponse struct {
	Faces      []faceRecordResponse `json:"faces"`
	TotalCount int                  `json:"total_count"`
}

// embedError writes the response for a failed embedding computation.
// Bad input is the caller's fault; anything else is reported with prefix as a server error.
func embedError(w http.ResponseWriter, r *http.Request, op, prefix string, err error) {
	switch {
	case errors.Is(err, embedding.ErrImageDecode):
		respondError(w, http.StatusBadRequest, msgInvalidImage)
	case errors.Is(err, embedding.ErrNoFaceDetected):
		respondError(w, http.StatusBadRequest, msgNoFace)
	default:
		logRequestError(r, op, err)
		respondError(w, http.StatusInternalServerError, prefix+err.Error())
	}
}

// Register handles POST /register with form field "name" and file "image".
func (h *FacesHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !parseUploadForm(w, r, msgMissingNameOrImage) {
		return
	}

	name := r.FormValue("name")
	if strings.TrimSpace(name) == "" {
		respondError(w, http.StatusBadRequest, msgMissingNameOrImage)
		return
	}
	image, err := readUpload(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, msgMissingNameOrImage)
		return
	}

	emb, err := h.provider.Embed(r.Context(), image)
	if err != nil {
		embedError(w, r, "register", "Registration failed: ", err)
		return
	}

	rec, err := h.registry.Register(r.Context(), name, emb)
	if err != nil {
		if errors.Is(err, gallery.ErrInvalidLabel) {
			if errors.Is(err, facematch.ErrLabelEmpty) {
				respondError(w, http.StatusBadRequest, msgMissingNameOrImage)
				return
			}
			respondError(w, http.StatusBadRequest, "Invalid name: "+err.Error())
			return
		}
		logRequestError(r, "register", err)
		respondError(w, http.StatusInternalServerError, "Registration failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, registerResponse{
		Message: "Registered " + rec.Label + " successfully",
		ID:      rec.ID,
	})
}

// Recognize handles POST /recognize with file "image".
func (h *FacesHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	if !parseUploadForm(w, r, msgMissingImage) {
		return
	}

	image, err := readUpload(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, msgMissingImage)
		return
	}

	emb, err := h.provider.Embed(r.Context(), image)
	if err != nil {
		embedError(w, r, "recognize", "Recognition failed: ", err)
		return
	}

	res, err := h.registry.Recognize(r.Context(), emb)
	if err != nil {
		logRequestError(r, "recognize", err)
		respondError(w, http.StatusInternalServerError, "Recognition failed: "+err.Error())
		return
	}

	switch res.Outcome {
	case gallery.Matched:
		respondJSON(w, http.StatusOK, recognizeResponse{Name: res.Label, Score: &res.Score})
	case gallery.Unmatched:
		respondJSON(w, http.StatusOK, recognizeResponse{Message: msgUnknownPerson, Score: &res.Score})
	default:
		respondJSON(w, http.StatusOK, recognizeResponse{Message: msgUnknownPerson})
	}
}

// List handles GET /list: one label per enrolled sample, in enrollment order.
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.registry.List(r.Context())
	if err != nil {
		logRequestError(r, "list", err)
		respondError(w, http.StatusInternalServerError, "Failed to list faces: "+err.Error())
		return
	}

	labels := make([]string, 0, len(records))
	for _, rec := range records {
		labels = append(labels, rec.Label)
	}
	respondJSON(w, http.StatusOK, listResponse{KnownFaces: labels, TotalCount: len(labels)})
}

// Faces handles GET /faces: every record with its ID, for use with Remove.
func (h *FacesHandler) Faces(w http.ResponseWriter, r *http.Request) {
	records, err := h.registry.List(r.Context())
	if err != nil {
		logRequestError(r, "list", err)
		respondError(w, http.StatusInternalServerError, "Failed to list faces: "+err.Error())
		return
	}

	faces := make([]faceRecordResponse, 0, len(records))
	for _, rec := range records {
		faces = append(faces, faceRecordResponse{ID: rec.ID, Name: rec.Label, CreatedAt: rec.CreatedAt})
	}
	respondJSON(w, http.StatusOK, facesResponse{Faces: faces, TotalCount: len(faces)})
}

// Remove handles DELETE /faces/{id}.
func (h *FacesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "Missing face id")
		return
	}

	if err := h.registry.Remove(r.Context(), id); err != nil {
		if errors.Is(err, gallery.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Face not found")
			return
		}
		logRequestError(r, "remove", err)
		respondError(w, http.StatusInternalServerError, "Failed to remove face: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Removed " + id})
}
