package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-registry/internal/embedding"
	"github.com/kozaktomas/face-registry/internal/gallery"
)

// fakeProvider maps image bytes to a canned embedding or error.
type fakeProvider struct {
	embeddings map[string][]float32
	errs       map[string]error
	calls      int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		embeddings: make(map[string][]float32),
		errs:       make(map[string]error),
	}
}

func (p *fakeProvider) Embed(ctx context.Context, image []byte) ([]float32, error) {
	p.calls++
	if err, ok := p.errs[string(image)]; ok {
		return nil, err
	}
	if emb, ok := p.embeddings[string(image)]; ok {
		return emb, nil
	}
	return nil, embedding.ErrImageDecode
}

func (p *fakeProvider) Name() string { return "fake+fake" }

// basis returns the i-th 512-d standard basis vector.
func basis(i int) []float32 {
	v := make([]float32, gallery.EmbeddingDim)
	v[i] = 1
	return v
}

// blend returns a unit vector with dot product cos against basis(i).
func blend(i, j int, cos float32) []float32 {
	v := make([]float32, gallery.EmbeddingDim)
	v[i] = cos
	v[j] = float32(math.Sqrt(1 - float64(cos)*float64(cos)))
	return v
}

// newTestFacesHandler wires a handler to an in-memory registry.
func newTestFacesHandler() (*FacesHandler, *fakeProvider, *gallery.Registry) {
	provider := newFakeProvider()
	registry := gallery.NewRegistry(gallery.NewMemoryStore(), gallery.DefaultThreshold)
	return NewFacesHandler(registry, provider), provider, registry
}

// multipartRequest builds a multipart POST with the given text fields and files.
func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for k, data := range files {
		part, err := writer.CreateFormFile(k, k+".jpg")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write(data)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
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
