package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/gallery"
)

var testStrategy = config.Strategy{Detector: "retinaface_mnet025_v1", Recognizer: "arcface_r100_v1"}

// faceVector returns a 512-d vector with value v at index i, deliberately not unit length.
func faceVector(i int, v float32) []float32 {
	emb := make([]float32, gallery.EmbeddingDim)
	emb[i] = v
	return emb
}

// setupFaceServer starts a fake embedding server answering /embed/face with resp.
func setupFaceServer(t *testing.T, resp FaceResponse, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/embed/face", func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("detector") != testStrategy.Detector || r.FormValue("recognizer") != testStrategy.Recognizer {
			http.Error(w, "wrong strategy", http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(url string) *Client {
	return NewClient(&config.EmbeddingConfig{URL: url, TimeoutSec: 5}, testStrategy)
}

func testImage(t *testing.T) []byte {
	return encodePNG(t, createTestImage(64, 64, color.White))
}

func TestClient_EmbedPicksLargestFace(t *testing.T) {
	server := setupFaceServer(t, FaceResponse{
		FacesCount: 3,
		Model:      "buffalo_l",
		Faces: []FaceDetection{
			{FaceIndex: 0, Dim: 512, Embedding: faceVector(0, 3), BBox: []float64{0, 0, 10, 10}},
			{FaceIndex: 1, Dim: 512, Embedding: faceVector(1, 5), BBox: []float64{10, 10, 60, 50}},
			{FaceIndex: 2, Dim: 512, Embedding: faceVector(2, 7), BBox: []float64{0, 0, 20, 20}},
		},
	}, nil)

	emb, err := newTestClient(server.URL).Embed(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emb) != gallery.EmbeddingDim {
		t.Fatalf("expected %d dims, got %d", gallery.EmbeddingDim, len(emb))
	}
	if math.Abs(float64(emb[1])-1) > 1e-6 {
		t.Errorf("expected normalized embedding of the largest face, got emb[1]=%v", emb[1])
	}
}

func TestClient_EmbedNoFace(t *testing.T) {
	server := setupFaceServer(t, FaceResponse{FacesCount: 0, Faces: []FaceDetection{}}, nil)

	_, err := newTestClient(server.URL).Embed(context.Background(), testImage(t))
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("expected ErrNoFaceDetected, got %v", err)
	}
}

func TestClient_EmbedWrongDimension(t *testing.T) {
	server := setupFaceServer(t, FaceResponse{
		FacesCount: 1,
		Faces:      []FaceDetection{{Dim: 128, Embedding: make([]float32, 128), BBox: []float64{0, 0, 1, 1}}},
	}, nil)

	_, err := newTestClient(server.URL).Embed(context.Background(), testImage(t))
	var dimErr *gallery.DimensionMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
	if dimErr.Actual != 128 {
		t.Errorf("expected actual 128, got %d", dimErr.Actual)
	}
}

func TestClient_EmbedInvalidImageSkipsServer(t *testing.T) {
	var calls atomic.Int32
	server := setupFaceServer(t, FaceResponse{}, &calls)

	_, err := newTestClient(server.URL).Embed(context.Background(), []byte("garbage"))
	if !errors.Is(err, ErrImageDecode) {
		t.Errorf("expected ErrImageDecode, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no server calls, got %d", calls.Load())
	}
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Embed(context.Background(), testImage(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 500") || !strings.Contains(err.Error(), "model exploded") {
		t.Errorf("unexpected error: %v", err)
	}
	if errors.Is(err, ErrNoFaceDetected) || errors.Is(err, ErrImageDecode) {
		t.Errorf("server failure must not look like a client error: %v", err)
	}
}

func TestClient_Prepare(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("recognizer") != "arcface_r100_v1" {
			http.Error(w, "unknown model", http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	if err := newTestClient(server.URL + "/").Prepare(context.Background()); err != nil {
		t.Errorf("expected prepare to succeed, got %v", err)
	}

	other := NewClient(&config.EmbeddingConfig{URL: server.URL}, config.Strategy{Detector: "d", Recognizer: "missing"})
	if err := other.Prepare(context.Background()); err == nil {
		t.Error("expected prepare to fail for unknown model")
	}
}

func TestClient_Name(t *testing.T) {
	if got := newTestClient("http://x").Name(); got != "retinaface_mnet025_v1+arcface_r100_v1" {
		t.Errorf("unexpected name %q", got)
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"short", []byte{0xFF}, "application/octet-stream"},
		{"unknown", []byte("abcdefgh"), "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.want {
				t.Errorf("detectMIMEType() = %q, want %q", got, tt.want)
			}
		})
	}
}
