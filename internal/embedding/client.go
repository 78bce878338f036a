package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/facematch"
	"github.com/kozaktomas/face-registry/internal/gallery"
)

// maxErrorBody caps how much of a failed response is echoed into the error.
const maxErrorBody = 512

// Client computes face embeddings with one detector/recognizer pair of the embedding server.
type Client struct {
	baseURL  string
	strategy config.Strategy
	client   *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a client for strategy. A positive cfg.RateLimit caps requests per second.
func NewClient(cfg *config.EmbeddingConfig, strategy config.Strategy) *Client {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = constants.DefaultEmbeddingURL
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = constants.DefaultEmbeddingTimeoutSec * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(math.Ceil(cfg.RateLimit))))
	}

	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		strategy: strategy,
		client:   &http.Client{Timeout: timeout},
		limiter:  limiter,
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Name returns "<detector>+<recognizer>".
func (c *Client) Name() string {
	return c.strategy.Detector + "+" + c.strategy.Recognizer
}

// Prepare asks the server to load this client's models and reports whether it could.
func (c *Client) Prepare(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	q := url.Values{}
	q.Set("detector", c.strategy.Detector)
	q.Set("recognizer", c.strategy.Recognizer)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	_, err = c.do(req)
	return err
}

// Embed detects faces in imageData and returns the unit-length embedding of the largest one.
func (c *Client) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	prepared, err := PrepareImage(imageData, constants.MaxImageSize)
	if err != nil {
		return nil, err
	}

	faceResp, err := c.ComputeFaceEmbeddings(ctx, prepared)
	if err != nil {
		return nil, err
	}
	if len(faceResp.Faces) == 0 {
		return nil, ErrNoFaceDetected
	}

	bboxes := make([][]float64, len(faceResp.Faces))
	for i, f := range faceResp.Faces {
		bboxes[i] = f.BBox
	}
	face := faceResp.Faces[facematch.LargestBBox(bboxes)]

	if len(face.Embedding) != gallery.EmbeddingDim {
		return nil, &gallery.DimensionMismatchError{Expected: gallery.EmbeddingDim, Actual: len(face.Embedding)}
	}
	unit := gallery.Normalize(face.Embedding)
	if unit == nil {
		return nil, errors.New("embedding server returned a degenerate embedding")
	}
	return unit, nil
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.WriteField("detector", c.strategy.Detector); err != nil {
		return nil, fmt.Errorf("failed to write detector field: %w", err)
	}
	if err := writer.WriteField("recognizer", c.strategy.Recognizer); err != nil {
		return nil, fmt.Errorf("failed to write recognizer field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed/face", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &faceResp, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	return "application/octet-stream"
}
