package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

const (
	defaultRecognitionURL = "http://localhost:8000"
	defaultTimeout        = 5 * time.Second
)

// Client talks to the inference server. It implements both Extractor and LandmarkDetector.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

var (
	_ Extractor        = (*Client)(nil)
	_ LandmarkDetector = (*Client)(nil)
)

// NewClient creates a new inference server client. Every call is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultRecognitionURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{},
	}
}

// faceDetection represents a single detected face.
type faceDetection struct {
	Embedding []float32                  `json:"embedding"`
	BBox      []float64                  `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64                    `json:"det_score"`
	Live      *bool                      `json:"live"`
	Landmarks map[string]facematch.Point `json:"landmarks"`
}

// faceResponse represents the response from the face endpoints.
type faceResponse struct {
	FacesCount  int             `json:"faces_count"`
	Faces       []faceDetection `json:"faces"`
	ImageWidth  int             `json:"image_width"`
	ImageHeight int             `json:"image_height"`
}

// Extract returns the embedding of the most confident face in the image.
func (c *Client) Extract(ctx context.Context, image []byte) (Embedding, error) {
	resp, err := c.faces(ctx, "/embed/face", image)
	if err != nil {
		return Embedding{}, err
	}
	face := resp.Faces[0]

	// Fail closed: a face without a positive liveness verdict is never usable.
	if face.Live == nil || !*face.Live {
		return Embedding{}, fmt.Errorf("%w: liveness check failed", ErrSpoofDetected)
	}
	if len(face.Embedding) == 0 {
		return Embedding{}, fmt.Errorf("%w: empty embedding returned", ErrProcessing)
	}
	return Embedding{Vector: face.Embedding, Live: true}, nil
}

// Detect returns the landmarks of the most confident face in the image.
func (c *Client) Detect(ctx context.Context, image []byte) (facematch.Landmarks, error) {
	resp, err := c.faces(ctx, "/landmarks/face", image)
	if err != nil {
		return facematch.Landmarks{}, err
	}
	return facematch.Landmarks{
		Points:      resp.Faces[0].Landmarks,
		ImageWidth:  resp.ImageWidth,
		ImageHeight: resp.ImageHeight,
	}, nil
}

// faces posts the image and returns the response with faces sorted by
// detection score, at least one face guaranteed.
func (c *Client) faces(ctx context.Context, endpoint string, image []byte) (*faceResponse, error) {
	if _, err := ValidateImage(image); err != nil {
		return nil, err
	}
	prepared, err := PrepareImage(image, MaxImageSide)
	if err != nil {
		return nil, err
	}

	body, err := c.postMultipartImage(ctx, endpoint, prepared)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrProcessing, err)
	}
	if len(resp.Faces) == 0 {
		return nil, fmt.Errorf("%w: no face detected", ErrNoFace)
	}
	best := 0
	for i := range resp.Faces {
		if resp.Faces[i].DetScore > resp.Faces[best].DetScore {
			best = i
		}
	}
	resp.Faces[0], resp.Faces[best] = resp.Faces[best], resp.Faces[0]
	return &resp, nil
}

// postMultipartImage posts the image as a multipart form under a bounded deadline
// and classifies every failure.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="capture.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnsupportedMediaType:
		return nil, apperror.Input("inference server rejected image: %s", strings.TrimSpace(string(body)))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, apperror.New(apperror.CodeTransient, apperror.ReasonUnavailable,
			"inference server error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	default:
		return nil, fmt.Errorf("%w: API error (status %d): %s", ErrProcessing, resp.StatusCode, string(body))
	}
}

func classifyTransportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperror.Wrap(apperror.CodeTransient, apperror.ReasonTimeout, err)
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	default:
		return apperror.Wrap(apperror.CodeTransient, apperror.ReasonUnavailable, err)
	}
}
