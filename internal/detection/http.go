package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"github.com/smazurov/camwatch/internal/capture"
	"github.com/smazurov/camwatch/internal/version"
)

// HTTPDetector posts each frame as a JPEG to an inference endpoint that
// answers {"detections":[{"label":..,"confidence":..,"box":[x1,y1,x2,y2]}]}.
type HTTPDetector struct {
	URL         string
	Client      *http.Client
	JPEGQuality int
}

// NewHTTPDetector returns a detector with its own client and timeout.
func NewHTTPDetector(url string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPDetector{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

type inferResponse struct {
	Detections []Detection `json:"detections"`
}

// Infer sends one frame and decodes the response.
func (d *HTTPDetector) Infer(ctx context.Context, frame capture.Frame) ([]Detection, error) {
	quality := d.JPEGQuality
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	var body bytes.Buffer
	if err := jpeg.Encode(&body, frame.Image, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference endpoint returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var out inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	return out.Detections, nil
}
