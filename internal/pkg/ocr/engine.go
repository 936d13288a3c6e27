package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// ErrOCRFatal marks an OCR failure that must not be retried — both the
// multi-language and English-only attempts came back with an engine error,
// so retrying would only feed a broken engine another attempt.
var ErrOCRFatal = errors.New("ocr: engine rejected both language attempts")

// Engine recognizes text in a conditioned image.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, lang string) (string, error)
}

// Recognize runs the conditioning pipeline and calls the engine first in
// multi-language mode (German + English), retrying once in English-only mode
// on engine failure. An empty result is not a failure — a blank frame is a
// legitimate outcome. Two engine errors in a row are wrapped in
// ErrOCRFatal so the caller fails the job without scheduling a retry.
func Recognize(ctx context.Context, engine Engine, frame image.Image) (string, error) {
	conditioned := Condition(frame)

	text, err := engine.Recognize(ctx, conditioned, "deu+eng")
	if err == nil {
		return postProcess(text), nil
	}

	text, err2 := engine.Recognize(ctx, conditioned, "eng")
	if err2 == nil {
		return postProcess(text), nil
	}

	return "", fmt.Errorf("%w: multi-lang=%v english=%v", ErrOCRFatal, err, err2)
}

func postProcess(text string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

// MockEngine is a deterministic stand-in for integration tests: it returns a
// canned string per frame, optionally forcing N consecutive failures to
// exercise the retry path.
type MockEngine struct {
	Text      string
	FailCount int
	calls     int
}

func (m *MockEngine) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	m.calls++
	if m.calls <= m.FailCount {
		return "", fmt.Errorf("mock ocr engine: simulated failure %d", m.calls)
	}
	return m.Text, nil
}

// HTTPEngine calls an external OCR HTTP service with the conditioned frame
// as a multipart PNG upload.
type HTTPEngine struct {
	baseURL string
	http    *http.Client
}

func NewHTTPEngine(baseURL string, timeout time.Duration) *HTTPEngine {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

type ocrResponse struct {
	Text string `json:"text"`
}

func (e *HTTPEngine) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	if strings.TrimSpace(e.baseURL) == "" {
		return "", fmt.Errorf("ocr http engine: base_url is empty")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", "frame.png")
	if err != nil {
		return "", fmt.Errorf("ocr http engine: create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return "", fmt.Errorf("ocr http engine: encode frame: %w", err)
	}
	if err := writer.WriteField("lang", lang); err != nil {
		return "", fmt.Errorf("ocr http engine: write lang field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("ocr http engine: close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/recognize", &body)
	if err != nil {
		return "", fmt.Errorf("ocr http engine: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.http.Do(req)
	if err != nil {
		return "", classifyRequestError(err)
	}
	defer resp.Body.Close()

	var decoded ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("ocr http engine: decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr http engine: status=%d", resp.StatusCode)
	}

	return decoded.Text, nil
}

func classifyRequestError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("ocr http engine: timeout: %w", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("ocr http engine: timeout: %w", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("ocr http engine: network error: %w", urlErr.Err)
	}
	return fmt.Errorf("ocr http engine: request error: %w", err)
}
