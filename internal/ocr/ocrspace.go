package ocr

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pagevoice/pagevoice-server/internal/errors"
	"github.com/pagevoice/pagevoice-server/internal/ratelimit"
)

const (
	defaultEndpoint = "https://api.ocr.space/parse/image"
	defaultTimeout  = 60 * time.Second

	// OCR.space allows roughly one request per second sustained.
	defaultRPS   = 1.0
	defaultBurst = 3
)

// SpaceClient is an OCR.space API client. Requests are rate limited to stay
// inside the API's sustained quota.
type SpaceClient struct {
	endpoint string
	apiKey   string
	language string
	http     *http.Client
	limiter  *ratelimit.KeyedRateLimiter
	logger   *slog.Logger
}

// SpaceOption configures a SpaceClient.
type SpaceOption func(*SpaceClient)

// WithEndpoint overrides the API endpoint, e.g. for a self-hosted instance.
func WithEndpoint(endpoint string) SpaceOption {
	return func(c *SpaceClient) { c.endpoint = endpoint }
}

// WithLanguage sets the OCR language code. Defaults to "eng".
func WithLanguage(language string) SpaceOption {
	return func(c *SpaceClient) { c.language = language }
}

// NewSpaceClient creates an OCR.space client.
func NewSpaceClient(apiKey string, logger *slog.Logger, opts ...SpaceOption) *SpaceClient {
	c := &SpaceClient{
		endpoint: defaultEndpoint,
		apiKey:   apiKey,
		language: "eng",
		http:     &http.Client{Timeout: defaultTimeout},
		limiter:  ratelimit.New(defaultRPS, defaultBurst),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases resources held by the client.
func (c *SpaceClient) Close() {
	c.limiter.Stop()
}

// parseResponse is the subset of the OCR.space response we consume.
type parseResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool     `json:"IsErroredOnProcessing"`
	ErrorMessage          []string `json:"ErrorMessage"`
}

// Recognize submits one page image and returns its parsed text.
func (c *SpaceClient) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.Validation("page image is empty")
	}
	if err := c.limiter.Wait(ctx, "ocr"); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	body, contentType, err := buildParseRequest(image, c.language)
	if err != nil {
		return "", errors.Internal("build ocr request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Provider("ocr service unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Provider("read ocr response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Providerf("ocr service returned %d", resp.StatusCode)
	}

	var parsed parseResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", errors.Provider("ocr response is malformed").WithCause(err)
	}
	if parsed.IsErroredOnProcessing {
		msg := "unspecified processing error"
		if len(parsed.ErrorMessage) > 0 {
			msg = parsed.ErrorMessage[0]
		}
		return "", errors.Providerf("ocr processing failed: %s", msg)
	}
	if len(parsed.ParsedResults) == 0 {
		return "", errors.Provider("ocr response contained no results")
	}

	text := parsed.ParsedResults[0].ParsedText
	if c.logger != nil {
		c.logger.Debug("page recognized", "bytes_in", len(image), "chars_out", len(text))
	}
	return text, nil
}

// buildParseRequest assembles the multipart form OCR.space expects.
func buildParseRequest(image []byte, language string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", "page.png")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"language":          language,
		"isOverlayRequired": "false",
		"OCREngine":         "2",
		"scale":             "true",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

var _ Recognizer = (*SpaceClient)(nil)
