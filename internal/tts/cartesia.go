package tts

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
	"github.com/pagevoice/pagevoice-server/internal/ratelimit"
)

const (
	cartesiaBaseURL = "https://api.cartesia.ai"
	cartesiaVersion = "2024-11-13"
	cartesiaModel   = "sonic-2"

	cartesiaRPS     = 2.0
	cartesiaBurst   = 4
	cartesiaTimeout = 5 * time.Minute
)

// Cartesia synthesizes speech through the Cartesia bytes endpoint with word
// timestamps enabled.
type Cartesia struct {
	baseURL string
	apiKey  string
	voice   string
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// CartesiaOption configures a Cartesia client.
type CartesiaOption func(*Cartesia)

// WithCartesiaBaseURL overrides the API base URL.
func WithCartesiaBaseURL(baseURL string) CartesiaOption {
	return func(c *Cartesia) { c.baseURL = baseURL }
}

// WithCartesiaVoice sets the default voice id.
func WithCartesiaVoice(voice string) CartesiaOption {
	return func(c *Cartesia) { c.voice = voice }
}

// NewCartesia creates a Cartesia client.
func NewCartesia(apiKey string, logger *slog.Logger, opts ...CartesiaOption) *Cartesia {
	c := &Cartesia{
		baseURL: cartesiaBaseURL,
		apiKey:  apiKey,
		voice:   "694f9389-aac1-45b6-b726-9d9369183238",
		http:    &http.Client{Timeout: cartesiaTimeout},
		limiter: ratelimit.New(cartesiaRPS, cartesiaBurst),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases resources held by the client.
func (c *Cartesia) Close() {
	c.limiter.Stop()
}

// Name implements Synthesizer.
func (c *Cartesia) Name() string { return "cartesia" }

type cartesiaRequest struct {
	ModelID    string `json:"model_id"`
	Transcript string `json:"transcript"`
	Voice      struct {
		Mode string `json:"mode"`
		ID   string `json:"id"`
	} `json:"voice"`
	OutputFormat struct {
		Container  string `json:"container"`
		BitRate    int    `json:"bit_rate"`
		SampleRate int    `json:"sample_rate"`
	} `json:"output_format"`
	AddTimestamps bool     `json:"add_timestamps"`
	Speed         float64  `json:"speed,omitempty"`
}

type cartesiaResponse struct {
	Audio          []byte `json:"audio"`
	WordTimestamps struct {
		Words []string  `json:"words"`
		Start []float64 `json:"start"`
		End   []float64 `json:"end"`
	} `json:"word_timestamps"`
}

// Synthesize implements Synthesizer.
func (c *Cartesia) Synthesize(ctx context.Context, req SpeechRequest) (*SpeechResult, error) {
	if req.Text == "" {
		return nil, errors.Validation("synthesis text is empty")
	}
	if err := c.limiter.Wait(ctx, "cartesia"); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	payload := cartesiaRequest{
		ModelID:       cartesiaModel,
		Transcript:    req.Text,
		AddTimestamps: true,
		Speed:         req.Options.Speed,
	}
	payload.Voice.Mode = "id"
	payload.Voice.ID = c.voice
	if req.Options.Voice != "" {
		payload.Voice.ID = req.Options.Voice
	}
	payload.OutputFormat.Container = "mp3"
	payload.OutputFormat.BitRate = 128000
	payload.OutputFormat.SampleRate = 44100

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal cartesia request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)
	httpReq.Header.Set("Cartesia-Version", cartesiaVersion)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Provider("cartesia unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Provider("read cartesia response").WithCause(err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.Provider("cartesia rejected the api key").WithHint("check the configured cartesia api key")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.Provider("cartesia rate limited the request")
	default:
		return nil, errors.Providerf("cartesia returned %d: %s", resp.StatusCode, truncate(data, 200))
	}

	var decoded cartesiaResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, errors.Provider("cartesia response is malformed").WithCause(err)
	}
	if len(decoded.Audio) == 0 {
		return nil, errors.Provider("cartesia response missing audio")
	}
	ts := decoded.WordTimestamps
	if len(ts.Words) == 0 || len(ts.Words) != len(ts.Start) || len(ts.Words) != len(ts.End) {
		return nil, errors.Provider("cartesia word timestamps are incomplete")
	}

	if c.logger != nil {
		c.logger.Debug("cartesia synthesis complete",
			"chars", len(req.Text),
			"audio_bytes", len(decoded.Audio),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	}
	return &SpeechResult{
		Audio: decoded.Audio,
		Alignment: domain.WordAlignment{
			Words:          ts.Words,
			WordStartTimes: ts.Start,
			WordEndTimes:   ts.End,
		},
	}, nil
}

func truncate(data []byte, n int) string {
	if len(data) > n {
		data = data[:n]
	}
	return string(data)
}

var _ Synthesizer = (*Cartesia)(nil)
