package tts

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
	"unicode"

	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
	"github.com/pagevoice/pagevoice-server/internal/ratelimit"
)

const (
	elevenBaseURL = "https://api.elevenlabs.io"
	elevenModel   = "eleven_multilingual_v2"

	elevenRPS     = 2.0
	elevenBurst   = 4
	elevenTimeout = 5 * time.Minute
)

// ElevenLabs synthesizes speech through the with-timestamps endpoint.
// ElevenLabs reports character-level timing; it is folded into word timing
// before leaving this package so downstream code sees one alignment shape.
type ElevenLabs struct {
	baseURL string
	apiKey  string
	voice   string
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// ElevenLabsOption configures an ElevenLabs client.
type ElevenLabsOption func(*ElevenLabs)

// WithElevenLabsBaseURL overrides the API base URL.
func WithElevenLabsBaseURL(baseURL string) ElevenLabsOption {
	return func(c *ElevenLabs) { c.baseURL = baseURL }
}

// WithElevenLabsVoice sets the default voice id.
func WithElevenLabsVoice(voice string) ElevenLabsOption {
	return func(c *ElevenLabs) { c.voice = voice }
}

// NewElevenLabs creates an ElevenLabs client.
func NewElevenLabs(apiKey string, logger *slog.Logger, opts ...ElevenLabsOption) *ElevenLabs {
	c := &ElevenLabs{
		baseURL: elevenBaseURL,
		apiKey:  apiKey,
		voice:   "21m00Tcm4TlvDq8ikWAM",
		http:    &http.Client{Timeout: elevenTimeout},
		limiter: ratelimit.New(elevenRPS, elevenBurst),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases resources held by the client.
func (c *ElevenLabs) Close() {
	c.limiter.Stop()
}

// Name implements Synthesizer.
func (c *ElevenLabs) Name() string { return "elevenlabs" }

type elevenRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

type elevenResponse struct {
	AudioBase64 []byte `json:"audio_base64"`
	Alignment   struct {
		Characters              []string  `json:"characters"`
		CharacterStartTimes     []float64 `json:"character_start_times_seconds"`
		CharacterEndTimes       []float64 `json:"character_end_times_seconds"`
	} `json:"alignment"`
}

// Synthesize implements Synthesizer.
func (c *ElevenLabs) Synthesize(ctx context.Context, req SpeechRequest) (*SpeechResult, error) {
	if req.Text == "" {
		return nil, errors.Validation("synthesis text is empty")
	}
	if err := c.limiter.Wait(ctx, "elevenlabs"); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	voice := c.voice
	if req.Options.Voice != "" {
		voice = req.Options.Voice
	}

	body, err := json.Marshal(elevenRequest{Text: req.Text, ModelID: elevenModel})
	if err != nil {
		return nil, fmt.Errorf("marshal elevenlabs request: %w", err)
	}

	endpoint := c.baseURL + "/v1/text-to-speech/" + url.PathEscape(voice) + "/with-timestamps"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Provider("elevenlabs unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Provider("read elevenlabs response").WithCause(err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.Provider("elevenlabs rejected the api key").WithHint("check the configured elevenlabs api key")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.Provider("elevenlabs rate limited the request")
	default:
		return nil, errors.Providerf("elevenlabs returned %d: %s", resp.StatusCode, truncate(data, 200))
	}

	var decoded elevenResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, errors.Provider("elevenlabs response is malformed").WithCause(err)
	}
	if len(decoded.AudioBase64) == 0 {
		return nil, errors.Provider("elevenlabs response missing audio")
	}
	al := decoded.Alignment
	if len(al.Characters) == 0 ||
		len(al.Characters) != len(al.CharacterStartTimes) ||
		len(al.Characters) != len(al.CharacterEndTimes) {
		return nil, errors.Provider("elevenlabs character alignment is incomplete")
	}

	alignment := foldCharacterAlignment(al.Characters, al.CharacterStartTimes, al.CharacterEndTimes)
	if len(alignment.Words) == 0 {
		return nil, errors.Provider("elevenlabs alignment contained no words")
	}

	if c.logger != nil {
		c.logger.Debug("elevenlabs synthesis complete",
			"chars", len(req.Text),
			"audio_bytes", len(decoded.AudioBase64),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	}
	return &SpeechResult{Audio: decoded.AudioBase64, Alignment: alignment}, nil
}

// foldCharacterAlignment groups character timings into whitespace-delimited
// words. A word's start time is its first character's start; its end time is
// its last character's end.
func foldCharacterAlignment(chars []string, starts, ends []float64) domain.WordAlignment {
	var out domain.WordAlignment
	var word []byte
	var wordStart float64
	inWord := false

	flush := func(end float64) {
		out.Words = append(out.Words, string(word))
		out.WordStartTimes = append(out.WordStartTimes, wordStart)
		out.WordEndTimes = append(out.WordEndTimes, end)
		word = word[:0]
		inWord = false
	}

	lastEnd := 0.0
	for i, ch := range chars {
		isSpace := true
		for _, r := range ch {
			if !unicode.IsSpace(r) {
				isSpace = false
				break
			}
		}
		if isSpace {
			if inWord {
				flush(lastEnd)
			}
			continue
		}
		if !inWord {
			inWord = true
			wordStart = starts[i]
		}
		word = append(word, ch...)
		lastEnd = ends[i]
	}
	if inWord {
		flush(lastEnd)
	}
	return out
}

var _ Synthesizer = (*ElevenLabs)(nil)
