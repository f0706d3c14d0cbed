package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"duet/internal/services/retry"
)

const (
	// DefaultBaseURL is the ElevenLabs v1 API root.
	DefaultBaseURL      = "https://api.elevenlabs.io/v1"
	defaultModelID      = "eleven_multilingual_v2"
	defaultOutputFormat = "mp3_44100_128"
	defaultHTTPTimeout  = 60 * time.Second
)

// DefaultRetry is used unless WithRetry overrides it.
var DefaultRetry = retry.Policy{Attempts: 3, BaseDelay: time.Second, MaxDelay: 8 * time.Second}

// Config captures the runtime settings for the TTS provider.
type Config struct {
	APIKey         string
	BaseURL        string
	ModelID        string
	TimeoutSeconds int
}

// Client talks to the text-to-speech API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      retry.Policy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetry replaces the retry policy.
func WithRetry(policy retry.Policy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// NewClient constructs a TTS client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			ModelID:        strings.TrimSpace(cfg.ModelID),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		retry:      DefaultRetry,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = DefaultBaseURL
	}
	if client.cfg.ModelID == "" {
		client.cfg.ModelID = defaultModelID
	}
	return client
}

type synthesisRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts text to MP3 audio spoken by voiceID.
func (c *Client) Synthesize(ctx context.Context, voiceID, text string) ([]byte, error) {
	voiceID = strings.TrimSpace(voiceID)
	text = strings.TrimSpace(text)
	if voiceID == "" {
		return nil, errors.New("tts synthesize: voice id required")
	}
	if text == "" {
		return nil, errors.New("tts synthesize: text required")
	}
	if c.cfg.APIKey == "" {
		return nil, errors.New("tts synthesize: api key required")
	}
	body, err := json.Marshal(synthesisRequest{
		Text:          text,
		ModelID:       c.cfg.ModelID,
		VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return nil, fmt.Errorf("tts synthesize: encode body: %w", err)
	}
	endpoint := c.cfg.BaseURL + "/text-to-speech/" + url.PathEscape(voiceID) + "?output_format=" + defaultOutputFormat

	audio, err := c.doWithRetry(ctx, http.MethodPost, endpoint, body, "audio/mpeg")
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, errors.New("tts synthesize: empty audio response")
	}
	return audio, nil
}

// Voice is an entry from the provider's voice catalogue.
type Voice struct {
	ID         string `json:"voice_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PreviewURL string `json:"preview_url"`
}

// ListVoices returns the voices available to the configured account.
func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	if c.cfg.APIKey == "" {
		return nil, errors.New("tts voices: api key required")
	}
	body, err := c.doWithRetry(ctx, http.MethodGet, c.cfg.BaseURL+"/voices", nil, "application/json")
	if err != nil {
		return nil, err
	}
	var payload struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("tts voices: decode response: %w", err)
	}
	return payload.Voices, nil
}

func (c *Client) doWithRetry(ctx context.Context, method, endpoint string, body []byte, accept string) ([]byte, error) {
	var payload []byte
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		payload, err = c.doOnce(ctx, method, endpoint, body, accept)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, body []byte, accept string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("tts request: new request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, retry.NewStatusError("tts", resp, payload)
	}
	return payload, nil
}
