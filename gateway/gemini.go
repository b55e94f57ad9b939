// Package gateway is the external boundary to the generative backends. It
// speaks the Google generative language REST API directly and translates
// transport failures into the session error taxonomy: ErrUpstream for
// retryable faults, ErrValidation for terminal ones.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dreamweaver/dreamweaver/story"
)

const baseURL = "https://generativelanguage.googleapis.com/v1beta"

// Default clip format when the speech response does not declare a rate.
const (
	defaultSampleRate = 24000
	defaultChannels   = 1
)

// prebuiltVoices maps narrator names to the backend's prebuilt voice ids.
var prebuiltVoices = map[string]string{
	"aria":  "Kore",
	"orion": "Charon",
	"luna":  "Zephyr",
	"atlas": "Puck",
	"sage":  "Fenrir",
}

// accentStyles phrases each accent as a natural-language style directive;
// the speech model takes delivery instructions as part of the text.
var accentStyles = map[string]string{
	"neutral":    "",
	"british":    "Speak with a warm British accent.",
	"irish":      "Speak with a soft Irish accent.",
	"southern":   "Speak with a gentle American Southern drawl.",
	"australian": "Speak with a light Australian accent.",
}

// Gemini implements story.Gateway over the REST API.
type Gemini struct {
	httpClient *http.Client
	cfg        story.GatewayConfig
	baseURL    string
	retries    int
	retryDelay time.Duration
	logger     *log.Logger
}

// NewGemini creates a gateway client. The API key must already be present
// in the config; Validate catches a missing key before any call is made.
func NewGemini(cfg story.Config) *Gemini {
	return &Gemini{
		httpClient: &http.Client{Timeout: cfg.Gateway.Timeout},
		cfg:        cfg.Gateway,
		baseURL:    baseURL,
		retries:    cfg.RetryAttempts,
		retryDelay: cfg.RetryDelay,
		logger:     log.WithPrefix("gateway"),
	}
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type contentPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string        `json:"role,omitempty"`
	Parts []contentPart `json:"parts"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig struct {
		VoiceName string `json:"voiceName"`
	} `json:"prebuiltVoiceConfig"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type generationConfig struct {
	ResponseMimeType   string          `json:"responseMimeType,omitempty"`
	ResponseSchema     json.RawMessage `json:"responseSchema,omitempty"`
	ResponseModalities []string        `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig   `json:"speechConfig,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text       string      `json:"text"`
				InlineData *inlineData `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// chapterSchema constrains the text model's output so every chapter parses
// into the same shape: title, prose, a mood word, and illustration prompts.
var chapterSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"title":          {"type": "string"},
		"prose":          {"type": "string"},
		"mood":           {"type": "string"},
		"visual_moments": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["title", "prose", "mood", "visual_moments"]
}`)

type chapterPayload struct {
	Title         string   `json:"title"`
	Prose         string   `json:"prose"`
	Mood          string   `json:"mood"`
	VisualMoments []string `json:"visual_moments"`
}

// GenerateChapter produces the next narrative chapter. Upstream faults are
// retried here with the configured backoff; chapter generation has no other
// retry layer above it.
func (g *Gemini) GenerateChapter(ctx context.Context, req story.ChapterRequest) (*story.Chapter, error) {
	body := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []contentPart{{Text: req.Prompt}},
		}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   chapterSchema,
		},
	}
	if req.SystemInstruction != "" {
		body.SystemInstruction = &content{Parts: []contentPart{{Text: req.SystemInstruction}}}
	}

	var resp generateResponse
	err := g.withRetries(ctx, "generate-chapter", func() error {
		return g.post(ctx, g.generateURL(g.cfg.TextModel), body, &resp)
	})
	if err != nil {
		return nil, err
	}

	text := candidateText(&resp)
	if text == "" {
		return nil, story.NewStoryError(story.ErrUpstream, "gateway", "generate-chapter")
	}

	var payload chapterPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed chapter payload: %v", story.ErrUpstream, err)
	}
	if strings.TrimSpace(payload.Prose) == "" {
		return nil, fmt.Errorf("%w: chapter has no prose", story.ErrUpstream)
	}

	return &story.Chapter{
		ID:            story.NewChapterID(),
		Title:         payload.Title,
		Prose:         payload.Prose,
		SuggestedMood: payload.Mood,
		VisualMoments: payload.VisualMoments,
	}, nil
}

// GenerateSpeech synthesizes one sentence of narration as 16-bit PCM. The
// caller owns retries; this is a single attempt.
func (g *Gemini) GenerateSpeech(ctx context.Context, text, voice, accent string) (*story.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty sentence", story.ErrValidation)
	}

	styled := text
	if style := accentStyles[strings.ToLower(accent)]; style != "" {
		styled = style + " " + text
	}

	voiceName, ok := prebuiltVoices[strings.ToLower(voice)]
	if !ok {
		voiceName = prebuiltVoices["aria"]
	}
	sc := &speechConfig{}
	sc.VoiceConfig.PrebuiltVoiceConfig.VoiceName = voiceName

	body := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []contentPart{{Text: styled}},
		}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       sc,
		},
	}

	var resp generateResponse
	if err := g.post(ctx, g.generateURL(g.cfg.VoiceModel), body, &resp); err != nil {
		return nil, err
	}

	data, mimeType := candidateAudio(&resp)
	if data == "" {
		return nil, story.NewStoryError(story.ErrUpstream, "gateway", "generate-speech")
	}
	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable audio: %v", story.ErrUpstream, err)
	}

	rate := sampleRateFromMime(mimeType)
	clip := &story.Clip{
		Data:       pcm,
		SampleRate: rate,
		Channels:   defaultChannels,
		Duration:   pcmDuration(len(pcm), rate, defaultChannels),
	}
	return clip, nil
}

type predictRequest struct {
	Instances []struct {
		Prompt string `json:"prompt"`
	} `json:"instances"`
	Parameters struct {
		SampleCount int    `json:"sampleCount"`
		AspectRatio string `json:"aspectRatio,omitempty"`
	} `json:"parameters"`
}

type predictResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
	} `json:"predictions"`
}

// GenerateImage renders an illustration for a visual-moment prompt. The
// caller owns retries; this is a single attempt.
func (g *Gemini) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: empty prompt", story.ErrValidation)
	}

	var body predictRequest
	body.Instances = append(body.Instances, struct {
		Prompt string `json:"prompt"`
	}{Prompt: prompt})
	body.Parameters.SampleCount = 1
	body.Parameters.AspectRatio = "16:9"

	url := fmt.Sprintf("%s/models/%s:predict?key=%s", g.baseURL, g.cfg.ImageModel, g.cfg.APIKey)

	var resp predictResponse
	if err := g.post(ctx, url, body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s", story.ErrUpstream, resp.Error.Message)
	}
	if len(resp.Predictions) == 0 || resp.Predictions[0].BytesBase64Encoded == "" {
		return nil, story.NewStoryError(story.ErrUpstream, "gateway", "generate-image")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable image: %v", story.ErrUpstream, err)
	}
	return data, nil
}

func (g *Gemini) generateURL(model string) string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, model, g.cfg.APIKey)
}

// post executes one JSON request/response round trip and classifies HTTP
// failures into the error taxonomy.
func (g *Gemini) post(ctx context.Context, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", story.ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", story.ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, respBytes)
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("%w: unmarshal response: %v", story.ErrUpstream, err)
	}
	return nil
}

// classifyStatus maps HTTP status codes onto the error taxonomy: rate
// limits and server faults are retryable, other client errors are not.
func classifyStatus(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return fmt.Errorf("%w: HTTP %d: %s", story.ErrUpstream, status, msg)
	}
	return fmt.Errorf("%w: HTTP %d: %s", story.ErrValidation, status, msg)
}

// withRetries runs fn with exponential backoff on retryable errors.
func (g *Gemini) withRetries(ctx context.Context, action string, fn func() error) error {
	var lastErr error
	delay := g.retryDelay

	for attempt := 0; attempt < g.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !story.IsRetryable(lastErr) {
			return lastErr
		}
		g.logger.Debug("retrying", "action", action, "attempt", attempt+1, "err", lastErr)
	}
	return lastErr
}

func candidateText(resp *generateResponse) string {
	if resp.Error != nil || len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

func candidateAudio(resp *generateResponse) (data, mimeType string) {
	if resp.Error != nil || len(resp.Candidates) == 0 {
		return "", ""
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && part.InlineData.Data != "" {
			return part.InlineData.Data, part.InlineData.MimeType
		}
	}
	return "", ""
}

// sampleRateFromMime parses the rate out of mime types like
// "audio/L16;codec=pcm;rate=24000".
func sampleRateFromMime(mimeType string) int {
	for _, piece := range strings.Split(mimeType, ";") {
		piece = strings.TrimSpace(piece)
		if v, ok := strings.CutPrefix(piece, "rate="); ok {
			if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return defaultSampleRate
}

// pcmDuration computes clip length for 16-bit PCM.
func pcmDuration(byteLen, rate, channels int) time.Duration {
	if rate <= 0 || channels <= 0 {
		return 0
	}
	samples := byteLen / 2 / channels
	return time.Duration(samples) * time.Second / time.Duration(rate)
}
