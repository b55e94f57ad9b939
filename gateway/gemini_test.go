package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dreamweaver/dreamweaver/story"
)

func testGemini(serverURL string) *Gemini {
	cfg := story.DefaultConfig()
	cfg.Gateway.APIKey = "test-key"
	cfg.RetryAttempts = 3
	cfg.RetryDelay = time.Millisecond

	g := NewGemini(cfg)
	g.baseURL = serverURL
	return g
}

func chapterBody(t *testing.T, payload chapterPayload) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	resp := map[string]interface{}{
		"candidates": []map[string]interface{}{{
			"content": map[string]interface{}{
				"parts": []map[string]interface{}{{"text": string(raw)}},
			},
		}},
	}
	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

func TestGenerateChapterParsesStructuredOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.SystemInstruction == nil {
			t.Error("missing system instruction")
		}
		_, _ = w.Write([]byte(chapterBody(t, chapterPayload{
			Title:         "The Hollow Hill",
			Prose:         "A door opened in the hill. Nobody remembered closing it.",
			Mood:          "mystery",
			VisualMoments: []string{"a mossy door in a hillside"},
		})))
	}))
	defer srv.Close()

	g := testGemini(srv.URL)
	ch, err := g.GenerateChapter(context.Background(), story.ChapterRequest{
		Prompt:            "a hill with a door",
		SystemInstruction: "tell it gently",
	})
	if err != nil {
		t.Fatalf("generate chapter: %v", err)
	}
	if ch.Title != "The Hollow Hill" || ch.SuggestedMood != "mystery" {
		t.Errorf("chapter %+v", ch)
	}
	if len(ch.VisualMoments) != 1 {
		t.Errorf("visual moments %v", ch.VisualMoments)
	}
	if ch.ID == "" {
		t.Error("chapter id not assigned")
	}
}

func TestGenerateChapterRetriesUpstreamFaults(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(chapterBody(t, chapterPayload{
			Title: "Third Try", Prose: "It worked at last.", Mood: "calm",
		})))
	}))
	defer srv.Close()

	g := testGemini(srv.URL)
	ch, err := g.GenerateChapter(context.Background(), story.ChapterRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("generate chapter: %v", err)
	}
	if ch.Title != "Third Try" {
		t.Errorf("chapter %+v", ch)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestGenerateChapterDoesNotRetryValidationErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	g := testGemini(srv.URL)
	_, err := g.GenerateChapter(context.Background(), story.ChapterRequest{Prompt: "p"})
	if !errors.Is(err, story.ErrValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestGenerateSpeechDecodesPCM(t *testing.T) {
	pcm := make([]byte, 48000) // one second at 24kHz mono 16-bit
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gc := req.GenerationConfig
		if gc == nil || len(gc.ResponseModalities) != 1 || gc.ResponseModalities[0] != "AUDIO" {
			t.Error("audio modality not requested")
		}
		if gc != nil && gc.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Zephyr" {
			t.Errorf("voice %+v", gc.SpeechConfig)
		}

		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{{
				"content": map[string]interface{}{
					"parts": []map[string]interface{}{{
						"inlineData": map[string]string{
							"mimeType": "audio/L16;codec=pcm;rate=24000",
							"data":     base64.StdEncoding.EncodeToString(pcm),
						},
					}},
				},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	g := testGemini(srv.URL)
	clip, err := g.GenerateSpeech(context.Background(), "A quiet line.", "luna", "british")
	if err != nil {
		t.Fatalf("generate speech: %v", err)
	}
	if len(clip.Data) != len(pcm) {
		t.Errorf("clip size %d, want %d", len(clip.Data), len(pcm))
	}
	if clip.SampleRate != 24000 || clip.Channels != 1 {
		t.Errorf("format %d/%d", clip.SampleRate, clip.Channels)
	}
	if clip.Duration != time.Second {
		t.Errorf("duration %v, want 1s", clip.Duration)
	}
}

func TestGenerateSpeechRejectsEmptyText(t *testing.T) {
	g := testGemini("http://unused")
	if _, err := g.GenerateSpeech(context.Background(), "   ", "aria", "neutral"); !errors.Is(err, story.ErrValidation) {
		t.Errorf("error = %v, want validation", err)
	}
}

func TestGenerateImageDecodesPrediction(t *testing.T) {
	img := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":predict") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		resp := map[string]interface{}{
			"predictions": []map[string]string{{
				"bytesBase64Encoded": base64.StdEncoding.EncodeToString(img),
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	g := testGemini(srv.URL)
	got, err := g.GenerateImage(context.Background(), "a mossy door")
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if string(got) != string(img) {
		t.Errorf("image bytes %v", got)
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
	}
	for _, c := range cases {
		err := classifyStatus(c.status, []byte("detail"))
		if got := story.IsRetryable(err); got != c.retryable {
			t.Errorf("status %d: retryable %v, want %v", c.status, got, c.retryable)
		}
	}
}

func TestSampleRateFromMime(t *testing.T) {
	cases := []struct {
		mime string
		want int
	}{
		{"audio/L16;codec=pcm;rate=24000", 24000},
		{"audio/L16; rate=16000", 16000},
		{"audio/L16", defaultSampleRate},
		{"", defaultSampleRate},
		{"audio/L16;rate=bogus", defaultSampleRate},
	}
	for _, c := range cases {
		if got := sampleRateFromMime(c.mime); got != c.want {
			t.Errorf("sampleRateFromMime(%q) = %d, want %d", c.mime, got, c.want)
		}
	}
}
