package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestGemini(url string) *Gemini {
	return NewGemini(Options{APIKey: "test-key", Model: "gemini-test", BaseURL: url, Timeout: time.Second}, zerolog.Nop())
}

func TestGemini_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("expected api key in query")
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "explain CNV" {
			t.Errorf("unexpected request body %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  Your scan shows "},{"text":"signs of CNV.  "}]}}]}`))
	}))
	defer srv.Close()

	text, err := newTestGemini(srv.URL).Generate(context.Background(), "explain CNV")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Your scan shows signs of CNV." {
		t.Errorf("unexpected text %q", text)
	}
}

func TestGemini_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`},
		{"quota", http.StatusTooManyRequests, `{}`},
		{"no candidates", http.StatusOK, `{"candidates":[]}`},
		{"empty text", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"   "}]}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			if _, err := newTestGemini(srv.URL).Generate(context.Background(), "p"); !errors.Is(err, ErrGenerationFailed) {
				t.Errorf("expected ErrGenerationFailed, got %v", err)
			}
		})
	}
}

func TestGemini_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := newTestGemini(url).Generate(context.Background(), "p"); !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestDisabled(t *testing.T) {
	if _, err := (Disabled{}).Generate(context.Background(), "p"); !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}
