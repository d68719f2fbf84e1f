package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quiz-eval-service/internal/domain"
)

func sampleQuestion() domain.Question {
	return domain.Question{
		Text:   "Who wrote the Federalist Papers?",
		A:      "Hamilton, Madison and Jay",
		B:      "Jefferson",
		C:      "Franklin",
		D:      "Adams",
		Domain: domain.History,
	}
}

func TestOpenAIProviderSendsDeterministicPrompt(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected authorization %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"  A\n"}}]}`)
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL + "/v1/", APIKey: "sk-test"})
	ans, err := p.Answer(context.Background(), sampleQuestion())
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.Letter != "a" {
		t.Fatalf("expected normalized letter a, got %q", ans.Letter)
	}
	if ans.ElapsedMs < 0 {
		t.Fatalf("expected non-negative elapsed, got %d", ans.ElapsedMs)
	}
	if got.Model != defaultOpenAIModel || got.Temperature != 0 {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(got.Messages) != 1 || !strings.Contains(got.Messages[0].Content, "Domain: History") {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestOpenAIProviderSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL})
	_, err := p.Answer(context.Background(), sampleQuestion())
	if err == nil || !strings.Contains(err.Error(), "HTTP 429") {
		t.Fatalf("expected HTTP 429 error, got %v", err)
	}
}

func TestOpenAIProviderNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL})
	if _, err := p.Answer(context.Background(), sampleQuestion()); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestOpenAIProviderPassesRawReplyThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"The answer is A"}}]}`)
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL})
	ans, err := p.Answer(context.Background(), sampleQuestion())
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.Letter != "the answer is a" {
		t.Fatalf("expected raw reply to reach the validator, got %q", ans.Letter)
	}
}

func TestGeminiProviderRequiresKey(t *testing.T) {
	if _, err := NewGeminiProvider(context.Background(), GeminiConfig{}); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestGeminiProviderGeneratesAnswer(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":" B\n"}]}}]}`)
	}))
	defer server.Close()

	p, err := NewGeminiProvider(context.Background(), GeminiConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	ans, err := p.Answer(context.Background(), sampleQuestion())
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.Letter != "b" {
		t.Fatalf("expected b, got %q", ans.Letter)
	}
	if !strings.Contains(path, defaultGeminiModel+":generateContent") {
		t.Fatalf("unexpected request path %s", path)
	}
}
