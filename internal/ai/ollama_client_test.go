package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func chatRequest() GenerateRequest {
	return GenerateRequest{Model: "llama3:latest", Messages: []Message{{Role: "user", Content: "hi"}}}
}

func TestOllamaGenerateOptionsAndUsage(t *testing.T) {
	var got ollamaChatRequest
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"role": "assistant", "content": `{"summary":"ok"}`},
			"done":              true,
			"prompt_eval_count": 42,
			"eval_count":        8,
		})
	}))
	defer srv.Close()

	req := chatRequest()
	req.MaxTokens = 256
	req.Temperature = 0.3
	resp, err := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.Stream {
		t.Fatalf("Generate must request a non-streaming reply")
	}
	if got.Options["num_predict"] != float64(256) || got.Options["temperature"] != 0.3 {
		t.Fatalf("options not forwarded: %+v", got.Options)
	}
	if resp.Text() != `{"summary":"ok"}` {
		t.Fatalf("text = %q", resp.Text())
	}
	if resp.Usage != (Usage{PromptTokens: 42, CompletionTokens: 8, TotalTokens: 50}) {
		t.Fatalf("usage = %+v", resp.Usage)
	}
	if !strings.HasPrefix(resp.RequestID, "ollama_") {
		t.Fatalf("request id = %q", resp.RequestID)
	}
}

func TestOllamaGenerateErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"missing model", http.StatusNotFound, func(err error) bool {
			var e *ModelNotFoundError
			return errors.As(err, &e) && e.Message == "model not pulled"
		}},
		{"bad request", http.StatusBadRequest, func(err error) bool {
			var e *BadRequestError
			return errors.As(err, &e)
		}},
		{"server error", http.StatusInternalServerError, func(err error) bool {
			var e *ServerError
			return errors.As(err, &e) && e.StatusCode == http.StatusInternalServerError
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "model not pulled"})
			}))
			defer srv.Close()
			_, err := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0).Generate(context.Background(), chatRequest())
			if err == nil || !tc.check(err) {
				t.Fatalf("unexpected error %T: %v", err, err)
			}
		})
	}
}

func TestOllamaGenerateRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "loading model"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "recovered"},
			"done":    true,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, 2*time.Second, 3, time.Millisecond, 5*time.Millisecond)
	resp, err := c.Generate(context.Background(), chatRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text() != "recovered" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("text=%q calls=%d", resp.Text(), calls)
	}
}

func TestOllamaGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "model not found"})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, 2*time.Second, 3, time.Millisecond, 5*time.Millisecond)
	if _, err := c.Generate(context.Background(), chatRequest()); err == nil {
		t.Fatalf("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("404 retried: %d calls", n)
	}
}

func TestOllamaGenerateUnreachable(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := srv.URL
	srv.Close()

	_, err := NewOllamaClient(host, time.Second, 1, 0, 0).Generate(context.Background(), chatRequest())
	var ue *UnreachableError
	if !errors.As(err, &ue) || ue.Host != host {
		t.Fatalf("expected UnreachableError for %s, got %T: %v", host, err, err)
	}
}

func TestOllamaGenerateStreamUntilDone(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			http.Error(w, `{"error":"expected stream"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		for _, part := range []string{`{"summary":`, `"streamed"}`} {
			_ = enc.Encode(map[string]any{"message": map[string]any{"role": "assistant", "content": part}})
		}
		_ = enc.Encode(map[string]any{"message": map[string]any{"role": "assistant", "content": ""}, "done": true})
		// Anything after done is ignored.
		_ = enc.Encode(map[string]any{"message": map[string]any{"role": "assistant", "content": "trailing"}})
	}))
	defer srv.Close()

	var sb strings.Builder
	err := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0).GenerateStream(context.Background(), chatRequest(), func(d string) { sb.WriteString(d) })
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if sb.String() != `{"summary":"streamed"}` {
		t.Fatalf("streamed = %q", sb.String())
	}
}

func TestOllamaGenerateStreamMapsErrors(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "model not found"})
	}))
	defer srv.Close()
	err := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0).GenerateStream(context.Background(), chatRequest(), func(string) {})
	var mnf *ModelNotFoundError
	if !errors.As(err, &mnf) {
		t.Fatalf("expected ModelNotFoundError, got %T: %v", err, err)
	}
}

func TestOllamaRejectsIncompleteRequests(t *testing.T) {
	c := NewOllamaClient("", time.Second, 1, 0, 0)
	if c.host != defaultOllamaHost {
		t.Fatalf("default host = %q", c.host)
	}
	if _, err := c.Generate(context.Background(), GenerateRequest{Messages: chatRequest().Messages}); err == nil {
		t.Fatalf("expected error for empty model")
	}
	if err := c.GenerateStream(context.Background(), GenerateRequest{Model: "m"}, func(string) {}); err == nil {
		t.Fatalf("expected error for empty messages")
	}
}
