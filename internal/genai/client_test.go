package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(nil, "test-key", 5*time.Second)
	c.SetBaseURL(srv.URL)
	return c
}

func candidateResponse(texts ...string) string {
	parts := make([]map[string]string, 0, len(texts))
	for _, text := range texts {
		parts = append(parts, map[string]string{"text": text})
	}
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": parts}},
		},
	})
	return string(body)
}

func TestGenerateContentRequestShape(t *testing.T) {
	t.Parallel()
	var gotPath, gotKey string
	var gotBody apiRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(candidateResponse("hello")))
	})

	text, err := c.GenerateContent(context.Background(), "gemini-test",
		[]Content{UserContent(Text("hi"), Data("audio/ogg", []byte{0x01, 0x02}))},
		GoogleSearch,
	)
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if text != "hello" {
		t.Fatalf("text = %q, want hello", text)
	}
	if gotPath != "/models/gemini-test:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Role != RoleUser {
		t.Fatalf("contents = %+v, want one user content", gotBody.Contents)
	}
	parts := gotBody.Contents[0].Parts
	if len(parts) != 2 || parts[0].Text != "hi" {
		t.Fatalf("parts = %+v", parts)
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MimeType != "audio/ogg" {
		t.Fatalf("inline data = %+v", parts[1].InlineData)
	}
	if parts[1].InlineData.Data != base64.StdEncoding.EncodeToString([]byte{0x01, 0x02}) {
		t.Fatalf("inline data payload = %q, want base64", parts[1].InlineData.Data)
	}
	if len(gotBody.Tools) != 1 {
		t.Fatalf("tools = %+v, want google_search entry", gotBody.Tools)
	}
	if _, ok := gotBody.Tools[0]["google_search"]; !ok {
		t.Fatalf("tools = %+v, want google_search entry", gotBody.Tools)
	}
}

func TestGenerateContentConcatenatesAndTrims(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidateResponse("  first", " second  ")))
	})

	text, err := c.GenerateContent(context.Background(), "m", []Content{UserContent(Text("hi"))})
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if text != "first second" {
		t.Fatalf("text = %q, want %q", text, "first second")
	}
}

func TestGenerateContentNonOKStatus(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"quota exceeded"}}`))
	})

	_, err := c.GenerateContent(context.Background(), "m", []Content{UserContent(Text("hi"))})
	if err == nil {
		t.Fatal("GenerateContent should fail on 429")
	}
	for _, want := range []string{"429", "quota exceeded"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestGenerateContentNoCandidates(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := c.GenerateContent(context.Background(), "m", []Content{UserContent(Text("hi"))})
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("error = %v, want ErrNoCandidates", err)
	}
}

func TestGenerateContentEmbeddedError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":400,"status":"INVALID_ARGUMENT","message":"bad part"}}`))
	})

	_, err := c.GenerateContent(context.Background(), "m", []Content{UserContent(Text("hi"))})
	if err == nil || !strings.Contains(err.Error(), "bad part") {
		t.Fatalf("error = %v, want embedded API message", err)
	}
}

func TestGenerateContentValidatesInput(t *testing.T) {
	t.Parallel()
	c := NewClient(nil, "k", time.Second)

	if _, err := c.GenerateContent(context.Background(), "  ", []Content{UserContent(Text("hi"))}); err == nil {
		t.Fatal("blank model should fail")
	}
	if _, err := c.GenerateContent(context.Background(), "m", nil); err == nil {
		t.Fatal("empty contents should fail")
	}
}

func TestErrorDetailFallsBackToRawBody(t *testing.T) {
	t.Parallel()
	if got := errorDetail([]byte("  plain text failure  ")); got != "plain text failure" {
		t.Fatalf("errorDetail = %q", got)
	}
	long := strings.Repeat("x", maxErrorBodyLen+100)
	if got := errorDetail([]byte(long)); len(got) != maxErrorBodyLen {
		t.Fatalf("errorDetail length = %d, want %d", len(got), maxErrorBodyLen)
	}
}
