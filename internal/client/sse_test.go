package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMessageStreamDeliversPayloadsInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/abc/stream" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		_, _ = w.Write([]byte("data: {\"agentName\":\"BETO\"}\n\n"))
		_, _ = w.Write([]byte(": keepalive\n\n"))
		_, _ = w.Write([]byte("data: not json\n\n"))
		_, _ = w.Write([]byte("data: {\"model\":\"gemini-2.5-pro\"}\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, stop, err := New(server.URL).MessageStream(ctx, "abc")
	if err != nil {
		t.Fatalf("MessageStream: %v", err)
	}
	defer stop()

	want := []string{`{"agentName":"BETO"}`, `not json`, `{"model":"gemini-2.5-pro"}`}
	for i, expected := range want {
		select {
		case payload, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed early at %d", i)
			}
			if string(payload) != expected {
				t.Fatalf("payload %d: got %q want %q", i, payload, expected)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for payload %d", i)
		}
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected stream to close")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for stream close")
	}
}

func TestMessageStreamRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, _, err := New(server.URL).MessageStream(context.Background(), "abc")
	if apiErr := AsAPIError(err); apiErr == nil || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 api error, got %v", err)
	}
}
