package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, srv *httptest.Server, maxPolls int) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(logger.Nop(), HTTPConfig{
		BaseURL:      srv.URL,
		PollInterval: time.Millisecond,
		MaxPolls:     maxPolls,
		Client:       srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return c
}

func TestHTTPClientPollsUntilCompleted(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/transcriptions":
			var req createRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.AudioURL != "https://cdn.example.com/vocals.wav" || !req.WordTimestamps {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "tx-1", "status": "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/transcriptions/tx-1":
			if atomic.AddInt32(&polls, 1) < 3 {
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
				return
			}
			_, _ = w.Write([]byte(`{"status":"completed","words":[{"word":"b","start":2,"end":2.5},{"word":"a","start":1,"end":1.5}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	words, err := newTestClient(t, srv, 10).Transcribe(context.Background(), Audio{URL: "https://cdn.example.com/vocals.wav"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(words) != 2 || words[0].Text != "a" {
		t.Fatalf("words: want sorted [a b] got=%+v", words)
	}
	if got := atomic.LoadInt32(&polls); got != 3 {
		t.Fatalf("polls: want=3 got=%d", got)
	}
}

func TestHTTPClientPollLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"id":"tx-2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"processing"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 4).Transcribe(context.Background(), Audio{URL: "https://x/a.wav"})
	if !errors.Is(err, ErrPollLimit) {
		t.Fatalf("want ErrPollLimit got=%v", err)
	}
}

func TestHTTPClientProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"id":"tx-3"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"error","error":"audio too short"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 4).Transcribe(context.Background(), Audio{URL: "https://x/a.wav"})
	if err == nil || err.Error() != "transcribe: audio too short" {
		t.Fatalf("want provider error got=%v", err)
	}
}

func TestHTTPClientCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"id":"tx-4"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"processing"}`))
	}))
	defer srv.Close()

	c, err := NewHTTPClient(logger.Nop(), HTTPConfig{BaseURL: srv.URL, PollInterval: time.Hour, Client: srv.Client()})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = c.Transcribe(ctx, Audio{URL: "https://x/a.wav"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded got=%v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("cancellation was not prompt")
	}
}

func TestHTTPClientSubmitFailureKeepsProviderMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 4).Transcribe(context.Background(), Audio{URL: "https://x/a.wav"})
	if err == nil || err.Error() != "transcribe: http 429: quota exceeded" {
		t.Fatalf("want status error got=%v", err)
	}
}
