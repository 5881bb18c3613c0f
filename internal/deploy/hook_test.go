package deploy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewReturnsNilWithoutURL(t *testing.T) {
	t.Parallel()
	if h := New(nil, "   ", time.Second); h != nil {
		t.Fatal("New with a blank URL must return nil")
	}
}

func TestTriggerReportsStatus(t *testing.T) {
	t.Parallel()
	for _, status := range []int{http.StatusOK, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		h := New(nil, srv.URL, time.Second)
		got, err := h.Trigger(context.Background())
		srv.Close()
		if err != nil {
			t.Fatalf("Trigger: %v", err)
		}
		if got != status {
			t.Fatalf("Trigger = %d, want %d", got, status)
		}
	}
}

func TestTriggerNetworkFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	h := New(nil, srv.URL, time.Second)
	if _, err := h.Trigger(context.Background()); err == nil {
		t.Fatal("Trigger against a closed server should fail")
	}
}
