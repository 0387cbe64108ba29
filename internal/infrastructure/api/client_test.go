package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hadassahlevi/tiktax-client/internal/core/domain"
)

func newTestClient(baseURL string, session *Session) *Client {
	return NewClient(baseURL, session, Config{}, nil)
}

func writeCredentials(w http.ResponseWriter, access, refresh string) {
	_ = json.NewEncoder(w).Encode(domain.Credentials{AccessToken: access, RefreshToken: refresh})
}

func TestExpiredTokenTriggersOneRefreshAndOneReplay(t *testing.T) {
	var refreshCalls, listCalls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			refreshCalls.Add(1)
			var payload map[string]string
			_ = json.NewDecoder(r.Body).Decode(&payload)
			if payload["refreshToken"] != "refresh-old" {
				t.Errorf("unexpected refresh token %q", payload["refreshToken"])
			}
			if r.Header.Get("Authorization") != "" {
				t.Errorf("refresh exchange must not carry the expired bearer")
			}
			writeCredentials(w, "access-new", "refresh-new")
		case "/receipts":
			listCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer access-new" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"items":[],"total":0}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	session := NewSession()
	session.Set(domain.Credentials{AccessToken: "access-old", RefreshToken: "refresh-old"})
	client := newTestClient(server.URL, session)

	var out struct {
		Total int `json:"total"`
	}
	if err := client.getJSON(context.Background(), "list_receipts", "/receipts", nil, &out); err != nil {
		t.Fatalf("getJSON() error = %v", err)
	}

	if got := refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	if got := listCalls.Load(); got != 2 {
		t.Fatalf("expected two list attempts, got %d", got)
	}
	if token := session.AccessToken(); token != "access-new" {
		t.Fatalf("expected rotated token installed, got %q", token)
	}
}

func TestRefreshFailureClearsSessionAndSignalsAuthExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			http.Error(w, "refresh token revoked", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	session := NewSession()
	session.Set(domain.Credentials{AccessToken: "access-old", RefreshToken: "refresh-old"})
	client := newTestClient(server.URL, session)

	err := client.getJSON(context.Background(), "list_receipts", "/receipts", nil, nil)
	if !domain.IsKind(err, domain.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if session.Authenticated() {
		t.Fatalf("expected session to be cleared")
	}
}

func TestConcurrentMutationsShareOneRefresh(t *testing.T) {
	var refreshCalls atomic.Int32
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			refreshCalls.Add(1)
			<-release
			writeCredentials(w, "access-new", "refresh-new")
			return
		}
		if r.Header.Get("Authorization") != "Bearer access-new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	session := NewSession()
	session.Set(domain.Credentials{AccessToken: "access-old", RefreshToken: "refresh-old"})
	client := newTestClient(server.URL, session)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, path := range []string{"/receipts/a", "/receipts/b"} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			errs <- client.putJSON(context.Background(), "update_receipt", path, struct{}{}, nil)
		}(path)
	}

	// Give both requests time to hit the 401 and pile onto the refresh.
	release <- struct{}{}
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("mutation failed: %v", err)
		}
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Fatalf("expected a single coalesced refresh, got %d", got)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   error
	}{
		{http.StatusForbidden, domain.ErrAccessDenied},
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusServiceUnavailable, domain.ErrServiceUnavailable},
		{http.StatusInternalServerError, domain.ErrServerError},
		{http.StatusBadGateway, domain.ErrServerError},
		{http.StatusTeapot, domain.ErrRequestFailed},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", tc.status)
		}))

		client := newTestClient(server.URL, NewSession())
		err := client.getJSON(context.Background(), "list_receipts", "/receipts", nil, nil)
		server.Close()

		if !domain.IsKind(err, tc.kind) {
			t.Fatalf("status %d: expected kind %v, got %v", tc.status, tc.kind, err)
		}
		var statusErr *HTTPStatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != tc.status {
			t.Fatalf("status %d: expected HTTPStatusError carrying status, got %v", tc.status, err)
		}
	}
}

func TestConnectivityFailureIsNetworkUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL, NewSession())
	err := client.getJSON(context.Background(), "list_receipts", "/receipts", nil, nil)
	if !domain.IsKind(err, domain.ErrNetworkUnavailable) {
		t.Fatalf("expected ErrNetworkUnavailable, got %v", err)
	}
}

func TestNoRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, NewSession())
	if err := client.getJSON(context.Background(), "list_receipts", "/receipts", nil, nil); err == nil {
		t.Fatalf("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("5xx must not be retried, got %d attempts", got)
	}
}
