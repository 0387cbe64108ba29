package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hadassahlevi/tiktax-client/internal/core/domain"
)

var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*Gateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	session := NewSession()
	session.Set(domain.Credentials{AccessToken: "access", RefreshToken: "refresh"})
	return NewGateway(newTestClient(server.URL, session), nil), server
}

func TestListEncodesCriteriaAndComputesHasMore(t *testing.T) {
	var capturedQuery map[string]string

	gateway, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		capturedQuery = map[string]string{}
		for key := range r.URL.Query() {
			capturedQuery[key] = r.URL.Query().Get(key)
		}
		items := make([]domain.Receipt, 20)
		for i := range items {
			items[i] = domain.Receipt{ID: "r", Status: domain.StatusApproved}
		}
		_ = json.NewEncoder(w).Encode(listResponse{Items: items, Total: 45})
	})

	category := domain.CategoryFood
	page, err := gateway.List(context.Background(),
		domain.Filter{Category: &category}, domain.Sort{Field: domain.SortByAmount, Desc: true}, 1, 20)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if capturedQuery["category"] != "food" || capturedQuery["sortBy"] != "amount" ||
		capturedQuery["sortDir"] != "desc" || capturedQuery["page"] != "1" || capturedQuery["pageSize"] != "20" {
		t.Fatalf("unexpected query: %v", capturedQuery)
	}
	if page.Total != 45 || !page.HasMore {
		t.Fatalf("expected total=45 hasMore=true, got %+v", page)
	}
}

func TestListShortPageMeansNoMore(t *testing.T) {
	gateway, _ := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(listResponse{Items: []domain.Receipt{{ID: "r1"}}, Total: 41})
	})

	page, err := gateway.List(context.Background(), domain.Filter{}, domain.DefaultSort(), 3, 20)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.HasMore {
		t.Fatalf("short page must report hasMore=false")
	}
}

func TestUploadSendsIdempotencyKeyAndReturnsID(t *testing.T) {
	var idempotencyKey string
	var receivedBody []byte

	gateway, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		idempotencyKey = r.Header.Get("Idempotency-Key")
		receivedBody, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "rcpt-42"})
	})

	id, err := gateway.Upload(context.Background(), "scan.jpg", bytes.NewReader(jpegHeader))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if id != "rcpt-42" {
		t.Fatalf("expected server id, got %q", id)
	}
	if idempotencyKey == "" {
		t.Fatalf("expected an idempotency key header")
	}
	if !bytes.Equal(receivedBody, jpegHeader) {
		t.Fatalf("expected raw image bytes on the wire")
	}
}

func TestUploadRejectsUnsupportedFileWithoutNetwork(t *testing.T) {
	var calls atomic.Int32
	gateway, _ := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "never"})
	})

	_, err := gateway.Upload(context.Background(), "notes.txt", bytes.NewReader([]byte("plain text")))
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("rejected upload must not reach the network")
	}
}

func TestUpdateSendsPatchAndDecodesReceipt(t *testing.T) {
	var captured map[string]any

	gateway, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/receipts/rcpt-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(domain.Receipt{ID: "rcpt-1", Vendor: "Shufersal", Status: domain.StatusApproved})
	})

	vendor := "Shufersal"
	amount := decimal.NewFromInt(55)
	receipt, err := gateway.Update(context.Background(), "rcpt-1", domain.Patch{Vendor: &vendor, Amount: &amount})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if receipt.Status != domain.StatusApproved {
		t.Fatalf("expected decoded receipt, got %+v", receipt)
	}
	if captured["vendor"] != "Shufersal" {
		t.Fatalf("expected vendor in patch, got %v", captured)
	}
	if _, present := captured["date"]; present {
		t.Fatalf("unset patch fields must be omitted, got %v", captured)
	}
}

func TestDeleteAndRetryPaths(t *testing.T) {
	var deletePath, retryPath string

	gateway, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			deletePath = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			retryPath = r.URL.Path
			w.WriteHeader(http.StatusAccepted)
		}
	})

	if err := gateway.Delete(context.Background(), "rcpt-9"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deletePath != "/receipts/rcpt-9" {
		t.Fatalf("unexpected delete path %q", deletePath)
	}

	if err := gateway.RetryInterpretation(context.Background(), "rcpt-9"); err != nil {
		t.Fatalf("RetryInterpretation() error = %v", err)
	}
	if retryPath != "/receipts/rcpt-9/retry" {
		t.Fatalf("unexpected retry path %q", retryPath)
	}
}

func TestStatisticsDecodesBreakdown(t *testing.T) {
	gateway, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/receipts/statistics" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"totalAmount": "123.45",
			"totalReceipts": 3,
			"averageAmount": "41.15",
			"byCategory": {"food": {"count": 2, "amount": "100"}}
		}`))
	})

	stats, err := gateway.Statistics(context.Background(), domain.Filter{})
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.TotalReceipts != 3 {
		t.Fatalf("expected 3 receipts, got %d", stats.TotalReceipts)
	}
	if entry, ok := stats.ByCategory[domain.CategoryFood]; !ok || entry.Count != 2 {
		t.Fatalf("expected food breakdown, got %+v", stats.ByCategory)
	}
}
