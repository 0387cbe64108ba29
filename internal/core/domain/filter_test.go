package domain

import (
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFilterEncodeOnlySetFields(t *testing.T) {
	status := StatusApproved
	category := CategoryFood
	min := decimal.NewFromInt(10)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	filter := Filter{
		Status:    &status,
		Category:  &category,
		AmountMin: &min,
		DateFrom:  &from,
		Search:    "falafel",
	}

	values := url.Values{}
	filter.Encode(values)

	want := map[string]string{
		"status":    "approved",
		"category":  "food",
		"amountMin": "10",
		"dateFrom":  "2026-01-01T00:00:00Z",
		"search":    "falafel",
	}
	for key, expected := range want {
		if got := values.Get(key); got != expected {
			t.Fatalf("expected %s=%s, got %q", key, expected, got)
		}
	}
	for _, absent := range []string{"amountMax", "dateTo", "vendor"} {
		if values.Has(absent) {
			t.Fatalf("expected %s to be absent", absent)
		}
	}
}

func TestSortEncodeDefaults(t *testing.T) {
	values := url.Values{}
	Sort{}.Encode(values)
	if values.Get("sortBy") != "date" || values.Get("sortDir") != "asc" {
		t.Fatalf("unexpected default encoding: %v", values)
	}

	values = url.Values{}
	Sort{Field: SortByAmount, Desc: true}.Encode(values)
	if values.Get("sortBy") != "amount" || values.Get("sortDir") != "desc" {
		t.Fatalf("unexpected encoding: %v", values)
	}
}

func TestPatchApplied(t *testing.T) {
	vendor := "Osher Ad"
	amount := decimal.NewFromInt(77)
	receipt := Receipt{ID: "r1", Vendor: "old", Status: StatusProcessing}

	out := Patch{Vendor: &vendor, Amount: &amount}.Applied(receipt)
	if out.Vendor != vendor || !out.Amount.Equal(amount) {
		t.Fatalf("patch not applied: %+v", out)
	}
	if out.ID != "r1" || out.Status != StatusProcessing {
		t.Fatalf("untouched fields changed: %+v", out)
	}
	if receipt.Vendor != "old" {
		t.Fatalf("Applied must not mutate the input")
	}
}
