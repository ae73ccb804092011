package sources

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/adamantic/aussietenders/internal/core/domain"
)

func TestCategoriesDeduplicatesAndFallsBack(t *testing.T) {
	got := Categories("Open tender", " ", "open tender", "Catering")
	if !reflect.DeepEqual(got, []string{"Open tender", "Catering"}) {
		t.Fatalf("Categories() = %v", got)
	}
	if got := Categories("", "  "); !reflect.DeepEqual(got, []string{domain.SentinelCategory}) {
		t.Fatalf("Categories() fallback = %v", got)
	}
}

func TestStatusPrefersAwardMarker(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		awarded bool
		close   *time.Time
		want    domain.TenderStatus
	}{
		{true, &future, domain.StatusAwarded},
		{false, &past, domain.StatusClosed},
		{false, &future, domain.StatusOpen},
		{false, nil, domain.StatusOpen},
	}
	for _, tc := range cases {
		if got := Status(tc.awarded, tc.close, now); got != tc.want {
			t.Fatalf("Status(%v, %v) = %s, want %s", tc.awarded, tc.close, got, tc.want)
		}
	}
}

func TestUsableDescriptionCountsRunes(t *testing.T) {
	if UsableDescription(CleanText("  a \n b  ")) {
		t.Fatalf("expected short description to be rejected")
	}
	if !UsableDescription(CleanText("Café!")) {
		t.Fatalf("expected five-rune description to pass")
	}
}

func TestAmountKeepsDecimalText(t *testing.T) {
	var payload struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
		C Amount `json:"c"`
		D Amount `json:"d"`
	}
	raw := `{"a": 1234567.10, "b": "99,500.00", "c": 1.5e3, "d": null}`
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.A != "1234567.10" || payload.B != "99500.00" || payload.C != "1500.00" || payload.D != "" {
		t.Fatalf("unexpected amounts: %+v", payload)
	}
}

func TestAmountRejectsNonNumericText(t *testing.T) {
	var a Amount
	if err := json.Unmarshal([]byte(`"TBC"`), &a); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}

func TestTruncateAddsEllipsis(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc..." {
		t.Fatalf("Truncate() = %q", got)
	}
	if got := Truncate("abc", 3); got != "abc" {
		t.Fatalf("Truncate() = %q", got)
	}
}

func TestIsJSONContentType(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"application/vnd.api+json", true},
		{"text/html; charset=utf-8", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsJSONContentType(tc.value); got != tc.want {
			t.Fatalf("IsJSONContentType(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestCleanTextComposesToNFC(t *testing.T) {
	got := CleanText("Cafe\u0301  fit-out\n works")
	if got != "Caf\u00e9 fit-out works" {
		t.Fatalf("CleanText() = %q", got)
	}
}
