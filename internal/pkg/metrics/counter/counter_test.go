package counter

import (
	"testing"
	"time"
)

func TestFieldFor(t *testing.T) {
	day := time.Date(2026, 8, 23, 15, 4, 5, 0, time.UTC)
	if got := FieldFor("payment_gateway", day); got != "payment_gateway:2026-08-23" {
		t.Fatalf("FieldFor() = %q", got)
	}
}

func TestParseField(t *testing.T) {
	tests := []struct {
		field        string
		wantProvider string
		wantDay      string
		wantOK       bool
	}{
		{field: "payment_gateway:2026-08-23", wantProvider: "payment_gateway", wantDay: "2026-08-23", wantOK: true},
		{field: "chat_provider:2026-01-01", wantProvider: "chat_provider", wantDay: "2026-01-01", wantOK: true},
		{field: "no-day-part", wantOK: false},
		{field: ":2026-08-23", wantOK: false},
		{field: "payment_gateway:not-a-date", wantOK: false},
		{field: "", wantOK: false},
	}

	for _, tt := range tests {
		provider, day, ok := ParseField(tt.field)
		if ok != tt.wantOK {
			t.Fatalf("ParseField(%q) ok = %v, want %v", tt.field, ok, tt.wantOK)
		}
		if !ok {
			continue
		}
		if provider != tt.wantProvider || day != tt.wantDay {
			t.Fatalf("ParseField(%q) = %q, %q", tt.field, provider, day)
		}
	}
}

func TestFieldRoundTrip(t *testing.T) {
	day := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	provider, parsedDay, ok := ParseField(FieldFor("chat_provider", day))
	if !ok {
		t.Fatalf("expected generated field to parse")
	}
	if provider != "chat_provider" || parsedDay != "2026-02-28" {
		t.Fatalf("round trip mismatch: %q %q", provider, parsedDay)
	}
}
