package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func Test_RedactPII_EmailAndPhone(t *testing.T) {
	in := "Call debtor on +233 24 123 4567 or mail accounts@kofi-traders.com.gh"
	out := RedactPII(in)
	if strings.Contains(out, "accounts@") {
		t.Fatalf("email not redacted: %q", out)
	}
	if strings.Contains(out, "4567") {
		t.Fatalf("phone not redacted: %q", out)
	}
	if !strings.Contains(out, "[redacted email]") || !strings.Contains(out, "[redacted phone]") {
		t.Fatalf("markers missing: %q", out)
	}
}

func Test_RedactPII_KeepsShortNumbers(t *testing.T) {
	in := "Invoice 2024 overdue by 45 days"
	if got := RedactPII(in); got != in {
		t.Fatalf("unexpected change: %q", got)
	}
}

func Test_Summary_CutsAtWord(t *testing.T) {
	got := Summary("unpaid supply of cement bags", 12)
	if got != "unpaid…" {
		t.Fatalf("got %q", got)
	}
	if Summary("short", 12) != "short" {
		t.Fatal("short text must be returned as is")
	}
}

func Test_Summary_KeepsRunesWhole(t *testing.T) {
	in := "a" + strings.Repeat("₵", 100)
	got := Summary(in, 240)
	if !utf8.ValidString(got) {
		t.Fatalf("split a rune: %q", got)
	}
	if want := "a" + strings.Repeat("₵", 79) + "…"; got != want {
		t.Fatalf("got %d bytes, want %d", len(got), len(want))
	}
}
