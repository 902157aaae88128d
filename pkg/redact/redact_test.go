package redact

import (
	"strings"
	"testing"
)

func TestRedactDisabled(t *testing.T) {
	SetEnabled(false)
	in := "email a@b.com and phone +62 812 3456 7890"
	if got := Text(in); got != in {
		t.Fatalf("expected no redaction, got %q", got)
	}
}

func TestRedactEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "email a@b.com and phone +62 812 3456 7890"
	got := Text(in)
	if got == in {
		t.Fatalf("expected redaction")
	}
	if want := "[REDACTED_EMAIL]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output, got %q", want, got)
	}
	if want := "[REDACTED_PHONE]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output, got %q", want, got)
	}
}

func TestRedactCardNumber(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	got := Text("my card is 4111 1111 1111 1111 thanks ")
	if want := "my card is [REDACTED_CARD] thanks "; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRedactStringsCopies(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := []string{"hello ", "reach me at a@b.com "}
	out := Strings(in)
	if out[1] == in[1] {
		t.Fatalf("expected second entry redacted")
	}
	if in[1] != "reach me at a@b.com " {
		t.Fatalf("expected input untouched, got %q", in[1])
	}
	if Strings(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}
}

func TestRedactPhoneKeepsLastFour(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	if got := Phone("+15551234567"); got != "********4567" {
		t.Fatalf("expected masked number, got %q", got)
	}
	SetEnabled(false)
	if got := Phone("+15551234567"); got != "+15551234567" {
		t.Fatalf("expected unmasked number, got %q", got)
	}
}
