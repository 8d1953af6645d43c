package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorStringIncludesParts(t *testing.T) {
	err := New(CodeUpstream,
		WithMessage("listen key rejected"),
		WithHTTP(418),
		WithRawBody(`{"code":-1022}`),
		WithCause(errors.New("boom")))

	text := err.Error()
	for _, want := range []string{"code=upstream", "http=418", "listen key rejected", "-1022", "boom"} {
		if !strings.Contains(text, want) {
			t.Fatalf("error string %q missing %q", text, want)
		}
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := New(CodeNetwork, WithCause(cause))
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
}

func TestCodeOfUnwrapsNestedErrors(t *testing.T) {
	inner := New(CodeAuth, WithMessage("missing api key"))
	wrapped := fmt.Errorf("acquire token: %w", inner)
	if got := CodeOf(wrapped); got != CodeAuth {
		t.Fatalf("expected auth code, got %q", got)
	}
	if !IsAuth(wrapped) {
		t.Fatal("expected IsAuth to match wrapped error")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatal("expected empty code for foreign error")
	}
}

func TestNilErrorString(t *testing.T) {
	var e *E
	if e.Error() != "<nil>" {
		t.Fatalf("unexpected nil error string %q", e.Error())
	}
}
