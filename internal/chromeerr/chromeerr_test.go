package chromeerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		code int
	}{
		{KindSessionNotFound, CodeSessionNotFound},
		{KindLaunch, CodeBrowserError},
		{KindConnection, CodeBrowserError},
		{KindNavigationTimeout, CodeTimeout},
		{KindElementNotFound, CodeElementNotFound},
		{KindInvalidParams, CodeInvalidParams},
		{KindInvalidPort, CodeInvalidParams},
		{KindGeneral, CodeInternalError},
	}
	for _, c := range cases {
		if got := Code(c.kind); got != c.code {
			t.Errorf("Code(%s) = %d, want %d", c.kind, got, c.code)
		}
	}
}

func TestKindOfUnwraps(t *testing.T) {
	base := New(KindElementNotFound, "selector never appeared")
	wrapped := fmt.Errorf("click: %w", base)

	kind, ok := KindOf(wrapped)
	if !ok || kind != KindElementNotFound {
		t.Fatalf("KindOf(wrapped) = %v, %v, want element-not-found, true", kind, ok)
	}
}

func TestKindOfPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("boom"))
	if ok {
		t.Fatal("KindOf(plain error) should report not-ok")
	}
	if CodeFor(errors.New("boom")) != CodeInternalError {
		t.Fatal("CodeFor(plain error) should default to internal error")
	}
}

func TestCodeForNil(t *testing.T) {
	if CodeFor(nil) != 0 {
		t.Fatal("CodeFor(nil) should be 0")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(KindConnection, "cdp dial failed", cause)

	if !errors.Is(err, cause) {
		t.Fatal("Wrap should preserve the cause for errors.Is")
	}
	if got := CodeFor(err); got != CodeBrowserError {
		t.Errorf("CodeFor(wrapped connection error) = %d, want %d", got, CodeBrowserError)
	}
}
