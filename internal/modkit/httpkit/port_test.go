package httpkit

import (
	"errors"
	"net/http"
	"testing"

	perrs "olivebranch/internal/platform/errors"
)

func TestPort_Parse_MissingHeader(t *testing.T) {
	t.Parallel()

	p := NewPortFunc(func(string) (string, error) {
		t.Fatalf("parser should not be called when header is missing")
		return "", nil
	})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	uid, tid, err := p.Parse(req)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if uid != "" || tid != "" {
		t.Fatalf("expected empty ids, got %q %q", uid, tid)
	}

	var pe *perrs.Error
	if !errors.As(err, &pe) || pe.Code() != perrs.ErrorCodeUnauthorized {
		t.Fatalf("expected unauthorized perrs error, got %#v", err)
	}
}

func TestPort_Parse_EmptyToken(t *testing.T) {
	t.Parallel()

	p := NewPortFunc(func(string) (string, error) {
		t.Fatalf("parser should not be called on blank header")
		return "", nil
	})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(InternalTokenHeader, "   \t ")
	_, _, err := p.Parse(req)
	if err == nil {
		t.Fatalf("expected error for blank token")
	}
}

func TestPort_Parse_InvalidToken(t *testing.T) {
	t.Parallel()

	calls := 0
	p := NewPortFunc(func(tok string) (string, error) {
		calls++
		if tok != "bad.token" {
			t.Fatalf("expected raw token bad.token, got %q", tok)
		}
		return "", errors.New("parse failed")
	})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(InternalTokenHeader, "bad.token")

	uid, tid, err := p.Parse(req)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if uid != "" || tid != "" {
		t.Fatalf("expected empty ids on invalid token, got %q %q", uid, tid)
	}
	if calls != 1 {
		t.Fatalf("expected parser called once, got %d", calls)
	}
}

func TestPort_Parse_ValidToken_Trimmed(t *testing.T) {
	t.Parallel()

	calls := 0
	p := NewPortFunc(func(tok string) (string, error) {
		calls++
		if tok != "abc123" {
			t.Fatalf("expected trimmed token abc123, got %q", tok)
		}
		return "cron", nil
	})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(InternalTokenHeader, "   abc123   ")

	uid, tid, err := p.Parse(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "cron" || tid != "" {
		t.Fatalf("unexpected ids, got %q %q", uid, tid)
	}
	if calls != 1 {
		t.Fatalf("expected parser called once, got %d", calls)
	}
}

func TestPort_Parse_NilParser(t *testing.T) {
	t.Parallel()

	// zero value friendly guard when parse is nil
	var p Port

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(InternalTokenHeader, "tok")

	_, _, err := p.Parse(req)
	if err == nil {
		t.Fatalf("expected error when parser is nil")
	}
}

func TestNewSharedSecretPort(t *testing.T) {
	t.Parallel()

	p := NewSharedSecretPort("s3cret", "internal")

	ok, _ := http.NewRequest(http.MethodGet, "/", nil)
	ok.Header.Set(InternalTokenHeader, "s3cret")
	caller, _, err := p.Parse(ok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller != "internal" {
		t.Fatalf("expected caller internal, got %q", caller)
	}

	bad, _ := http.NewRequest(http.MethodGet, "/", nil)
	bad.Header.Set(InternalTokenHeader, "wrong")
	if _, _, err := p.Parse(bad); err == nil {
		t.Fatalf("expected error for wrong secret")
	}

	// unconfigured secret rejects everything
	empty := NewSharedSecretPort("", "internal")
	any, _ := http.NewRequest(http.MethodGet, "/", nil)
	any.Header.Set(InternalTokenHeader, "whatever")
	if _, _, err := empty.Parse(any); err == nil {
		t.Fatalf("expected error when secret unset")
	}
}
