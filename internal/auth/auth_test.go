package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/valpere/sheetmentor/internal/apperr"
)

type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) { return f() }

func TestTokenSource_StaticToken(t *testing.T) {
	ts, err := TokenSource(context.Background(), Config{AccessToken: " ya29.token ", CredentialsFile: "/does/not/matter"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tok, err := Token(ts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.AccessToken != "ya29.token" {
		t.Errorf("expected trimmed token, got %q", tok.AccessToken)
	}
}

func TestTokenSource_MissingFile(t *testing.T) {
	_, err := TokenSource(context.Background(), Config{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")})
	if err == nil {
		t.Fatal("expected error")
	}
	if apperr.KindOf(err) != apperr.KindAuth {
		t.Errorf("expected auth kind, got %s", apperr.KindOf(err))
	}
	if !strings.HasPrefix(err.Error(), "Authentication failed: ") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestTokenSource_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := TokenSource(context.Background(), Config{CredentialsFile: path})
	if apperr.KindOf(err) != apperr.KindAuth {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestToken_Failures(t *testing.T) {
	if _, err := Token(nil); apperr.KindOf(err) != apperr.KindAuth {
		t.Errorf("nil source: expected auth error, got %v", err)
	}

	cause := errors.New("refresh denied")
	_, err := Token(tokenSourceFunc(func() (*oauth2.Token, error) { return nil, cause }))
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}

	_, err = Token(tokenSourceFunc(func() (*oauth2.Token, error) { return &oauth2.Token{}, nil }))
	if err == nil {
		t.Error("expected error for empty token")
	}
}
