// Package auth provides OAuth2 token sources for the Sheets API.
package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"

	"github.com/valpere/sheetmentor/internal/apperr"
)

// Scope grants read/write access to spreadsheets.
const Scope = sheets.SpreadsheetsScope

type Config struct {
	// CredentialsFile is a service account or authorized user JSON file.
	CredentialsFile string `mapstructure:"credentials" json:"credentials"`
	// AccessToken is used as-is when set, e.g. a token handed over by the
	// browser extension.
	AccessToken string `mapstructure:"access_token" json:"-"`
}

// TokenSource returns a token source for cfg. Resolution order: static
// access token, credentials file, application default credentials.
func TokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	if tok := strings.TrimSpace(cfg.AccessToken); tok != "" {
		return StaticToken(tok), nil
	}

	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, failed(fmt.Errorf("failed to read credentials file: %w", err))
		}
		creds, err := google.CredentialsFromJSON(ctx, data, Scope)
		if err != nil {
			return nil, failed(fmt.Errorf("failed to parse credentials: %w", err))
		}
		return creds.TokenSource, nil
	}

	creds, err := google.FindDefaultCredentials(ctx, Scope)
	if err != nil {
		return nil, failed(err)
	}
	return creds.TokenSource, nil
}

// StaticToken wraps a bearer token that never refreshes.
func StaticToken(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// Token fetches a token from ts, reporting failures as auth errors.
func Token(ts oauth2.TokenSource) (*oauth2.Token, error) {
	if ts == nil {
		return nil, failed(fmt.Errorf("no token source configured"))
	}
	tok, err := ts.Token()
	if err != nil {
		return nil, failed(err)
	}
	if tok.AccessToken == "" {
		return nil, failed(fmt.Errorf("empty access token"))
	}
	return tok, nil
}

func failed(err error) error {
	return apperr.Wrap(err, apperr.KindAuth, "Authentication failed")
}
