package auth

import (
	"context"
	"dropfiles/internal/config"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
)

// Provider runs the interactive OAuth flow for a cloud destination and
// stores the resulting token under ~/.dropfiles.
type Provider interface {
	Name() string
	Authorize(ctx context.Context) error
}

type GDriveProvider interface {
	Provider
	NewService(ctx context.Context) (*drive.Service, error)
}

type DropboxProvider interface {
	Provider
	NewClient(ctx context.Context) (files.Client, error)
}

var (
	GDrive  GDriveProvider  = &gdriveProvider{}
	Dropbox DropboxProvider = &dropboxProvider{}
)

// Lookup returns the provider registered under name.
func Lookup(name string) (Provider, bool) {
	switch name {
	case GDrive.Name():
		return GDrive, true
	case Dropbox.Name():
		return Dropbox, true
	}

	return nil, false
}

func saveToken(name string, token *oauth2.Token) (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}

	b, err := json.Marshal(token)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b, 0600); err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}

	return path, nil
}

func loadToken(name, provider string) (*oauth2.Token, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("%s auth needed. Please run '%s auth %s' first: %w", provider, config.AppName, provider, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(b, &token); err != nil {
		return nil, fmt.Errorf("failed to parse %s token: %w", provider, err)
	}

	return &token, nil
}

func readCredentials(name string) ([]byte, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("%s not found in %s: %w", name, dir, err)
	}

	return b, nil
}

// refreshed returns a token source for token and writes back the token when
// the refresh produced a new access token.
func refreshed(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token, file string) (oauth2.TokenSource, *oauth2.Token, error) {
	ts := cfg.TokenSource(ctx, token)

	newToken, err := ts.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	if newToken.AccessToken != token.AccessToken {
		_, _ = saveToken(file, newToken)
	}

	return ts, newToken, nil
}
