package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/justsurfingit/jobtrackai/internal/config"
	"github.com/justsurfingit/jobtrackai/internal/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// GmailClient builds an authorized HTTP client for the Gmail readonly scope.
// Returns an error instead of exiting so the caller can run without the
// email watcher when credentials are absent.
func GmailClient(ctx context.Context, log *logger.Logger) (*http.Client, error) {
	credPath := config.GetEnv("GMAIL_CREDENTIALS_FILE", "credential.json")

	b, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read client secret file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret file: %w", err)
	}

	tokFile := config.GetEnv("GMAIL_TOKEN_FILE", "token.json")
	tok, err := tokenFromFile(tokFile)
	if err != nil {
		tok, err = tokenFromWeb(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokFile, tok); err != nil {
			log.Warn("Failed to cache oauth token", "path", tokFile, "error", err)
		}
	}
	return cfg.Client(ctx, tok), nil
}

// tokenFromWeb walks the user through the out-of-band consent flow on stdin.
func tokenFromWeb(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("\nOpen this link to authorize Gmail access:\n%v\n\nPaste the code here: ", authURL)

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}
	tok, err := cfg.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
