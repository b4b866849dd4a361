package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/justsurfingit/jobtrackai/internal/config"
	"github.com/justsurfingit/jobtrackai/internal/logger"
	"golang.org/x/net/html"
)

// TitleFetcher is an advisory capability: the orchestrator may ask for a
// page title as a hint, but absence or failure never blocks a turn.
type TitleFetcher interface {
	FetchTitle(ctx context.Context, url string) (string, error)
}

const maxLinkBodyBytes = 512 * 1024

type LinkService struct {
	client *http.Client
	log    *logger.Logger
}

func NewLinkService(baseLog *logger.Logger) *LinkService {
	timeout := config.GetEnvAsDuration("LINK_FETCH_TIMEOUT", 5*time.Second)
	return &LinkService{
		client: &http.Client{Timeout: timeout},
		log:    baseLog.With("service", "LinkService"),
	}
}

// FetchTitle downloads at most maxLinkBodyBytes of the page and returns the
// <title> text.
func (s *LinkService) FetchTitle(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "JobTrackAI/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.New("unexpected status " + resp.Status)
	}

	title, err := extractTitle(io.LimitReader(resp.Body, maxLinkBodyBytes))
	if err != nil {
		return "", err
	}
	return title, nil
}

func extractTitle(r io.Reader) (string, error) {
	tokenizer := html.NewTokenizer(r)
	inTitle := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				return "", errors.New("no title element found")
			}
			return "", tokenizer.Err()
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			inTitle = string(name) == "title"
		case html.TextToken:
			if inTitle {
				title := strings.TrimSpace(string(tokenizer.Text()))
				if title != "" {
					return collapseWhitespace(title), nil
				}
			}
		case html.EndTagToken:
			inTitle = false
		}
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
