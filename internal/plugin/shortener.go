package plugin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const (
	ShortenerName = "shortener"

	defaultShortenerEndpoint = "http://www.jdem.cz/get"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Shortener replaces URLs in outgoing text with the response of a shortening
// service.
type Shortener struct {
	endpoint string
	client   *http.Client
}

func NewShortener(endpoint string, client *http.Client) *Shortener {
	if endpoint == "" {
		endpoint = defaultShortenerEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Shortener{endpoint: endpoint, client: client}
}

func (s *Shortener) Name() string { return ShortenerName }

func (s *Shortener) TransformOutgoing(ctx context.Context, text string) (string, []string) {
	var notices []string
	out := urlPattern.ReplaceAllStringFunc(text, func(raw string) string {
		short, err := s.shorten(ctx, raw)
		if err != nil {
			notices = append(notices, fmt.Sprintf("The URL failed to shorten: %s", raw))
			return raw
		}
		notices = append(notices, fmt.Sprintf("URL shortened to: %s", short))
		return short
	})
	return out, notices
}

func (s *Shortener) shorten(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("url", raw)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("shortener status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if err != nil {
		return "", err
	}
	short := strings.TrimSpace(string(body))
	if short == "" {
		return "", fmt.Errorf("empty shortener response")
	}
	return short, nil
}
