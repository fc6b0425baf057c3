package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "medcal/internal/log"
)

// maxFetchBytes bounds the size of a downloaded calendar.
const maxFetchBytes = 8 << 20

// Fetcher downloads published calendars, e.g. to verify an export.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher. A nil client gets a 15s timeout client.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch downloads the calendar at rawURL. webcal:// URLs are fetched over
// https.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, errors.New("calendar URL is empty")
	}
	target := HTTPURL(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	appLog.Info("ics fetch start", "url", redactURL(target))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics fetch %s: %s", redactURL(target), resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, err
	}

	appLog.Info("ics fetch success", "url", redactURL(target), "bytes", len(body))
	return body, nil
}

// HTTPURL maps a webcal:// subscription URL back to https://, or to
// http:// for loopback hosts (the local "serve" command has no TLS). Other
// URLs are returned unchanged.
func HTTPURL(u string) string {
	const webcal = "webcal://"
	if len(u) < len(webcal) || !strings.EqualFold(u[:len(webcal)], webcal) {
		return u
	}
	rest := u[len(webcal):]
	if isLoopback(rest) {
		return "http://" + rest
	}
	return "https://" + rest
}

// isLoopback reports whether the authority at the start of rest names
// localhost or a loopback IP.
func isLoopback(rest string) bool {
	parsed, err := url.Parse("http://" + rest)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// redactURL keeps scheme and host only, so bucket paths and signed query
// strings stay out of the logs.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
