// proxy.go - Best-effort fetching of similar-product reference images.
//
// Re-analysis of a similar product needs its reference image as upload bytes.
// Remote URLs are fetched through a configurable cross-origin proxy (the
// proxy service is known to be unreliable; failures surface as errors and the
// caller reports them). Data URIs produced by the image-synthesis backfill
// are decoded locally without any network call.

package proxy

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxImageBytes caps downloads so a misbehaving proxy cannot exhaust memory.
const maxImageBytes = 10 << 20

// Fetcher retrieves image bytes for a URL.
type Fetcher struct {
	proxyPrefix string
	client      *http.Client
}

// NewFetcher creates a fetcher routing remote URLs through proxyPrefix
// (the target URL is appended query-escaped).
func NewFetcher(proxyPrefix string) *Fetcher {
	return &Fetcher{
		proxyPrefix: proxyPrefix,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch returns the image bytes and MIME type for imageURL.
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	if strings.HasPrefix(imageURL, "data:") {
		return decodeDataURI(imageURL)
	}

	target := imageURL
	if f.proxyPrefix != "" {
		target = f.proxyPrefix + url.QueryEscape(imageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image URL: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d byte limit", maxImageBytes)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image response")
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

// decodeDataURI unwraps "data:<mime>;base64,<payload>".
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	idx := strings.Index(rest, ",")
	if idx < 0 {
		return nil, "", fmt.Errorf("malformed data URI")
	}

	meta, payload := rest[:idx], rest[idx+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("unsupported data URI encoding")
	}
	mime := strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode data URI: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty data URI payload")
	}
	return data, mime, nil
}
