package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxLogoBytes bounds how much of a logo response we will read into memory
const maxLogoBytes = 5 << 20 // 5 MiB

// LogoClient fetches tenant logo images for document rendering. Failures are
// reported as errors; callers treat a missing logo as a cosmetic degradation,
// never a render failure.
type LogoClient interface {
	// FetchLogo downloads the image at url and reports its PDF image type
	FetchLogo(ctx context.Context, url string) ([]byte, string, error)
}

type logoClient struct {
	httpClient *http.Client
}

// NewLogoClient creates a new logo client
func NewLogoClient() LogoClient {
	return &logoClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FetchLogo downloads the logo image from the given URL
func (c *logoClient) FetchLogo(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create logo request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch logo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("logo fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read logo body: %w", err)
	}

	format, err := imageFormat(resp.Header.Get("Content-Type"), url)
	if err != nil {
		return nil, "", err
	}
	return data, format, nil
}

// imageFormat maps the response content type (or the URL extension as a
// fallback) to the image type names the PDF layer understands
func imageFormat(contentType, url string) (string, error) {
	switch {
	case strings.Contains(contentType, "png"):
		return "PNG", nil
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return "JPG", nil
	case strings.Contains(contentType, "gif"):
		return "GIF", nil
	}

	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "PNG", nil
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "JPG", nil
	case strings.HasSuffix(lower, ".gif"):
		return "GIF", nil
	}
	return "", fmt.Errorf("unsupported logo content type %q", contentType)
}
