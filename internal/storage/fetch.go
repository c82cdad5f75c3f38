// Package storage acquires scan imagery: remote photos over HTTP for
// live scans and local demo trees for simulations. Every photo passes
// through the vision normalizer before it reaches the pipeline.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/InonELGABSI/houseScanner/internal/config"
	"github.com/InonELGABSI/houseScanner/internal/vision"
)

const (
	maxImageBytes  = 50_000_000
	minImageBytes  = 100
	maxURLLength   = 2048
	fetchUserAgent = "HouseCheck/2.0 Image Fetcher"
)

// imageContentTypes lists the Content-Type values accepted from remote
// servers. GIFs are accepted over the wire even though the local
// simulation trees do not carry them.
var imageContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/webp": {},
	"image/bmp":  {},
	"image/tiff": {},
	"image/gif":  {},
}

// Fetcher downloads scan photos from client-supplied URLs. A failed
// fetch never fails the request; the photo is dropped and the rest of
// the scan proceeds.
type Fetcher struct {
	client     *http.Client
	vision     *vision.Normalizer
	allowLocal bool
	limit      int
	logger     *zap.Logger
}

// NewFetcher builds a fetcher with the configured timeout and
// concurrency cap.
func NewFetcher(cfg config.FetchConfig, normalizer *vision.Normalizer, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = 5
	}
	return &Fetcher{
		client:     &http.Client{Timeout: cfg.FetchTimeout()},
		vision:     normalizer,
		allowLocal: cfg.AllowLocalhostURLs,
		limit:      limit,
		logger:     logger,
	}
}

// FetchAll downloads and normalizes the given URLs concurrently.
// Failures are logged and dropped; surviving images keep URL order.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) [][]byte {
	if len(urls) == 0 {
		return nil
	}
	f.logger.Info("fetching images", zap.Int("count", len(urls)))

	results := make([][]byte, len(urls))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(f.limit)
	for i, u := range urls {
		i, u := i, u
		eg.Go(func() error {
			img, err := f.fetchOne(ctx, u)
			if err != nil {
				f.logger.Warn("image fetch failed", zap.String("url", u), zap.Error(err))
				return nil
			}
			results[i] = img
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil
	}

	fetched := make([][]byte, 0, len(urls))
	for _, img := range results {
		if img != nil {
			fetched = append(fetched, img)
		}
	}
	f.logger.Info("images fetched",
		zap.Int("succeeded", len(fetched)),
		zap.Int("failed", len(urls)-len(fetched)))
	return fetched
}

func (f *Fetcher) fetchOne(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.validateURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); !isImageContentType(ct) {
		return nil, fmt.Errorf("non-image content type %q", ct)
	}
	if resp.ContentLength > maxImageBytes {
		return nil, fmt.Errorf("image too large: %d bytes", resp.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxImageBytes {
		return nil, fmt.Errorf("image too large: %d bytes", len(body))
	}
	if len(body) < minImageBytes {
		return nil, fmt.Errorf("image too small: %d bytes", len(body))
	}

	return f.vision.General(body), nil
}

// validateURL rejects anything that is not a plain http(s) URL with a
// hostname, and private addresses unless the config allows them.
func (f *Fetcher) validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	host := parsed.Hostname()
	if host == "" {
		return errors.New("url has no hostname")
	}
	if !f.allowLocal && isPrivateHost(host) {
		return fmt.Errorf("blocked private address %q", host)
	}
	if len(raw) > maxURLLength {
		return fmt.Errorf("url too long: %d characters", len(raw))
	}
	return nil
}

func isPrivateHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasPrefix(host, "10.") ||
		strings.HasPrefix(host, "192.168.") ||
		strings.HasPrefix(host, "172.")
}

func isImageContentType(ct string) bool {
	main := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	_, ok := imageContentTypes[main]
	return ok
}
