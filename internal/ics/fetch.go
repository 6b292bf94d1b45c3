package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	appLog "monthcal/internal/log"
)

const (
	fetchTimeout = 15 * time.Second
	// maxParallelFetches bounds concurrent feed downloads in FetchAll.
	maxParallelFetches = 4
)

// Source is one feed and the record group its events are filed under.
type Source struct {
	ID string
	// URL is an http(s) endpoint, a file:// URL or a plain path on disk.
	URL   string
	Group string
	// Color is copied onto every record of the source.
	Color string
}

// FetchResult is the body of one source. FromCache is set when the body
// came from the disk cache (304, network failure or non-OK status).
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool
}

// Fetcher downloads feeds with conditional requests and keeps the last good
// body of every URL on disk so a flaky calendar server does not blank the
// month.
type Fetcher struct {
	client *http.Client
	cache  feedCache
}

// NewFetcher returns a Fetcher caching under cacheDir
// (for example "/var/lib/monthcal/ics-cache").
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		// 개발 환경에서 root 권한 없이 돌릴 수 있도록 상대 경로.
		cacheDir = "./var/ics-cache"
	}
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
		cache:  feedCache{root: cacheDir},
	}
}

// WithClient replaces the HTTP client, mainly for tests.
func (f *Fetcher) WithClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

// FetchAll fetches sources concurrently. Results and errors keep the order
// of sources; a failed source is logged and appears only in the errors.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	type outcome struct {
		res FetchResult
		err error
	}
	outcomes := make([]outcome, len(sources))

	sem := make(chan struct{}, maxParallelFetches)
	var wg sync.WaitGroup
	for i, src := range sources {
		i, src := i, src
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			res, err := f.FetchOne(ctx, src)
			outcomes[i] = outcome{res: res, err: err}
		}()
	}
	wg.Wait()

	results := make([]FetchResult, 0, len(sources))
	var errs []error
	for i, o := range outcomes {
		if o.err != nil {
			appLog.Error("ics fetch failed", o.err, "id", sources[i].ID, "url", redactURL(sources[i].URL))
			errs = append(errs, o.err)
			continue
		}
		results = append(results, o.res)
	}
	return results, errs
}

// FetchOne fetches a single source. Local files are read directly; remote
// feeds send If-None-Match / If-Modified-Since from the cached metadata and
// fall back to the cached body when the server is unreachable or unhappy.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, fmt.Errorf("source %q: empty url", src.ID)
	}
	if path, ok := localPath(src.URL); ok {
		body, err := os.ReadFile(path)
		if err != nil {
			return FetchResult{}, fmt.Errorf("reading local ics %s: %w", path, err)
		}
		return FetchResult{Source: src, Body: body}, nil
	}

	entry, err := f.cache.open(src.URL)
	if err != nil {
		return FetchResult{}, fmt.Errorf("opening ics cache: %w", err)
	}
	cached := entry.load()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if cached.meta.ETag != "" {
		req.Header.Set("If-None-Match", cached.meta.ETag)
	}
	if cached.meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", cached.meta.LastModified)
	}

	log := []any{"id", src.ID, "url", redactURL(src.URL)}
	appLog.Debug("ics fetch start", log...)

	fromCache := func(reason error) (FetchResult, error) {
		if len(cached.body) == 0 {
			return FetchResult{}, reason
		}
		appLog.Error("ics fetch degraded, using cached body", reason, log...)
		return FetchResult{Source: src, Body: cached.body, FromCache: true}, nil
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fromCache(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return FetchResult{}, fmt.Errorf("reading ics body: %w", err)
		}
		meta := cacheMeta{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := entry.store(meta, body); err != nil {
			// 캐시 저장 실패는 치명적이지 않다.
			appLog.Error("ics cache save failed", err, log...)
		}
		appLog.Info("ics fetched", append(log, "bytes", len(body))...)
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cached.body) == 0 {
			return FetchResult{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Debug("ics not modified", log...)
		return FetchResult{Source: src, Body: cached.body, FromCache: true}, nil

	default:
		return fromCache(fmt.Errorf("unexpected status %s", resp.Status))
	}
}

// localPath reports whether u points at a file rather than an HTTP endpoint.
func localPath(u string) (string, bool) {
	switch {
	case strings.HasPrefix(u, "file://"):
		return strings.TrimPrefix(u, "file://"), true
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		return "", false
	default:
		return u, true
	}
}

// redactURL keeps only scheme and host; feed URLs often carry a secret
// token in the path or query.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
