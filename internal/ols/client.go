package ols

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"
)

// ClientConfig configures a catalog client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. https://www.ebi.ac.uk/ols4/api.
	BaseURL string
	// OntologyID is the catalog identifier of the ontology to sync.
	OntologyID string
	// PageSize is the number of terms requested per page.
	PageSize int
	// RequestDelay is the courtesy pause after each successful page fetch.
	RequestDelay time.Duration
	// Retry is the backoff policy for page fetches and parent resolution.
	Retry RetryPolicy
	// MaxResolveWorkers caps the parent resolution worker pool.
	MaxResolveWorkers int
	// Timeout bounds each individual HTTP request.
	Timeout time.Duration
	// Logger receives retry and drop warnings. Defaults to stderr.
	Logger *log.Logger
}

// Client fetches terms from an OLS-style catalog.
type Client struct {
	baseURL           string
	ontologyID        string
	pageSize          int
	requestDelay      time.Duration
	retry             RetryPolicy
	maxResolveWorkers int
	httpClient        *http.Client
	logger            *log.Logger
}

// NewClient builds a client. Zero config fields fall back to defaults
// suitable for the public OLS deployment.
func NewClient(cfg ClientConfig) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.MaxResolveWorkers <= 0 {
		cfg.MaxResolveWorkers = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[ols] ", log.LstdFlags)
	}
	return &Client{
		baseURL:           cfg.BaseURL,
		ontologyID:        cfg.OntologyID,
		pageSize:          cfg.PageSize,
		requestDelay:      cfg.RequestDelay,
		retry:             cfg.Retry,
		maxResolveWorkers: cfg.MaxResolveWorkers,
		httpClient:        &http.Client{Timeout: cfg.Timeout},
		logger:            cfg.Logger,
	}
}

// FetchTermsPage fetches one page of the terms listing. Transient failures
// are retried per the policy; a non-retryable response or exhausted retries
// return an error, which callers must treat as fatal for the run. After a
// successful fetch the client pauses for the configured request delay so
// consecutive page requests respect the remote rate limit.
func (c *Client) FetchTermsPage(ctx context.Context, page int) (*TermsPage, error) {
	url := fmt.Sprintf("%s/ontologies/%s/terms?page=%d&size=%d", c.baseURL, c.ontologyID, page, c.pageSize)
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		body, status, err := c.get(ctx, url)
		if err == nil && status == http.StatusOK {
			var tp TermsPage
			if err := json.Unmarshal(body, &tp); err != nil {
				return nil, fmt.Errorf("failed to decode terms page %d: %w", page, err)
			}
			if err := sleepCtx(ctx, c.requestDelay); err != nil {
				return nil, err
			}
			return &tp, nil
		}
		if err == nil && !retryable(status, nil) {
			return nil, fmt.Errorf("terms page %d returned HTTP %d", page, status)
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("HTTP %d", status)
		}
		if attempt == c.retry.MaxAttempts {
			break
		}
		delay := c.retry.Delay(attempt)
		if status == http.StatusTooManyRequests {
			// Rate limited, wait longer than the plain backoff.
			delay *= 2
			c.logger.Printf("Rate limited fetching page %d, waiting %s", page, delay)
		} else {
			c.logger.Printf("Transient error fetching page %d (attempt %d/%d): %v", page, attempt, c.retry.MaxAttempts, lastErr)
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to fetch terms page %d after %d attempts: %w", page, c.retry.MaxAttempts, lastErr)
}

// ResolveParents resolves each parent reference URL to the IRIs of the
// parents it names. Work fans out over a fixed pool of at most
// MaxResolveWorkers goroutines. Each reference retries independently; one
// that exhausts its retries is reported in failed instead of aborting the
// batch. A 404 means the term has no parents and counts as resolved.
func (c *Client) ResolveParents(ctx context.Context, refs []string) (resolved map[string][]string, failed []string) {
	resolved = make(map[string][]string, len(refs))
	if len(refs) == 0 {
		return resolved, nil
	}

	workers := c.maxResolveWorkers
	if workers > len(refs) {
		workers = len(refs)
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for ref := range jobs {
				iris, err := c.fetchParentIRIs(ctx, ref)
				mu.Lock()
				if err != nil {
					failed = append(failed, ref)
				} else {
					resolved[ref] = iris
				}
				mu.Unlock()
				if err != nil {
					c.logger.Printf("Warning: dropping parent reference %s: %v", ref, err)
				}
			}
		}()
	}

feed:
	for _, ref := range refs {
		select {
		case jobs <- ref:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	sort.Strings(failed)
	return resolved, failed
}

func (c *Client) fetchParentIRIs(ctx context.Context, ref string) ([]string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		body, status, err := c.get(ctx, ref)
		switch {
		case err == nil && status == http.StatusOK:
			var page TermsPage
			if err := json.Unmarshal(body, &page); err != nil {
				return nil, fmt.Errorf("failed to decode parents response: %w", err)
			}
			iris := make([]string, 0, len(page.Embedded.Terms))
			for _, t := range page.Embedded.Terms {
				if t.IRI != "" {
					iris = append(iris, t.IRI)
				}
			}
			return iris, nil
		case err == nil && status == http.StatusNotFound:
			// Root terms have no parents link target.
			return nil, nil
		case err == nil && !retryable(status, nil):
			return nil, fmt.Errorf("parent resolution returned HTTP %d", status)
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("HTTP %d", status)
		}
		if attempt == c.retry.MaxAttempts {
			break
		}
		delay := c.retry.Delay(attempt)
		if status == http.StatusTooManyRequests {
			delay *= 2
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to resolve parents after %d attempts: %w", c.retry.MaxAttempts, lastErr)
}

// FetchOntologyVersion returns the version string the catalog reports for
// the configured ontology, or "" when the metadata carries none. Callers
// treat failures here as advisory; a version lookup never fails a run.
func (c *Client) FetchOntologyVersion(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/ontologies/%s", c.baseURL, c.ontologyID)
	body, status, err := c.get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch ontology metadata: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("ontology metadata returned HTTP %d", status)
	}
	var meta struct {
		Version string `json:"version"`
		Config  struct {
			Version string `json:"version"`
		} `json:"config"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return "", fmt.Errorf("failed to decode ontology metadata: %w", err)
	}
	if meta.Config.Version != "" {
		return meta.Config.Version, nil
	}
	return meta.Version, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
