package scrapers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Techinsane-official/perfumex-sub001/metrics"
	"github.com/Techinsane-official/perfumex-sub001/models"
)

// ErrBlocked marks a bot-challenge response. Callers treat it as a clean
// "no results from this source", never as product-not-found or as a
// network failure.
var ErrBlocked = errors.New("blocked by anti-bot protection")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// SourceScraper is the capability contract every storefront implements.
type SourceScraper interface {
	// SearchProducts runs a search and extracts every usable listing from
	// the results page.
	SearchProducts(ctx context.Context, term string) ([]models.Listing, error)
	// ScrapeProduct returns the best matching listing for the term, or
	// (nil, nil) when the source has nothing usable.
	ScrapeProduct(ctx context.Context, term string) (*models.Listing, error)
	// HasAntiBotProtection reports whether the source is known to deploy
	// bot challenges.
	HasAntiBotProtection() bool
}

// Deps are the shared collaborators handed to every scraper.
type Deps struct {
	Client  *http.Client
	Metrics *metrics.Registry
	Logger  *zap.Logger
}

// Constructor builds a scraper from its source configuration.
type Constructor func(source models.ScrapingSource, deps Deps) SourceScraper

// Registry maps source slugs onto scraper constructors. Dispatch happens
// by slug, so adding a storefront is one Register call, not a type switch.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	deps         Deps
}

// NewRegistry creates a Registry with the built-in storefronts registered.
func NewRegistry(deps Deps) *Registry {
	if deps.Client == nil {
		deps.Client = &http.Client{Timeout: 20 * time.Second}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = zap.L()
	}
	r := &Registry{
		constructors: map[string]Constructor{},
		deps:         deps,
	}
	r.Register("douglas", NewDouglasScraper)
	r.Register("amazon", NewAmazonScraper)
	return r
}

// Register adds or replaces the constructor for a slug.
func (r *Registry) Register(slug string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[strings.ToLower(slug)] = c
}

// For builds the scraper configured for the given source.
func (r *Registry) For(source models.ScrapingSource) (SourceScraper, error) {
	r.mu.RLock()
	c, ok := r.constructors[strings.ToLower(source.Slug)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no scraper registered for source %q", source.Slug)
	}
	return c(source, r.deps), nil
}

// SelectorOverrides are optional per-source CSS selectors from the source's
// configuration row. They are tried before the built-in fallback chains.
type SelectorOverrides struct {
	Results  []string `json:"results,omitempty"`
	Title    []string `json:"title,omitempty"`
	Price    []string `json:"price,omitempty"`
	Link     []string `json:"link,omitempty"`
	Shipping []string `json:"shipping,omitempty"`
}

// baseScraper carries the plumbing all storefront scrapers share: the rate
// limiter, the HTTP client and tolerant document fetching.
type baseScraper struct {
	source    models.ScrapingSource
	client    *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
	metrics   *metrics.Registry
	overrides SelectorOverrides
}

func newBase(source models.ScrapingSource, deps Deps) baseScraper {
	delay := time.Duration(source.RateLimitMs) * time.Millisecond
	if delay <= 0 {
		delay = time.Second
	}
	b := baseScraper{
		source:  source,
		client:  deps.Client,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
	if source.SelectorConfig != "" {
		if err := json.Unmarshal([]byte(source.SelectorConfig), &b.overrides); err != nil {
			b.logger.Warn("ignoring malformed selector config",
				zap.String("source", source.Slug),
				zap.Error(err),
			)
		}
	}
	return b
}

// fetch waits out the source's rate limit, performs the request and parses
// the response. 403/429 responses surface as ErrBlocked.
func (b *baseScraper) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.5")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		b.metrics.AntiBotDetections.Inc()
		return nil, ErrBlocked
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

// absoluteURL resolves a scraped href against the source's base URL.
func (b *baseScraper) absoluteURL(href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	base, err := url.Parse(b.source.BaseURL)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// selectorChain prepends configured overrides to the built-in fallbacks.
func selectorChain(overrides, builtin []string) []string {
	if len(overrides) == 0 {
		return builtin
	}
	return append(append([]string{}, overrides...), builtin...)
}

// bestListing picks the listing with the highest term confidence; on equal
// confidence the earlier listing wins.
func bestListing(listings []models.Listing) *models.Listing {
	if len(listings) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(listings); i++ {
		if listings[i].Confidence > listings[best].Confidence {
			best = i
		}
	}
	return &listings[best]
}
