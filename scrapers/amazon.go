package scrapers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Techinsane-official/perfumex-sub001/models"
)

// Built-in selector fallbacks for amazon.de search results.
var (
	amazonResultSelectors = []string{
		"div[data-component-type='s-search-result']",
		"div.s-result-item[data-asin]",
	}
	amazonTitleSelectors = []string{
		"h2 a span",
		"h2 span",
		"span.a-text-normal",
	}
	amazonPriceSelectors = []string{
		"span.a-price > span.a-offscreen",
		".a-price .a-offscreen",
	}
	amazonLinkSelectors = []string{
		"h2 a",
		"a.a-link-normal",
	}
	amazonShippingSelectors = []string{
		"[aria-label*='Lieferung']",
		".udm-primary-delivery-message",
		".s-shipping-text",
	}
)

// AmazonScraper extracts listings from amazon.de search results and backs
// off cleanly when a captcha interstitial appears.
type AmazonScraper struct {
	baseScraper
}

// NewAmazonScraper builds the amazon.de scraper for the given source row.
func NewAmazonScraper(source models.ScrapingSource, deps Deps) SourceScraper {
	return &AmazonScraper{baseScraper: newBase(source, deps)}
}

// HasAntiBotProtection reports true: amazon.de serves captcha challenges
// to automated traffic.
func (a *AmazonScraper) HasAntiBotProtection() bool { return true }

// SearchProducts fetches the search results page. A bot challenge yields
// no listings and ErrBlocked, so callers never mistake it for an empty
// catalog.
func (a *AmazonScraper) SearchProducts(ctx context.Context, term string) ([]models.Listing, error) {
	searchURL := fmt.Sprintf("%s/s?k=%s",
		strings.TrimRight(a.source.BaseURL, "/"), url.QueryEscape(term))

	doc, err := a.fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	if isChallengePage(doc) {
		a.metrics.AntiBotDetections.Inc()
		a.logger.Warn("bot challenge served instead of results",
			zap.String("source", a.source.Slug),
			zap.String("term", term),
		)
		return nil, ErrBlocked
	}

	tiles := findResults(doc, selectorChain(a.overrides.Results, amazonResultSelectors))
	if tiles == nil {
		return nil, nil
	}

	var listings []models.Listing
	tiles.Each(func(_ int, tile *goquery.Selection) {
		// sponsored placements are ads, not price signals
		if tile.Find("[data-component-type='sp-sponsored-result']").Length() > 0 {
			return
		}
		if listing, ok := a.extractListing(term, tile); ok {
			listings = append(listings, listing)
		}
	})
	return listings, nil
}

// ScrapeProduct returns the best matching listing for the term.
func (a *AmazonScraper) ScrapeProduct(ctx context.Context, term string) (*models.Listing, error) {
	listings, err := a.SearchProducts(ctx, term)
	if err != nil {
		return nil, err
	}
	return bestListing(listings), nil
}

func (a *AmazonScraper) extractListing(term string, tile *goquery.Selection) (models.Listing, bool) {
	title := firstText(tile, selectorChain(a.overrides.Title, amazonTitleSelectors)...)
	if title == "" {
		return models.Listing{}, false
	}

	price := a.extractPrice(tile)
	if price == nil {
		return models.Listing{}, false
	}

	listing := models.Listing{
		Title:        title,
		Price:        *price,
		Currency:     "EUR",
		URL:          a.absoluteURL(firstAttr(tile, "href", selectorChain(a.overrides.Link, amazonLinkSelectors)...)),
		Merchant:     a.source.Name,
		Availability: !strings.Contains(tile.Text(), "Derzeit nicht verfügbar"),
		Confidence:   MatchConfidence(term, title),
	}
	if shippingText := firstText(tile, selectorChain(a.overrides.Shipping, amazonShippingSelectors)...); shippingText != "" {
		listing.ShippingCost = ParseShippingDE(shippingText)
	}
	return listing, true
}

// extractPrice prefers the full a-offscreen amount and falls back to the
// split whole/fraction spans.
func (a *AmazonScraper) extractPrice(tile *goquery.Selection) *float64 {
	if priceText := firstText(tile, selectorChain(a.overrides.Price, amazonPriceSelectors)...); priceText != "" {
		if p := ParsePriceDE(priceText); p != nil {
			return p
		}
	}
	whole := strings.Trim(firstText(tile, "span.a-price-whole"), ".,")
	if whole == "" {
		return nil
	}
	frac := firstText(tile, "span.a-price-fraction")
	if frac == "" {
		frac = "00"
	}
	return ParsePriceDE(whole + "," + frac)
}

// isChallengePage recognizes the amazon.de captcha interstitial.
func isChallengePage(doc *goquery.Document) bool {
	if doc.Find("form[action*='validateCaptcha']").Length() > 0 {
		return true
	}
	if doc.Find("#captchacharacters").Length() > 0 {
		return true
	}
	title := strings.ToLower(doc.Find("title").Text())
	return strings.Contains(title, "robot check")
}
