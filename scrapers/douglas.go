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

// Built-in selector fallbacks for douglas.de search results. The storefront
// ships several tile variants, so every field is tried against a chain.
var (
	douglasResultSelectors = []string{
		"div.product-tile",
		"li.product-grid-item",
		"[data-testid='product-tile']",
	}
	douglasBrandSelectors = []string{
		".top-brand",
		".product-tile__brand",
		"[data-testid='brand']",
	}
	douglasTitleSelectors = []string{
		".product-title",
		".product-tile__name",
		"[data-testid='product-name']",
		".name",
	}
	douglasPriceSelectors = []string{
		".product-price .price-row",
		".product-price__price",
		"[data-testid='price']",
		".price",
	}
	douglasLinkSelectors = []string{
		"a.product-tile__main-link",
		"a[href]",
	}
	douglasShippingSelectors = []string{
		".shipping-info",
		".delivery-info",
	}
	douglasSoldOutSelectors = ".sold-out, .product-tile__sold-out, [data-testid='sold-out']"
)

// DouglasScraper extracts listings from douglas.de search results.
type DouglasScraper struct {
	baseScraper
}

// NewDouglasScraper builds the douglas.de scraper for the given source row.
func NewDouglasScraper(source models.ScrapingSource, deps Deps) SourceScraper {
	return &DouglasScraper{baseScraper: newBase(source, deps)}
}

// HasAntiBotProtection reports false: douglas.de serves search results
// without bot challenges.
func (d *DouglasScraper) HasAntiBotProtection() bool { return false }

// SearchProducts fetches the search results page and extracts every tile
// that yields at least a title and a price.
func (d *DouglasScraper) SearchProducts(ctx context.Context, term string) ([]models.Listing, error) {
	searchURL := fmt.Sprintf("%s/de/search?query=%s",
		strings.TrimRight(d.source.BaseURL, "/"), url.QueryEscape(term))

	doc, err := d.fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	tiles := findResults(doc, selectorChain(d.overrides.Results, douglasResultSelectors))
	if tiles == nil {
		d.logger.Debug("no result tiles on page",
			zap.String("source", d.source.Slug),
			zap.String("term", term),
		)
		return nil, nil
	}

	var listings []models.Listing
	tiles.Each(func(_ int, tile *goquery.Selection) {
		if listing, ok := d.extractListing(term, tile); ok {
			listings = append(listings, listing)
		}
	})
	return listings, nil
}

// ScrapeProduct returns the best matching listing for the term.
func (d *DouglasScraper) ScrapeProduct(ctx context.Context, term string) (*models.Listing, error) {
	listings, err := d.SearchProducts(ctx, term)
	if err != nil {
		return nil, err
	}
	return bestListing(listings), nil
}

// extractListing pulls one tile apart. Missing title or price discards the
// tile alone, never the page.
func (d *DouglasScraper) extractListing(term string, tile *goquery.Selection) (models.Listing, bool) {
	title := firstText(tile, selectorChain(d.overrides.Title, douglasTitleSelectors)...)
	if title == "" {
		return models.Listing{}, false
	}
	if brand := firstText(tile, douglasBrandSelectors...); brand != "" && !strings.Contains(strings.ToLower(title), strings.ToLower(brand)) {
		title = brand + " " + title
	}

	priceText := firstText(tile, selectorChain(d.overrides.Price, douglasPriceSelectors)...)
	price := ParsePriceDE(priceText)
	if price == nil {
		return models.Listing{}, false
	}

	listing := models.Listing{
		Title:        title,
		Price:        *price,
		Currency:     "EUR",
		URL:          d.absoluteURL(firstAttr(tile, "href", selectorChain(d.overrides.Link, douglasLinkSelectors)...)),
		Merchant:     d.source.Name,
		Availability: tile.Find(douglasSoldOutSelectors).Length() == 0,
		Confidence:   MatchConfidence(term, title),
	}
	if shippingText := firstText(tile, selectorChain(d.overrides.Shipping, douglasShippingSelectors)...); shippingText != "" {
		listing.ShippingCost = ParseShippingDE(shippingText)
	}
	return listing, true
}

// findResults tries each container selector until one matches.
func findResults(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if tiles := doc.Find(sel); tiles.Length() > 0 {
			return tiles
		}
	}
	return nil
}
