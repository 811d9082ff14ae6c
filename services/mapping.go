package services

import (
	"strings"

	"github.com/Techinsane-official/perfumex-sub001/models"
)

// Header aliases per canonical field, in match priority order. Supplier
// sheets arrive in German, Dutch and English.
var headerAliases = []struct {
	field   string
	aliases []string
}{
	{"ean", []string{"ean", "ean13", "eancode", "gtin", "barcode", "upc"}},
	{"brand", []string{"brand", "marke", "merk", "manufacturer", "hersteller"}},
	{"product_name", []string{"product name", "productname", "productnaam", "product", "artikelname", "artikel", "title", "name", "naam", "omschrijving"}},
	{"wholesale_price", []string{"wholesale price", "wholesale", "einkaufspreis", "inkoopprijs", "nettopreis", "net price", "unit price", "ek", "preis", "prijs", "price"}},
	{"last_purchase_price", []string{"last purchase price", "letzter ek", "laatste inkoopprijs", "lpp"}},
	{"variant_size", []string{"variant size", "size", "grosse", "größe", "inhalt", "inhoud", "volume", "maat", "ml"}},
	{"currency", []string{"currency", "wahrung", "währung", "valuta"}},
	{"pack_size", []string{"pack size", "packsize", "vpe", "verpackungseinheit", "pack"}},
	{"supplier_name", []string{"supplier", "lieferant", "leverancier", "vendor"}},
	{"availability", []string{"availability", "verfugbarkeit", "verfügbarkeit", "voorraad", "stock", "lager"}},
	{"notes", []string{"notes", "bemerkung", "opmerking", "comment", "remarks"}},
}

// SuggestColumnMapping guesses a column mapping from a sheet's header row.
// Exact alias matches beat substring matches, and every header is consumed
// at most once. The caller reviews the suggestion; nothing here is final.
func SuggestColumnMapping(headers []string) models.ColumnMapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	used := make(map[int]bool)
	assign := map[string]string{}

	// exact pass
	for _, entry := range headerAliases {
		for i, h := range normalized {
			if used[i] || assign[entry.field] != "" {
				continue
			}
			for _, alias := range entry.aliases {
				if h == normalizeHeader(alias) {
					assign[entry.field] = headers[i]
					used[i] = true
					break
				}
			}
		}
	}

	// substring pass for anything still unassigned
	for _, entry := range headerAliases {
		if assign[entry.field] != "" {
			continue
		}
		for i, h := range normalized {
			if used[i] {
				continue
			}
			matched := false
			for _, alias := range entry.aliases {
				if strings.Contains(h, normalizeHeader(alias)) {
					matched = true
					break
				}
			}
			if matched {
				assign[entry.field] = headers[i]
				used[i] = true
				break
			}
		}
	}

	return models.ColumnMapping{
		Brand:             assign["brand"],
		ProductName:       assign["product_name"],
		WholesalePrice:    assign["wholesale_price"],
		VariantSize:       assign["variant_size"],
		EAN:               assign["ean"],
		Currency:          assign["currency"],
		PackSize:          assign["pack_size"],
		SupplierName:      assign["supplier_name"],
		LastPurchasePrice: assign["last_purchase_price"],
		Availability:      assign["availability"],
		Notes:             assign["notes"],
	}
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", " ")
	h = strings.ReplaceAll(h, "-", " ")
	return strings.Join(strings.Fields(h), " ")
}
