package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Techinsane-official/perfumex-sub001/services"
)

func TestSuggestColumnMapping_EnglishHeaders(t *testing.T) {
	headers := []string{"Brand", "Product Name", "Wholesale Price", "Size", "EAN", "Currency"}

	m := services.SuggestColumnMapping(headers)

	assert.Equal(t, "Brand", m.Brand)
	assert.Equal(t, "Product Name", m.ProductName)
	assert.Equal(t, "Wholesale Price", m.WholesalePrice)
	assert.Equal(t, "Size", m.VariantSize)
	assert.Equal(t, "EAN", m.EAN)
	assert.Equal(t, "Currency", m.Currency)
	assert.Equal(t, "", m.Notes)
}

func TestSuggestColumnMapping_DutchAndGermanHeaders(t *testing.T) {
	headers := []string{"Merk", "Artikelname", "Inkoopprijs", "Inhoud", "Voorraad", "Opmerking"}

	m := services.SuggestColumnMapping(headers)

	assert.Equal(t, "Merk", m.Brand)
	assert.Equal(t, "Artikelname", m.ProductName)
	assert.Equal(t, "Inkoopprijs", m.WholesalePrice)
	assert.Equal(t, "Inhoud", m.VariantSize)
	assert.Equal(t, "Voorraad", m.Availability)
	assert.Equal(t, "Opmerking", m.Notes)
}

func TestSuggestColumnMapping_ExactBeatsSubstring(t *testing.T) {
	// "Price" matches wholesale_price exactly; "Last Purchase Price" would
	// also contain "price" but must land on last_purchase_price.
	headers := []string{"Price", "Last Purchase Price"}

	m := services.SuggestColumnMapping(headers)

	assert.Equal(t, "Price", m.WholesalePrice)
	assert.Equal(t, "Last Purchase Price", m.LastPurchasePrice)
}

func TestSuggestColumnMapping_HeaderConsumedOnce(t *testing.T) {
	// one EAN column must not be claimed by a second field via substring
	headers := []string{"EAN-Code", "Naam"}

	m := services.SuggestColumnMapping(headers)

	assert.Equal(t, "EAN-Code", m.EAN)
	assert.Equal(t, "Naam", m.ProductName)
	assert.NotEqual(t, m.EAN, m.ProductName)
}

func TestSuggestColumnMapping_UnderscoresAndCaseIgnored(t *testing.T) {
	headers := []string{"WHOLESALE_PRICE", "product_name"}

	m := services.SuggestColumnMapping(headers)

	assert.Equal(t, "WHOLESALE_PRICE", m.WholesalePrice)
	assert.Equal(t, "product_name", m.ProductName)
}

func TestSuggestColumnMapping_NoMatches(t *testing.T) {
	m := services.SuggestColumnMapping([]string{"Kolom A", "Kolom B"})

	assert.Equal(t, "", m.Brand)
	assert.Equal(t, "", m.ProductName)
	assert.Equal(t, "", m.WholesalePrice)
}
