package services

import (
	"fmt"
	"strings"

	"github.com/Techinsane-official/perfumex-sub001/models"
)

// NormalizeRow maps one raw spreadsheet row onto a canonical product record
// using the supplied column mapping. Brand, product name and a parseable
// wholesale price are hard requirements; missing any of them yields a nil
// record plus a matching error. A malformed EAN only warns. The function
// never panics outward, so one bad row cannot take down its batch.
func NormalizeRow(raw map[string]string, mapping models.ColumnMapping, rowNum int) (record *models.SupplierProduct, errs []models.RowError, warnings []models.RowWarning) {
	defer func() {
		if r := recover(); r != nil {
			record = nil
			errs = append(errs, models.RowError{
				Row:     rowNum,
				Field:   "general",
				Message: fmt.Sprintf("unexpected error while normalizing row: %v", r),
			})
		}
	}()

	get := func(column string) string {
		if column == "" {
			return ""
		}
		return strings.TrimSpace(raw[column])
	}

	brand := CleanString(get(mapping.Brand), CleanOptions{})
	if brand == "" {
		errs = append(errs, models.RowError{
			Row:     rowNum,
			Field:   "brand",
			Message: "brand is required",
		})
	}

	productName := CleanString(get(mapping.ProductName), CleanOptions{})
	if productName == "" {
		errs = append(errs, models.RowError{
			Row:     rowNum,
			Field:   "product_name",
			Message: "product name is required",
		})
	}

	rawPrice := get(mapping.WholesalePrice)
	price := ParsePrice(rawPrice)
	if price == nil {
		errs = append(errs, models.RowError{
			Row:     rowNum,
			Field:   "wholesale_price",
			Value:   rawPrice,
			Message: "wholesale price could not be parsed",
		})
	}

	rawEAN := get(mapping.EAN)
	ean := CleanEAN(rawEAN)
	if rawEAN != "" {
		digits := nonDigits.ReplaceAllString(rawEAN, "")
		if len(digits) < 8 || len(digits) > 14 {
			warnings = append(warnings, models.RowWarning{
				Row:     rowNum,
				Field:   "ean",
				Value:   rawEAN,
				Message: "EAN does not look like a valid 8-14 digit code",
			})
		}
	}

	if len(errs) > 0 {
		return nil, errs, warnings
	}

	currency := NormalizeCurrency(get(mapping.Currency))
	if currency == "" {
		currency = "EUR"
	}

	rec := &models.SupplierProduct{
		Brand:          brand,
		ProductName:    productName,
		VariantSize:    NormalizeSize(get(mapping.VariantSize)),
		EAN:            ean,
		WholesalePrice: *price,
		Currency:       currency,
		PackSize:       ParsePackSize(get(mapping.PackSize)),
		SupplierName:   get(mapping.SupplierName),
		Availability:   ParseAvailability(get(mapping.Availability)),
		Notes:          get(mapping.Notes),
	}
	if lpp := ParsePrice(get(mapping.LastPurchasePrice)); lpp != nil {
		rec.LastPurchasePrice = lpp
	}

	return rec, errs, warnings
}
