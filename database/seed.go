package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Techinsane-official/perfumex-sub001/models"
)

// SeedScrapingSources inserts the default storefront configurations when the
// sources table is empty. Existing rows are never touched, so operator
// tuning survives restarts.
func SeedScrapingSources(db *gorm.DB, logger *zap.Logger) error {
	var count int64
	if err := db.Model(&models.ScrapingSource{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count scraping sources: %w", err)
	}
	if count > 0 {
		return nil
	}

	defaults := []models.ScrapingSource{
		{
			Name:        "Douglas",
			Slug:        "douglas",
			BaseURL:     "https://www.douglas.de",
			Country:     "DE",
			IsActive:    true,
			Priority:    1,
			RateLimitMs: 1500,
		},
		{
			Name:        "Amazon",
			Slug:        "amazon",
			BaseURL:     "https://www.amazon.de",
			Country:     "DE",
			IsActive:    true,
			Priority:    2,
			RateLimitMs: 3000,
		},
	}

	if err := db.Create(&defaults).Error; err != nil {
		return fmt.Errorf("seed scraping sources: %w", err)
	}
	logger.Info("Seeded default scraping sources", zap.Int("count", len(defaults)))
	return nil
}
