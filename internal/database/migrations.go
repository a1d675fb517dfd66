package database

import (
	"gorm.io/gorm"

	"github.com/insighthub/server/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Company{},
		&models.NewsItem{},
		&models.UserPreference{},
		&models.NotificationSettings{},
		&models.Notification{},
		&models.TrendMarker{},
		&models.CompetitorComparison{},
		&models.CacheEntry{},
	)
}

// SeedData populates the default tracked companies so a fresh install has
// something to subscribe to.
func SeedData(db *gorm.DB) error {
	companies := []models.Company{
		{Name: "OpenAI", Website: "https://openai.com"},
		{Name: "Anthropic", Website: "https://anthropic.com"},
		{Name: "Google DeepMind", Website: "https://deepmind.google"},
		{Name: "Meta AI", Website: "https://ai.meta.com"},
		{Name: "Mistral AI", Website: "https://mistral.ai"},
		{Name: "Cohere", Website: "https://cohere.com"},
		{Name: "Hugging Face", Website: "https://huggingface.co"},
		{Name: "Stability AI", Website: "https://stability.ai"},
		{Name: "Perplexity AI", Website: "https://perplexity.ai"},
	}

	for _, company := range companies {
		if err := db.Where(models.Company{Name: company.Name}).
			Attrs(company).
			FirstOrCreate(&models.Company{}).Error; err != nil {
			return err
		}
	}

	return nil
}
