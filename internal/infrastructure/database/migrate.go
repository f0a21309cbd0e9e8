package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/trackimpact/support-api/internal/infrastructure/database/entities"
)

// AutoMigrate applies the schema and seeds a demo enterprise profile outside production.
func AutoMigrate(ctx context.Context, db *gorm.DB, environment string, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&entities.Conversation{},
		&entities.Message{},
		&entities.SubmissionRequest{},
		&entities.EnterpriseProfile{},
	); err != nil {
		return err
	}

	if environment == "production" {
		return nil
	}

	var count int64
	if err := db.WithContext(ctx).Model(&entities.EnterpriseProfile{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Debug().Int64("rows", count).Msg("enterprise profiles already seeded")
		return nil
	}

	lastReport := time.Now().UTC().AddDate(0, -1, 0)
	demo := entities.EnterpriseProfile{
		ID:               "ent_demo",
		Name:             "Atelier Démo SAS",
		Sector:           "Industrie",
		Size:             "PME",
		ComplianceScore:  72,
		PendingDocuments: 3,
		KPICount:         12,
		LastReportAt:     &lastReport,
	}
	if err := db.WithContext(ctx).Create(&demo).Error; err != nil {
		return err
	}
	log.Info().Str("enterprise_id", demo.ID).Msg("seeded demo enterprise profile")
	return nil
}
