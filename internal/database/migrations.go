package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/traces"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationCoerceUnknownCategories = "2026-10-01_coerce_unknown_categories"
	migrationTrimEntityURLs          = "2026-10-01_trim_entity_urls"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationCoerceUnknownCategories, apply: coerceUnknownCategories},
		{name: migrationTrimEntityURLs, apply: trimEntityURLs},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// coerceUnknownCategories folds rows written before the category set was closed
// into the "other" bucket.
func coerceUnknownCategories(db *gorm.DB) error {
	known := make([]string, 0, len(traces.Categories))
	for _, category := range traces.Categories {
		known = append(known, string(category))
	}
	return db.Model(&traces.Trace{}).
		Where("category NOT IN ?", known).
		Update("category", string(traces.CategoryOther)).Error
}

// trimmedEntityURL strips the ASCII whitespace strings.TrimSpace removes at write time.
const trimmedEntityURL = "trim(entity_url, ' ' || char(9) || char(10) || char(11) || char(12) || char(13))"

func trimEntityURLs(db *gorm.DB) error {
	return db.Model(&traces.Trace{}).
		Where("entity_url <> " + trimmedEntityURL).
		Update("entity_url", gorm.Expr(trimmedEntityURL)).Error
}
