package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/traces"
	sqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func TestApplyMigrationsRepairsLegacyTraces(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&traces.Trace{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	legacy := []traces.Trace{
		{ID: "trace-1", OwnerID: "user-1", EntityURL: "\t https://shop.example\r\n", ProductName: "Lamp", Category: "groceries", Price: decimal.NewFromInt(5), Currency: traces.CurrencyUSD, Outcome: traces.OutcomeDelivered, CreatedAt: time.Unix(1700000000, 0).UTC()},
		{ID: "trace-2", OwnerID: "user-1", EntityURL: "https://kept.example", ProductName: "Phone", Category: traces.CategoryElectronics, Price: decimal.NewFromInt(9), Currency: traces.CurrencyUSD, Outcome: traces.OutcomeDelivered, CreatedAt: time.Unix(1700000100, 0).UTC()},
	}
	if err := database.Create(&legacy).Error; err != nil {
		testContext.Fatalf("failed to insert traces: %v", err)
	}

	core, logs := observer.New(zapcore.InfoLevel)
	if err := applyMigrations(database, zap.New(core)); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var repaired traces.Trace
	if err := database.Where("id = ?", "trace-1").Take(&repaired).Error; err != nil {
		testContext.Fatalf("failed to reload trace: %v", err)
	}
	if repaired.Category != traces.CategoryOther {
		testContext.Fatalf("expected unknown category to become other, got %q", repaired.Category)
	}
	if repaired.EntityURL != "https://shop.example" {
		testContext.Fatalf("expected trimmed entity url, got %q", repaired.EntityURL)
	}

	var untouched traces.Trace
	if err := database.Where("id = ?", "trace-2").Take(&untouched).Error; err != nil {
		testContext.Fatalf("failed to reload trace: %v", err)
	}
	if untouched.Category != traces.CategoryElectronics {
		testContext.Fatalf("expected known category to be kept, got %q", untouched.Category)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationCoerceUnknownCategories).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
	if logs.FilterMessage("database migration applied").Len() != 2 {
		testContext.Fatalf("expected two applied migrations to be logged")
	}

	if err := applyMigrations(database, zap.New(core)); err != nil {
		testContext.Fatalf("second run failed: %v", err)
	}
	if logs.FilterMessage("database migration applied").Len() != 2 {
		testContext.Fatalf("expected recorded migrations to be skipped")
	}
}

func TestOpenSQLiteCreatesSchema(testContext *testing.T) {
	if _, err := OpenSQLite("", nil); err == nil {
		testContext.Fatalf("expected empty path to be rejected")
	}

	database, err := OpenSQLite(filepath.Join(testContext.TempDir(), "trustrace.db"), zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	for _, table := range []string{"traces", "users", "db_migrations"} {
		if !database.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s", table)
		}
	}
}
