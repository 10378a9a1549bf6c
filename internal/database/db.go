package database

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

const sqliteScheme = "sqlite://"

// Connect establishes a connection to the database.
// DSNs starting with sqlite:// open a local SQLite file, everything else is treated as PostgreSQL.
func Connect(dsn string, logLevel logger.LogLevel) error {
	db, err := Open(dsn, logLevel)
	if err != nil {
		return err
	}
	DB = db

	log.Println("Database connection established")
	return nil
}

// Open opens a database without touching the global instance
func Open(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	dialector := dialectorFor(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func dialectorFor(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, sqliteScheme) {
		return sqlite.Open(strings.TrimPrefix(dsn, sqliteScheme))
	}
	return postgres.Open(dsn)
}

// Models lists every table owned by this service, in migration order
func Models() []interface{} {
	return []interface{}{
		&Order{},
		&OrderItem{},
		&OrderMerge{},
		&OrderMergeMember{},
		&DetectionSettings{},
	}
}

// AutoMigrate runs database migrations
func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate runs migrations against db
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Older schemas made the survivor unique, which blocks merging a survivor twice
	if db.Migrator().HasIndex(&OrderMerge{}, "idx_order_merges_survivor_order_id") {
		if err := db.Migrator().DropIndex(&OrderMerge{}, "idx_order_merges_survivor_order_id"); err != nil {
			return fmt.Errorf("failed to drop unique survivor index: %w", err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// InitializeDefaults creates default records if they don't exist
func InitializeDefaults(defaults *DetectionSettings) error {
	log.Println("Initializing default database records...")

	settings, err := GetOrCreateDetectionSettings(DB, defaults)
	if err != nil {
		return fmt.Errorf("failed to initialize detection settings: %w", err)
	}

	log.Printf("Detection settings: sibling window %ds, follow-up window %ds, flag siblings %t",
		settings.SiblingWindowSeconds, settings.FollowUpWindowSeconds, settings.FlagSiblings)
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
