package database

import (
	"github.com/justsurfingit/jobtrackai/internal/config"
	"github.com/justsurfingit/jobtrackai/internal/logger"
	"github.com/justsurfingit/jobtrackai/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the Postgres connection and runs migrations.
func Connect(log *logger.Logger) *gorm.DB {
	dsn := config.GetEnv("DATABASE_DSN",
		"host=localhost user=postgres password=password dbname=jobtrackai port=5432 sslmode=disable")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	log.Info("Database connection established")

	if err := Migrate(db); err != nil {
		log.Fatal("Migration failed", "error", err)
	}
	return db
}

// Migrate creates or updates the schema. Split out so tests can run it
// against an in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Job{},
		&models.Conversation{},
		&models.Message{},
		&models.JobEvent{},
		&models.User{},
		&models.ProcessedEmail{},
	)
}
