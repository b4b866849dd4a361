package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/justsurfingit/jobtrackai/internal/database"
	"github.com/justsurfingit/jobtrackai/internal/logger"
	"github.com/justsurfingit/jobtrackai/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fakeOracle routes by system prompt. An empty field means "fail that
// category", which exercises the deterministic degradation paths.
type fakeOracle struct {
	intentLine     string
	unsafeLine     string
	relatedLine    string
	emotionLine    string
	extractionJSON string
	composerReply  string
	emailJSON      string
	emailPickLine  string
}

// defaultOracle passes every gate and fails intent, extraction and
// composition, so keyword rules and fallback templates drive the turn.
func defaultOracle() *fakeOracle {
	return &fakeOracle{
		unsafeLine:  "SAFE|0.9|",
		relatedLine: "JOB|0.9",
		emotionLine: "NEUTRAL|0.9",
	}
}

func (f *fakeOracle) Complete(ctx context.Context, systemPrompt, userMessage string, wantJSON bool) (string, error) {
	pick := func(v string) (string, error) {
		if v == "" {
			return "", errors.New("oracle unavailable")
		}
		return v, nil
	}
	switch {
	case strings.Contains(systemPrompt, "safety classifier"):
		return pick(f.unsafeLine)
	case strings.Contains(systemPrompt, "about job applications/tracking"):
		return pick(f.relatedLine)
	case strings.Contains(systemPrompt, "emotional state"):
		return pick(f.emotionLine)
	case strings.Contains(systemPrompt, "You classify user messages"):
		return pick(f.intentLine)
	case strings.Contains(systemPrompt, "You extract job information"):
		return pick(f.extractionJSON)
	case strings.Contains(systemPrompt, "analyzing a recruiting email"):
		return pick(f.emailJSON)
	case strings.Contains(systemPrompt, "several job applications"):
		return pick(f.emailPickLine)
	default:
		return pick(f.composerReply)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func seedJob(t *testing.T, db *gorm.DB, userID uuid.UUID, title, company, status string, added time.Time) *models.Job {
	t.Helper()
	job := &models.Job{
		UserID:      userID,
		JobTitle:    title,
		CompanyName: company,
		Status:      status,
		DateAdded:   added,
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

func testLogger() *logger.Logger {
	return logger.NewNop()
}
