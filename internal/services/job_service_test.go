package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/justsurfingit/jobtrackai/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDoesNotDeduplicate(t *testing.T) {
	svc := NewJobService(newTestDB(t), testLogger())
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.Create(ctx, &models.Job{UserID: userID, JobTitle: "Engineer", CompanyName: "Acme"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, &models.Job{UserID: userID, JobTitle: "Engineer", CompanyName: "Acme"})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, string(models.StatusApplied), first.Status)

	jobs, err := svc.List(ctx, userID, nil, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestCreateRequiresTitleAndCompany(t *testing.T) {
	svc := NewJobService(newTestDB(t), testLogger())

	_, err := svc.Create(context.Background(), &models.Job{UserID: uuid.New(), CompanyName: "Acme"})
	assert.Error(t, err)
}

func TestSearchIsCaseInsensitiveSubstring(t *testing.T) {
	db := newTestDB(t)
	svc := NewJobService(db, testLogger())
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	seedJob(t, db, userID, "Backend Engineer", "Acme Corp", "applied", now.Add(-2*time.Hour))
	seedJob(t, db, userID, "Data Analyst", "Globex", "interview", now.Add(-time.Hour))
	seedJob(t, db, uuid.New(), "Backend Engineer", "Acme Corp", "applied", now)

	jobs, err := svc.Search(ctx, userID, JobFilter{CompanyName: "acme"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Acme Corp", jobs[0].CompanyName)

	jobs, err = svc.Search(ctx, userID, JobFilter{JobTitle: "analyst"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Data Analyst", jobs[0].JobTitle)
}

func TestSearchOrdersNewestFirst(t *testing.T) {
	db := newTestDB(t)
	svc := NewJobService(db, testLogger())
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	seedJob(t, db, userID, "Older Role", "Globex", "applied", now.Add(-48*time.Hour))
	seedJob(t, db, userID, "Newer Role", "Globex", "applied", now.Add(-time.Hour))

	jobs, err := svc.Search(ctx, userID, JobFilter{CompanyName: "globex"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Newer Role", jobs[0].JobTitle)
	assert.Equal(t, "Older Role", jobs[1].JobTitle)
}

func TestUpdateStatusAdvancesLastUpdated(t *testing.T) {
	db := newTestDB(t)
	svc := NewJobService(db, testLogger())
	ctx := context.Background()
	userID := uuid.New()
	added := time.Now().UTC().Add(-24 * time.Hour)

	target := seedJob(t, db, userID, "Engineer", "Acme", "applied", added)
	other := seedJob(t, db, userID, "Analyst", "Globex", "applied", added)

	updated, err := svc.UpdateStatus(ctx, target.ID, userID, models.StatusRejected)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, string(models.StatusRejected), updated.Status)
	assert.True(t, updated.LastUpdated.After(added))

	// The other record is untouched.
	unchanged, err := svc.GetByID(ctx, other.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusApplied), unchanged.Status)
}

func TestUpdateStatusMissReturnsNil(t *testing.T) {
	svc := NewJobService(newTestDB(t), testLogger())

	job, err := svc.UpdateStatus(context.Background(), uuid.New(), uuid.New(), models.StatusOffer)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestUpdateStatusIsUserScoped(t *testing.T) {
	db := newTestDB(t)
	svc := NewJobService(db, testLogger())
	ctx := context.Background()
	owner := uuid.New()

	job := seedJob(t, db, owner, "Engineer", "Acme", "applied", time.Now().UTC())

	updated, err := svc.UpdateStatus(ctx, job.ID, uuid.New(), models.StatusRejected)
	require.NoError(t, err)
	assert.Nil(t, updated)

	kept, err := svc.GetByID(ctx, job.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusApplied), kept.Status)
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	svc := NewJobService(db, testLogger())
	ctx := context.Background()
	userID := uuid.New()

	job := seedJob(t, db, userID, "Engineer", "Acme", "applied", time.Now().UTC())

	ok, err := svc.Delete(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.True(t, ok)

	gone, err := svc.GetByID(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	ok, err = svc.Delete(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteByStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewJobService(db, testLogger())
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	seedJob(t, db, userID, "Engineer", "Acme", "rejected", now.Add(-time.Hour))
	seedJob(t, db, userID, "Analyst", "Globex", "rejected", now)
	seedJob(t, db, userID, "Designer", "Initech", "applied", now)

	count, titles, err := svc.DeleteByStatus(ctx, userID, models.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.ElementsMatch(t, []string{"Engineer at Acme", "Analyst at Globex"}, titles)

	remaining, err := svc.List(ctx, userID, nil, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Designer", remaining[0].JobTitle)
}

func TestStats(t *testing.T) {
	db := newTestDB(t)
	svc := NewJobService(db, testLogger())
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	seedJob(t, db, userID, "A", "Acme", "applied", now)
	seedJob(t, db, userID, "B", "Acme", "applied", now)
	seedJob(t, db, userID, "C", "Globex", "offer", now)
	seedJob(t, db, uuid.New(), "D", "Other", "applied", now)

	stats, err := svc.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"applied": 2, "offer": 1}, stats)
}
