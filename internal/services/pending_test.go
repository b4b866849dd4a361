package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/justsurfingit/jobtrackai/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingRoundTrip(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	ops := []*PendingOperation{
		{Kind: PendingNewJob, Job: &PendingJobFields{CompanyName: "Acme", Status: "applied"}},
		{Kind: PendingSelection, Status: "interview", Candidates: []JobCandidate{
			{ID: id1, JobTitle: "Platform Engineer", CompanyName: "Globex"},
			{ID: id2, JobTitle: "Data Analyst", CompanyName: "Globex"},
		}},
		{Kind: PendingBulkUpdate, Status: "rejected", Count: 2, JobIDs: []uuid.UUID{id1, id2}},
		{Kind: PendingDeletion, JobIDs: []uuid.UUID{id1}, Titles: []string{"Platform Engineer at Globex"}, Company: "Globex"},
	}

	for _, op := range ops {
		t.Run(string(op.Kind), func(t *testing.T) {
			meta := encodePending(map[string]any{"other": "survives"}, op)
			assert.Equal(t, "survives", meta["other"])

			got := decodePending(meta)
			require.NotNil(t, got)
			assert.Equal(t, op, got)
		})
	}
}

func TestPendingSlotIsSingle(t *testing.T) {
	meta := encodePending(nil, &PendingOperation{Kind: PendingNewJob, Job: &PendingJobFields{CompanyName: "Acme"}})
	meta = encodePending(meta, &PendingOperation{Kind: PendingBulkUpdate, Status: "rejected", Count: 3})

	got := decodePending(meta)
	require.NotNil(t, got)
	assert.Equal(t, PendingBulkUpdate, got.Kind)
	assert.Nil(t, got.Job)
}

func TestPendingClear(t *testing.T) {
	meta := encodePending(nil, &PendingOperation{Kind: PendingDeletion, Titles: []string{"x"}})
	meta = encodePending(meta, nil)
	assert.Nil(t, decodePending(meta))
}

func TestDecodePendingToleratesDrift(t *testing.T) {
	assert.Nil(t, decodePending(nil))
	assert.Nil(t, decodePending(map[string]any{}))
	assert.Nil(t, decodePending(map[string]any{metadataPendingKey: nil}))
	assert.Nil(t, decodePending(map[string]any{metadataPendingKey: "not a map"}))
	assert.Nil(t, decodePending(map[string]any{metadataPendingKey: map[string]any{"kind": "bogus_kind"}}))
}

func TestMergeExtractionNeverOverwrites(t *testing.T) {
	known := &PendingJobFields{CompanyName: "Acme", Status: "applied"}
	merged := mergeExtraction(known, JobExtraction{
		JobTitle:    "Backend Engineer",
		CompanyName: "SomeoneElse",
		Status:      statusPtr(models.StatusInterview),
	})

	assert.Equal(t, "Backend Engineer", merged.JobTitle)
	assert.Equal(t, "Acme", merged.CompanyName)
	assert.Equal(t, "applied", merged.Status)
	// Input is untouched.
	assert.Empty(t, known.JobTitle)
}

func TestPendingJobFieldsStatusDefaults(t *testing.T) {
	p := &PendingJobFields{}
	assert.Equal(t, models.StatusApplied, p.status())

	p.Status = "interview"
	assert.Equal(t, models.StatusInterview, p.status())

	p.Status = "nonsense"
	assert.Equal(t, models.StatusApplied, p.status())

	assert.Equal(t, []string{"job_title", "company_name"}, p.missingRequired())
}
