package services

import (
	"context"
	"testing"

	"github.com/justsurfingit/jobtrackai/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		message string
		want    *models.JobStatus
	}{
		{"exact value", "rejected", "", statusPtr(models.StatusRejected)},
		{"substring variant", "currently interviewing", "", statusPtr(models.StatusInterview)},
		{"specific beats substring", "technical interview", "", statusPtr(models.StatusTechnical)},
		{"final round", "final round", "", statusPtr(models.StatusFinal)},
		{"phone screen maps to interview", "phone screen", "", statusPtr(models.StatusInterview)},
		{"recruiter call maps to screening", "recruiter call", "", statusPtr(models.StatusScreening)},
		{"declined maps to rejected", "they declined", "", statusPtr(models.StatusRejected)},
		{"withdrew", "withdrew", "", statusPtr(models.StatusWithdrawn)},
		{"message applied hint wins", "interview", "I applied to Acme today", statusPtr(models.StatusApplied)},
		{"link with no contrary signal", "", "check https://jobs.acme.com/1", statusPtr(models.StatusApplied)},
		{"link with rejected stays rejected", "rejected", "https://jobs.acme.com/1 rejected me", statusPtr(models.StatusRejected)},
		{"nothing resolvable", "", "tell me about my jobs", nil},
		{"garbage status", "flibbertigibbet", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeStatus(tt.raw, tt.message)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestExtractParsesWrappedJSON(t *testing.T) {
	oracle := defaultOracle()
	oracle.extractionJSON = "Here you go:\n" +
		`{"job_title": "Backend Engineer", "company_name": "Acme", "job_link": null, "job_description": null, "status": "applied"}` +
		"\nHope that helps!"
	svc := NewExtractionService(oracle, testLogger())

	ex := svc.Extract(context.Background(), "I applied to Backend Engineer at Acme")
	assert.Equal(t, "Backend Engineer", ex.JobTitle)
	assert.Equal(t, "Acme", ex.CompanyName)
	assert.Empty(t, ex.JobLink)
	require.NotNil(t, ex.Status)
	assert.Equal(t, models.StatusApplied, *ex.Status)
	assert.InDelta(t, 0.8, ex.Confidence, 0.001)
}

func TestExtractNormalizesLooseStatus(t *testing.T) {
	oracle := defaultOracle()
	oracle.extractionJSON = `{"job_title": null, "company_name": "Globex", "job_link": null, "job_description": null, "status": "phone screen"}`
	svc := NewExtractionService(oracle, testLogger())

	ex := svc.Extract(context.Background(), "Globex moved me to a phone screen")
	require.NotNil(t, ex.Status)
	assert.Equal(t, models.StatusInterview, *ex.Status)
}

func TestExtractDegradesOnOracleFailure(t *testing.T) {
	svc := NewExtractionService(&fakeOracle{}, testLogger())

	ex := svc.Extract(context.Background(), "I applied via https://jobs.acme.com/1")
	assert.Empty(t, ex.JobTitle)
	assert.Empty(t, ex.CompanyName)
	assert.Zero(t, ex.Confidence)
	// Message hints still resolve a status without the oracle.
	require.NotNil(t, ex.Status)
	assert.Equal(t, models.StatusApplied, *ex.Status)
}

func TestExtractDegradesOnMalformedJSON(t *testing.T) {
	oracle := defaultOracle()
	oracle.extractionJSON = "definitely not json"
	svc := NewExtractionService(oracle, testLogger())

	ex := svc.Extract(context.Background(), "some message")
	assert.Empty(t, ex.JobTitle)
	assert.Zero(t, ex.Confidence)
	assert.Nil(t, ex.Status)
}

func TestExtractRejectsWrongShape(t *testing.T) {
	oracle := defaultOracle()
	oracle.extractionJSON = `{"job_title": 42, "company_name": [], "status": null}`
	svc := NewExtractionService(oracle, testLogger())

	ex := svc.Extract(context.Background(), "some message")
	assert.Empty(t, ex.JobTitle)
	assert.Empty(t, ex.CompanyName)
	assert.Zero(t, ex.Confidence)
}

func TestMissingRequired(t *testing.T) {
	ex := JobExtraction{CompanyName: "Acme"}
	assert.False(t, ex.HasRequired())
	assert.Equal(t, []string{"job_title"}, ex.MissingRequired())

	ex.JobTitle = "Engineer"
	assert.True(t, ex.HasRequired())
	assert.Empty(t, ex.MissingRequired())
}
