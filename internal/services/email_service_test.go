package services

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/justsurfingit/jobtrackai/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"gorm.io/gorm"
)

type emailFixture struct {
	db     *gorm.DB
	oracle *fakeOracle
	svc    *EmailService
	userID uuid.UUID
}

func newEmailFixture(t *testing.T) *emailFixture {
	t.Helper()
	db := newTestDB(t)
	oracle := defaultOracle()
	jobs := NewJobService(db, testLogger())
	matcher := NewMatcherService(jobs, testLogger())
	userID := uuid.New()
	svc := NewEmailService(db, oracle, jobs, matcher, nil, userID, testLogger())
	return &emailFixture{db: db, oracle: oracle, svc: svc, userID: userID}
}

func recruitingEmail(id, subject, from, body string) *gmail.Message {
	return &gmail.Message{
		Id: id,
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: subject},
				{Name: "From", Value: from},
			},
			Body: &gmail.MessagePartBody{
				Data: base64.URLEncoding.EncodeToString([]byte(body)),
			},
		},
	}
}

func (f *emailFixture) jobByID(t *testing.T, id uuid.UUID) *models.Job {
	t.Helper()
	var job models.Job
	require.NoError(t, f.db.Where("id = ?", id).First(&job).Error)
	return &job
}

func TestProcessEmailUpdatesMatchedJob(t *testing.T) {
	f := newEmailFixture(t)
	job := seedJob(t, f.db, f.userID, "Backend Engineer", "Acme", "applied", time.Now().UTC())
	f.oracle.emailJSON = `{"status": "interview", "summary": "Onsite scheduled for Thursday."}`

	msg := recruitingEmail("m1", "Acme interview invitation", "recruiter@acme.example.com",
		"We would like to invite you to an onsite interview.")
	f.svc.processSingleEmail(context.Background(), msg)

	assert.Equal(t, "interview", f.jobByID(t, job.ID).Status)

	var events []models.JobEvent
	require.NoError(t, f.db.Where("job_id = ?", job.ID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "email_update", events[0].EventType)
	assert.Contains(t, events[0].Details, "interview")
}

// Applications already in a terminal state never receive email-driven updates.
func TestProcessEmailSkipsTerminalApplications(t *testing.T) {
	f := newEmailFixture(t)
	job := seedJob(t, f.db, f.userID, "Backend Engineer", "Acme", "rejected", time.Now().UTC())
	f.oracle.emailJSON = `{"status": "interview", "summary": "Please schedule a call."}`

	msg := recruitingEmail("m1", "Acme next steps", "recruiter@acme.example.com", "Let's talk.")
	f.svc.processSingleEmail(context.Background(), msg)

	assert.Equal(t, "rejected", f.jobByID(t, job.ID).Status)

	var count int64
	f.db.Model(&models.JobEvent{}).Where("job_id = ?", job.ID).Count(&count)
	assert.Zero(t, count)
}

func TestProcessEmailNoChangeLeavesJobAlone(t *testing.T) {
	f := newEmailFixture(t)
	job := seedJob(t, f.db, f.userID, "Backend Engineer", "Acme", "screening", time.Now().UTC())
	f.oracle.emailJSON = `{"status": "no_change", "summary": "Automated receipt."}`

	msg := recruitingEmail("m1", "Acme application received", "no-reply@acme.example.com",
		"Thank you for applying.")
	f.svc.processSingleEmail(context.Background(), msg)

	assert.Equal(t, "screening", f.jobByID(t, job.ID).Status)
}

// With several active applications at the matched company, the oracle picks
// which one the email is about. Candidates are numbered newest-first.
func TestProcessEmailDisambiguatesAmongActiveJobs(t *testing.T) {
	f := newEmailFixture(t)
	older := seedJob(t, f.db, f.userID, "Backend Engineer", "Acme", "applied",
		time.Now().UTC().Add(-24*time.Hour))
	newer := seedJob(t, f.db, f.userID, "Staff Engineer", "Acme", "applied", time.Now().UTC())
	f.oracle.emailPickLine = "1"
	f.oracle.emailJSON = `{"status": "technical", "summary": "Coding round booked."}`

	msg := recruitingEmail("m1", "Acme Backend Engineer coding round", "recruiter@acme.example.com",
		"Your technical round for the Backend Engineer role is booked.")
	f.svc.processSingleEmail(context.Background(), msg)

	assert.Equal(t, "technical", f.jobByID(t, older.ID).Status)
	assert.Equal(t, "applied", f.jobByID(t, newer.ID).Status)
}

func TestProcessEmailSkipsWhenDisambiguationFails(t *testing.T) {
	f := newEmailFixture(t)
	a := seedJob(t, f.db, f.userID, "Backend Engineer", "Acme", "applied",
		time.Now().UTC().Add(-24*time.Hour))
	b := seedJob(t, f.db, f.userID, "Staff Engineer", "Acme", "applied", time.Now().UTC())
	f.oracle.emailPickLine = "-1"
	f.oracle.emailJSON = `{"status": "technical", "summary": "Coding round booked."}`

	msg := recruitingEmail("m1", "Acme update", "recruiter@acme.example.com", "An update.")
	f.svc.processSingleEmail(context.Background(), msg)

	assert.Equal(t, "applied", f.jobByID(t, a.ID).Status)
	assert.Equal(t, "applied", f.jobByID(t, b.ID).Status)
}

func TestProcessNewDeduplicatesByMessageID(t *testing.T) {
	f := newEmailFixture(t)
	job := seedJob(t, f.db, f.userID, "Backend Engineer", "Acme", "applied", time.Now().UTC())
	f.oracle.emailJSON = `{"status": "interview", "summary": "Onsite scheduled."}`

	msg := recruitingEmail("m1", "Acme interview invitation", "recruiter@acme.example.com",
		"Please pick a slot.")
	assert.Equal(t, 1, f.svc.processNew(context.Background(), []*gmail.Message{msg}))

	// A full-sync fallback can hand back the same message; it must be a no-op.
	assert.Equal(t, 0, f.svc.processNew(context.Background(), []*gmail.Message{msg}))

	var count int64
	f.db.Model(&models.JobEvent{}).Where("job_id = ?", job.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestRetryFailsFastWhenHistoryExpired(t *testing.T) {
	calls := 0
	err := retry(3, time.Millisecond, func() error {
		calls++
		return &googleapi.Error{Code: 404}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, isHistoryExpiredError(err))
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := retry(3, time.Millisecond, func() error {
		calls++
		return errors.New("transient")
	})
	assert.Equal(t, 3, calls)
	assert.ErrorContains(t, err, "failed after 3 attempts")
}

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := retry(3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestIsTerminalStatus(t *testing.T) {
	for _, status := range []string{"rejected", "offer", "withdrawn"} {
		assert.True(t, isTerminalStatus(status), status)
	}
	for _, status := range []string{"applied", "screening", "interview", "technical", "final"} {
		assert.False(t, isTerminalStatus(status), status)
	}
}

func TestParseHeadersHandlesNilPayload(t *testing.T) {
	assert.Empty(t, parseHeaders(&gmail.Message{}))
}

func TestEmailBodyPrefersPlainTextPart(t *testing.T) {
	msg := &gmail.Message{
		Payload: &gmail.MessagePart{
			Parts: []*gmail.MessagePart{
				{
					MimeType: "text/html",
					Body: &gmail.MessagePartBody{
						Data: base64.URLEncoding.EncodeToString([]byte("<p>hi</p>")),
					},
				},
				{
					MimeType: "text/plain",
					Body: &gmail.MessagePartBody{
						Data: base64.URLEncoding.EncodeToString([]byte("hi")),
					},
				},
			},
		},
	}
	assert.Equal(t, "hi", emailBody(msg))
	assert.Empty(t, emailBody(&gmail.Message{}))
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	got := truncate(strings.Repeat("é", 10), 4)
	assert.Equal(t, "éééé...", got)
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "short", truncate("short", 10))
}
