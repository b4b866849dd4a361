package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/justsurfingit/jobtrackai/internal/logger"
	"github.com/justsurfingit/jobtrackai/internal/models"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"gorm.io/gorm"
)

const emailAnalysisPrompt = `You are analyzing a recruiting email about a job application.
Decide what the email means for the application's status.

Respond with ONLY a JSON object:
{"status": "<one of: applied, screening, interview, technical, final, offer, rejected, withdrawn, no_change>", "summary": "<one sentence summary>"}

Use "no_change" when the email is a receipt, newsletter or carries no status signal.`

const emailJobPickPrompt = `An email may be about one of several job applications at the same company.
Given the numbered list of job titles, the email subject and body, respond with ONLY the number of the matching job, or -1 if you cannot tell.`

// EmailService polls Gmail for recruiting emails and applies status changes
// to matched applications. It is entirely optional; when the Gmail client is
// nil the watcher never starts.
type EmailService struct {
	db      *gorm.DB
	oracle  Oracle
	jobs    JobStore
	matcher *MatcherService
	gmail   *gmail.Service
	userID  uuid.UUID
	log     *logger.Logger
}

func NewEmailService(db *gorm.DB, oracle Oracle, jobs JobStore, matcher *MatcherService, gmailClient *gmail.Service, userID uuid.UUID, baseLog *logger.Logger) *EmailService {
	return &EmailService{
		db:      db,
		oracle:  oracle,
		jobs:    jobs,
		matcher: matcher,
		gmail:   gmailClient,
		userID:  userID,
		log:     baseLog.With("service", "EmailService"),
	}
}

// StartWatcher launches the background polling loop. The interval comes from
// EMAIL_SYNC_INTERVAL (default 15m).
func (s *EmailService) StartWatcher(interval time.Duration) {
	if s.gmail == nil {
		s.log.Warn("Gmail watcher disabled, no client configured")
		return
	}

	go s.SyncEmails()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			s.SyncEmails()
		}
	}()
	s.log.Info("Gmail watcher started", "interval", interval)
}

// SyncEmails runs one sync cycle: incremental when a history bookmark
// exists, full bootstrap otherwise.
func (s *EmailService) SyncEmails() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s.log.Info("Starting email sync cycle")

	var user models.User
	if err := s.db.Where("id = ?", s.userID).First(&user).Error; err != nil {
		user = models.User{ID: s.userID, Email: "watcher", LastHistoryID: 0}
		if err := s.db.Create(&user).Error; err != nil {
			s.log.Error("Failed to bootstrap watcher user", "error", err)
			return
		}
	}

	var messages []*gmail.Message
	var newHistoryID uint64
	var err error

	if user.LastHistoryID == 0 {
		s.log.Info("No history bookmark, running full sync")
		messages, newHistoryID, err = s.fullSync(ctx)
	} else {
		messages, newHistoryID, err = s.incrementalSync(ctx, user.LastHistoryID)
		if err != nil && isHistoryExpiredError(err) {
			s.log.Warn("History bookmark expired, falling back to full sync")
			messages, newHistoryID, err = s.fullSync(ctx)
		}
	}
	if err != nil {
		s.log.Error("Email sync failed", "error", err)
		return
	}

	processed := s.processNew(ctx, messages)

	if newHistoryID > user.LastHistoryID {
		if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).
			Update("last_history_id", newHistoryID).Error; err != nil {
			s.log.Error("Failed to advance history bookmark", "error", err)
		}
	}
	s.log.Info("Email sync cycle finished", "candidates", len(messages), "processed", processed)
}

// fullSync scans the last 7 days of likely-recruiting mail and re-anchors the
// history bookmark at the account's current position.
func (s *EmailService) fullSync(ctx context.Context) ([]*gmail.Message, uint64, error) {
	var resp *gmail.ListMessagesResponse
	q := "subject:(application OR interview OR update OR offer OR rejected OR status) newer_than:7d"

	err := retry(3, time.Second, func() error {
		var e error
		resp, e = s.gmail.Users.Messages.List("me").Q(q).MaxResults(50).Context(ctx).Do()
		return e
	})
	if err != nil {
		return nil, 0, err
	}

	profile, err := s.gmail.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, 0, err
	}
	return s.expandMessages(ctx, resp.Messages), profile.HistoryId, nil
}

func (s *EmailService) incrementalSync(ctx context.Context, startID uint64) ([]*gmail.Message, uint64, error) {
	var resp *gmail.ListHistoryResponse

	err := retry(3, time.Second, func() error {
		var e error
		call := s.gmail.Users.History.List("me").StartHistoryId(startID)
		call.HistoryTypes("messageAdded")
		resp, e = call.Context(ctx).Do()
		return e
	})
	if err != nil {
		return nil, 0, err
	}

	var headers []*gmail.Message
	for _, h := range resp.History {
		for _, added := range h.MessagesAdded {
			if added.Message != nil {
				headers = append(headers, added.Message)
			}
		}
	}
	return s.expandMessages(ctx, headers), resp.HistoryId, nil
}

func (s *EmailService) expandMessages(ctx context.Context, headers []*gmail.Message) []*gmail.Message {
	var full []*gmail.Message
	for _, h := range headers {
		err := retry(2, 500*time.Millisecond, func() error {
			msg, err := s.gmail.Users.Messages.Get("me", h.Id).Context(ctx).Do()
			if err == nil {
				full = append(full, msg)
			}
			return err
		})
		if err != nil {
			s.log.Warn("Failed to fetch message, skipping", "message_id", h.Id, "error", err)
		}
	}
	return full
}

// processNew handles each message at most once. Ids already recorded in the
// processed_emails table are skipped, so a full-sync fallback never reapplies
// an email it has seen before.
func (s *EmailService) processNew(ctx context.Context, messages []*gmail.Message) int {
	processed := 0
	for _, msg := range messages {
		var count int64
		s.db.Model(&models.ProcessedEmail{}).Where("id = ?", msg.Id).Count(&count)
		if count > 0 {
			continue
		}
		s.processSingleEmail(ctx, msg)
		s.db.Create(&models.ProcessedEmail{ID: msg.Id})
		processed++
	}
	return processed
}

// processSingleEmail runs matching, optional oracle disambiguation, status
// analysis and the resulting update for one email.
func (s *EmailService) processSingleEmail(ctx context.Context, msg *gmail.Message) {
	headers := parseHeaders(msg)
	subject := headers["Subject"]
	sender := headers["From"]
	log := s.log.With("subject", truncate(subject, 40))

	matched, err := s.matcher.MatchEmail(ctx, s.userID, subject, sender)
	if err != nil {
		log.Error("Email match lookup failed", "error", err)
		return
	}
	if matched == nil {
		log.Debug("Skipped email, no company match")
		return
	}
	log.Info("Matched email to company", "company", matched.CompanyName)

	body := emailBody(msg)

	active := s.activeJobsAt(ctx, matched.CompanyName)
	if len(active) == 0 {
		log.Debug("Skipped email, no active applications at company")
		return
	}

	// When several active applications exist at the matched company, ask the
	// oracle which one the email is about.
	target := &active[0]
	if len(active) > 1 {
		idx := s.pickJobIndex(ctx, active, subject, body)
		if idx < 0 {
			log.Warn("Skipped email, could not disambiguate target job", "candidates", len(active))
			return
		}
		target = &active[idx]
	}

	status, summary := s.analyzeEmail(ctx, target.CompanyName, subject, body)
	if status == nil {
		log.Debug("No status change detected")
		return
	}
	if status.String() == target.Status {
		log.Debug("Status unchanged", "status", target.Status)
		return
	}

	updated, err := s.jobs.UpdateStatus(ctx, target.ID, s.userID, *status)
	if err != nil || updated == nil {
		log.Error("Email-driven status update failed", "error", err)
		return
	}

	event := models.JobEvent{
		JobID:     target.ID,
		EventType: "email_update",
		Details:   fmt.Sprintf("Status changed to %s. %s", status, summary),
	}
	if err := s.db.Create(&event).Error; err != nil {
		log.Warn("Failed to record job event", "error", err)
	}
	log.Info("Applied email-driven status change", "from", target.Status, "to", status.String())
}

func (s *EmailService) activeJobsAt(ctx context.Context, company string) []models.Job {
	jobs, err := s.jobs.Search(ctx, s.userID, JobFilter{CompanyName: company})
	if err != nil {
		return nil
	}
	var active []models.Job
	for _, j := range jobs {
		if !isTerminalStatus(j.Status) {
			active = append(active, j)
		}
	}
	return active
}

func (s *EmailService) pickJobIndex(ctx context.Context, jobs []models.Job, subject, body string) int {
	var b strings.Builder
	for i, j := range jobs {
		fmt.Fprintf(&b, "%d. %s\n", i, j.JobTitle)
	}
	payload := fmt.Sprintf("Jobs:\n%s\nSubject: %s\n\nBody:\n%s", b.String(), subject, truncate(body, 2000))

	raw, err := s.oracle.Complete(ctx, emailJobPickPrompt, payload, false)
	if err != nil {
		return -1
	}
	var first string
	for _, line := range strings.Split(raw, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			first = t
			break
		}
	}
	idx, err := strconv.Atoi(first)
	if err != nil || idx < 0 || idx >= len(jobs) {
		return -1
	}
	return idx
}

func (s *EmailService) analyzeEmail(ctx context.Context, company, subject, body string) (*models.JobStatus, string) {
	payload := fmt.Sprintf("Company: %s\nSubject: %s\n\nBody:\n%s", company, subject, truncate(body, 4000))
	raw, err := s.oracle.Complete(ctx, emailAnalysisPrompt, payload, true)
	if err != nil {
		s.log.Warn("Email analysis failed", "error", err)
		return nil, ""
	}

	span, ok := extractJSONSpan(raw)
	if !ok {
		return nil, ""
	}
	var result struct {
		Status  string `json:"status"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(span, &result); err != nil {
		s.log.Warn("Email analysis returned malformed JSON", "error", err)
		return nil, ""
	}
	return NormalizeStatus(result.Status, ""), result.Summary
}

func isTerminalStatus(status string) bool {
	return status == string(models.StatusRejected) ||
		status == string(models.StatusOffer) ||
		status == string(models.StatusWithdrawn)
}

// retry runs f with exponential backoff. History-expired errors fail fast so
// the caller can switch to a full sync.
func retry(attempts int, sleep time.Duration, f func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = f(); err == nil {
			return nil
		}
		if isHistoryExpiredError(err) {
			return err
		}
		time.Sleep(sleep)
		sleep *= 2
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

func isHistoryExpiredError(err error) bool {
	if gErr, ok := err.(*googleapi.Error); ok {
		return gErr.Code == 404
	}
	return false
}

func parseHeaders(msg *gmail.Message) map[string]string {
	res := make(map[string]string)
	if msg.Payload == nil {
		return res
	}
	for _, h := range msg.Payload.Headers {
		res[h.Name] = h.Value
	}
	return res
}

func emailBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}
	if msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
		d, _ := base64.URLEncoding.DecodeString(msg.Payload.Body.Data)
		return string(d)
	}
	for _, mime := range []string{"text/plain", "text/html"} {
		for _, part := range msg.Payload.Parts {
			if part.MimeType == mime && part.Body != nil && part.Body.Data != "" {
				d, _ := base64.URLEncoding.DecodeString(part.Body.Data)
				return string(d)
			}
		}
	}
	return ""
}

// truncate shortens s to at most n runes, never splitting a multibyte
// character.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
