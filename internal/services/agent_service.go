package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/justsurfingit/jobtrackai/internal/dtos"
	"github.com/justsurfingit/jobtrackai/internal/logger"
	"github.com/justsurfingit/jobtrackai/internal/models"
)

const techDifficultiesReply = "I'm experiencing technical difficulties. Please try again."

// sensitiveKeywords is the static half of the safety gate, OR-ed with the
// oracle-based detector so an oracle outage never disables the gate.
var sensitiveKeywords = []string{
	"api key", "apikey", "secret", "password", "credential",
	"access token", "auth token", "env var", "environment variable",
	"internal id", "database url", "connection string", "service key", "private key",
}

var bulkAllPattern = regexp.MustCompile(`(?i)\ball\b[^.!?]*\b(jobs?|applications?)\b|\b(jobs?|applications?)\b[^.!?]*\ball\b|\beverything\b`)

var confirmPhrases = []string{"yes", "y", "yep", "yeah", "confirm", "confirmed", "do it", "go ahead", "sure", "ok", "okay"}
var cancelPhrases = []string{"no", "n", "nope", "cancel", "nevermind", "never mind", "stop", "don't", "dont"}

// AgentService is the dialogue orchestrator: the per-turn state machine that
// sequences gating, classification, extraction, disambiguation and store
// mutation, and decides what to say back. All persisted cross-turn state
// lives in the conversation's pending operation; the orchestrator itself is
// stateless.
type AgentService struct {
	intents   *IntentService
	extractor *ExtractionService
	composer  *ResponseService
	jobs      JobStore
	convs     ConversationStore
	links     TitleFetcher // advisory; may be nil
	log       *logger.Logger
}

func NewAgentService(
	intents *IntentService,
	extractor *ExtractionService,
	composer *ResponseService,
	jobs JobStore,
	convs ConversationStore,
	links TitleFetcher,
	baseLog *logger.Logger,
) *AgentService {
	return &AgentService{
		intents:   intents,
		extractor: extractor,
		composer:  composer,
		jobs:      jobs,
		convs:     convs,
		links:     links,
		log:       baseLog.With("service", "AgentService"),
	}
}

// turnResult is what a branch of the state machine resolves to before the
// assistant reply is persisted.
type turnResult struct {
	text                  string
	action                string
	intent                Intent
	confidence            float64
	jobID                 *uuid.UUID
	requiresClarification bool
	clarificationPrompt   string
	suggested             []string
}

// Process handles one conversational turn. It always returns a response:
// every component failure degrades locally, and anything unexpected is
// converted into the fixed technical-difficulties reply.
func (s *AgentService) Process(ctx context.Context, msg dtos.UserMessage) (resp dtos.AgentResponse) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Panic while processing turn", "panic", r)
			resp = dtos.AgentResponse{
				Response:    techDifficultiesReply,
				ActionTaken: dtos.ActionError,
				Intent:      IntentUnknown.String(),
				Confidence:  0.0,
			}
		}
	}()
	return s.processTurn(ctx, msg)
}

func (s *AgentService) processTurn(ctx context.Context, msg dtos.UserMessage) dtos.AgentResponse {
	s.log.Info("Processing message", "user_id", msg.UserID, "preview", truncate(msg.Message, 100))

	conv, err := s.resolveConversation(ctx, msg)
	if err != nil || conv == nil {
		s.log.Error("Failed to resolve conversation", "error", err)
		return dtos.AgentResponse{
			Response:    techDifficultiesReply,
			ActionTaken: dtos.ActionError,
			Intent:      IntentUnknown.String(),
			Confidence:  0.0,
		}
	}

	if _, err := s.convs.AppendMessage(ctx, conv.ID, msg.UserID, models.RoleUser, msg.Message, nil); err != nil {
		s.log.Warn("Failed to persist user message", "error", err)
	}

	// Safety gate: short-circuit before any job-store access.
	if unsafe, reason := s.isUnsafe(ctx, msg.Message); unsafe {
		return s.finish(ctx, conv, msg.UserID, turnResult{
			text:       s.composer.Refusal(ctx, reason),
			action:     dtos.ActionInformationProvided,
			intent:     IntentUnknown,
			confidence: 1.0,
		})
	}

	// Relevance gate: confident off-topic chat gets a redirect.
	if related, conf := s.intents.DetectJobRelated(ctx, msg.Message); !related && conf >= 0.6 {
		return s.finish(ctx, conv, msg.UserID, turnResult{
			text:       s.composer.Redirect(ctx, msg.Message),
			action:     dtos.ActionInformationProvided,
			intent:     IntentUnknown,
			confidence: conf,
		})
	}

	// Empathy gate: strong distress outranks the transactional path this turn.
	if emotion, conf := s.intents.DetectEmotion(ctx, msg.Message); conf >= 0.75 && emotion != "neutral" {
		return s.finish(ctx, conv, msg.UserID, turnResult{
			text:       s.composer.Empathy(ctx, msg.Message, emotion),
			action:     dtos.ActionInformationProvided,
			intent:     IntentUnknown,
			confidence: conf,
		})
	}

	intent, confidence := s.intents.Classify(ctx, msg.Message)
	s.log.Info("Classified intent", "intent", intent, "confidence", confidence)

	var result turnResult
	switch intent {
	case IntentNewJob:
		result = s.handleNewJob(ctx, conv, msg, confidence)
	case IntentStatusUpdate:
		result = s.handleStatusUpdate(ctx, conv, msg, confidence, nil)
	case IntentJobSearch:
		result = s.handleJobSearch(ctx, conv, msg, confidence)
	case IntentJobDelete:
		result = s.handleJobDelete(ctx, conv, msg, confidence)
	default:
		result = s.handleAmbiguous(ctx, conv, msg, intent, confidence)
	}
	return s.finish(ctx, conv, msg.UserID, result)
}

func (s *AgentService) resolveConversation(ctx context.Context, msg dtos.UserMessage) (*models.Conversation, error) {
	if msg.ConversationID != nil {
		conv, err := s.convs.GetByID(ctx, *msg.ConversationID, msg.UserID)
		if err == nil && conv != nil {
			return conv, nil
		}
		// Unknown id falls back to the user's active thread.
	}
	return s.convs.GetOrCreateRecent(ctx, msg.UserID)
}

// finish persists the annotated assistant reply and shapes the response.
func (s *AgentService) finish(ctx context.Context, conv *models.Conversation, userID uuid.UUID, r turnResult) dtos.AgentResponse {
	annotation := map[string]any{
		"intent":       r.intent.String(),
		"confidence":   r.confidence,
		"action_taken": r.action,
	}
	if r.jobID != nil {
		annotation["job_id"] = r.jobID.String()
	}
	if _, err := s.convs.AppendMessage(ctx, conv.ID, userID, models.RoleAssistant, r.text, annotation); err != nil {
		s.log.Warn("Failed to persist assistant reply", "error", err)
	}

	convID := conv.ID
	return dtos.AgentResponse{
		Response:              r.text,
		ActionTaken:           r.action,
		Intent:                r.intent.String(),
		Confidence:            r.confidence,
		JobID:                 r.jobID,
		ConversationID:        &convID,
		RequiresClarification: r.requiresClarification,
		ClarificationPrompt:   r.clarificationPrompt,
		SuggestedActions:      r.suggested,
	}
}

func (s *AgentService) isUnsafe(ctx context.Context, message string) (bool, string) {
	lower := strings.ToLower(message)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true, "requested sensitive data: " + kw
		}
	}
	if unsafe, conf, reason := s.intents.DetectUnsafe(ctx, message); unsafe && conf >= 0.6 {
		return true, reason
	}
	return false, ""
}

// ---- NewJob ----

func (s *AgentService) handleNewJob(ctx context.Context, conv *models.Conversation, msg dtos.UserMessage, confidence float64) turnResult {
	ex := s.extractor.Extract(ctx, msg.Message)

	var known *PendingJobFields
	if pd := s.loadPending(ctx, conv); pd != nil && pd.Kind == PendingNewJob {
		known = pd.Job
	}
	fields := mergeExtraction(known, ex)

	if url := urlPattern.FindString(msg.Message); url != "" {
		if fields.JobLink == "" {
			fields.JobLink = url
		}
		// Page title is a best-effort hint for a missing job title only.
		if fields.JobTitle == "" && s.links != nil {
			if title, err := s.links.FetchTitle(ctx, url); err == nil && title != "" {
				fields.JobTitle = title
			} else if err != nil {
				s.log.Debug("Title hint fetch failed", "url", url, "error", err)
			}
		}
		if fields.Status == "" {
			fields.Status = string(models.StatusApplied)
		}
	}

	if missing := fields.missingRequired(); len(missing) > 0 {
		// Stage what we know; ask only for what is still missing.
		s.storePending(ctx, conv, &PendingOperation{Kind: PendingNewJob, Job: fields})
		return turnResult{
			text:                  s.composer.MissingFields(ctx, fields, missing),
			action:                dtos.ActionClarificationNeeded,
			intent:                IntentNewJob,
			confidence:            confidence,
			requiresClarification: true,
			clarificationPrompt:   "Please provide: " + strings.Join(missing, ", "),
		}
	}

	return s.createJob(ctx, conv, msg.UserID, fields, IntentNewJob, confidence)
}

func (s *AgentService) createJob(ctx context.Context, conv *models.Conversation, userID uuid.UUID, fields *PendingJobFields, intent Intent, confidence float64) turnResult {
	job := &models.Job{
		UserID:         userID,
		JobTitle:       fields.JobTitle,
		CompanyName:    fields.CompanyName,
		JobLink:        fields.JobLink,
		JobDescription: fields.JobDescription,
		Status:         fields.status().String(),
	}
	created, err := s.jobs.Create(ctx, job)
	if err != nil {
		s.log.Error("Job creation failed", "error", err)
		return s.storeFailure(intent, confidence)
	}
	s.storePending(ctx, conv, nil)

	return turnResult{
		text:       s.composer.JobCreated(ctx, created.JobTitle, created.CompanyName, created.Status, created.JobLink),
		action:     dtos.ActionJobCreated,
		intent:     intent,
		confidence: confidence,
		jobID:      &created.ID,
		suggested:  []string{"show my jobs", "update a status"},
	}
}

// ---- StatusUpdate ----

func (s *AgentService) handleStatusUpdate(ctx context.Context, conv *models.Conversation, msg dtos.UserMessage, confidence float64, ex *JobExtraction) turnResult {
	pd := s.loadPending(ctx, conv)

	// A numeric reply resolves a live disambiguation list before anything else.
	if idx, ok := parseSelectionIndex(msg.Message); ok && pd != nil && pd.Kind == PendingSelection {
		return s.resolveSelection(ctx, conv, msg.UserID, pd, idx, confidence)
	}

	if ex == nil {
		extracted := s.extractor.Extract(ctx, msg.Message)
		ex = &extracted
	}

	if ex.Status == nil {
		return turnResult{
			text:                  s.composer.Fallback(ctx, IntentStatusUpdate),
			action:                dtos.ActionClarificationNeeded,
			intent:                IntentStatusUpdate,
			confidence:            confidence,
			requiresClarification: true,
			clarificationPrompt:   "Please provide: status",
		}
	}
	status := *ex.Status

	// Bulk changes are never applied on the turn they are requested.
	if bulkAllPattern.MatchString(msg.Message) {
		return s.stageBulkUpdate(ctx, conv, msg.UserID, status, confidence)
	}

	filter := JobFilter{CompanyName: ex.CompanyName, JobTitle: ex.JobTitle}
	matches, err := s.jobs.Search(ctx, msg.UserID, filter)
	if err != nil {
		s.log.Error("Status-update search failed", "error", err)
		return s.storeFailure(IntentStatusUpdate, confidence)
	}

	switch len(matches) {
	case 0:
		target := ex.CompanyName
		if target == "" {
			target = ex.JobTitle
		}
		text := "I couldn't find a tracked application matching that."
		if target != "" {
			text = fmt.Sprintf("I couldn't find a tracked application matching '%s'.", target)
		}
		return turnResult{
			text:                  text + " Want me to add it as a new one? Just share the job title and company.",
			action:                dtos.ActionClarificationNeeded,
			intent:                IntentStatusUpdate,
			confidence:            confidence,
			requiresClarification: true,
			clarificationPrompt:   "Add as a new application, or name a different job",
		}
	case 1:
		return s.applyStatusUpdate(ctx, conv, msg.UserID, matches[0].ID, status, confidence)
	default:
		// Indistinguishable duplicates of one named company resolve to the
		// freshest record; anything else gets an explicit numbered choice.
		if auto := pickAutoTarget(matches, msg.Message); auto != nil {
			return s.applyStatusUpdate(ctx, conv, msg.UserID, auto.ID, status, confidence)
		}
		candidates := make([]JobCandidate, 0, len(matches))
		for _, m := range matches {
			candidates = append(candidates, JobCandidate{ID: m.ID, JobTitle: m.JobTitle, CompanyName: m.CompanyName})
		}
		s.storePending(ctx, conv, &PendingOperation{
			Kind:       PendingSelection,
			Status:     status.String(),
			Candidates: candidates,
		})
		return turnResult{
			text:                  s.composer.SelectionPrompt(candidates, status.String()),
			action:                dtos.ActionClarificationNeeded,
			intent:                IntentStatusUpdate,
			confidence:            confidence,
			requiresClarification: true,
			clarificationPrompt:   fmt.Sprintf("Reply with a number between 1 and %d", len(candidates)),
		}
	}
}

// pickAutoTarget returns the most recent match when every candidate is the
// same title at the same company and the message names that company. The
// list is already newest-first.
func pickAutoTarget(matches []models.Job, message string) *models.Job {
	company := strings.ToLower(matches[0].CompanyName)
	title := strings.ToLower(matches[0].JobTitle)
	for _, m := range matches[1:] {
		if strings.ToLower(m.CompanyName) != company || strings.ToLower(m.JobTitle) != title {
			return nil
		}
	}
	if !strings.Contains(strings.ToLower(message), company) {
		return nil
	}
	return &matches[0]
}

func (s *AgentService) applyStatusUpdate(ctx context.Context, conv *models.Conversation, userID, jobID uuid.UUID, status models.JobStatus, confidence float64) turnResult {
	// Clear any live pending op before mutating so a later ambiguous
	// message can't re-apply stale state.
	s.storePending(ctx, conv, nil)

	updated, err := s.jobs.UpdateStatus(ctx, jobID, userID, status)
	if err != nil {
		s.log.Error("Status update failed", "error", err)
		return s.storeFailure(IntentStatusUpdate, confidence)
	}
	if updated == nil {
		return turnResult{
			text:       "That application doesn't seem to exist anymore. Try 'show my jobs' to see what's tracked.",
			action:     dtos.ActionError,
			intent:     IntentStatusUpdate,
			confidence: confidence,
		}
	}
	return turnResult{
		text:       s.composer.StatusUpdated(ctx, updated.JobTitle, updated.CompanyName, updated.Status),
		action:     dtos.ActionStatusUpdated,
		intent:     IntentStatusUpdate,
		confidence: confidence,
		jobID:      &updated.ID,
	}
}

func (s *AgentService) resolveSelection(ctx context.Context, conv *models.Conversation, userID uuid.UUID, pd *PendingOperation, idx int, confidence float64) turnResult {
	if idx < 1 || idx > len(pd.Candidates) {
		return turnResult{
			text:                  fmt.Sprintf("Please pick a number between 1 and %d.", len(pd.Candidates)),
			action:                dtos.ActionClarificationNeeded,
			intent:                IntentStatusUpdate,
			confidence:            confidence,
			requiresClarification: true,
			clarificationPrompt:   fmt.Sprintf("Reply with a number between 1 and %d", len(pd.Candidates)),
		}
	}
	chosen := pd.Candidates[idx-1]
	status := models.JobStatus(pd.Status)
	if !status.IsValid() {
		s.storePending(ctx, conv, nil)
		return turnResult{
			text:       "That selection expired. Tell me the job and the new status again.",
			action:     dtos.ActionClarificationNeeded,
			intent:     IntentStatusUpdate,
			confidence: confidence,
		}
	}
	return s.applyStatusUpdate(ctx, conv, userID, chosen.ID, status, confidence)
}

func (s *AgentService) stageBulkUpdate(ctx context.Context, conv *models.Conversation, userID uuid.UUID, status models.JobStatus, confidence float64) turnResult {
	all, err := s.jobs.List(ctx, userID, nil, 0)
	if err != nil {
		s.log.Error("Bulk staging list failed", "error", err)
		return s.storeFailure(IntentStatusUpdate, confidence)
	}
	if len(all) == 0 {
		return turnResult{
			text:       "You don't have any tracked applications yet, so there's nothing to update.",
			action:     dtos.ActionInformationProvided,
			intent:     IntentStatusUpdate,
			confidence: confidence,
		}
	}
	ids := make([]uuid.UUID, 0, len(all))
	for _, j := range all {
		ids = append(ids, j.ID)
	}
	s.storePending(ctx, conv, &PendingOperation{
		Kind:   PendingBulkUpdate,
		Status: status.String(),
		Count:  len(ids),
		JobIDs: ids,
	})
	return turnResult{
		text:                  s.composer.BulkConfirmPrompt(status.String(), len(ids)),
		action:                dtos.ActionBulkUpdateStaged,
		intent:                IntentStatusUpdate,
		confidence:            confidence,
		requiresClarification: true,
		clarificationPrompt:   "Reply 'confirm' to apply, or 'cancel'",
	}
}

// ---- JobSearch ----

func (s *AgentService) handleJobSearch(ctx context.Context, conv *models.Conversation, msg dtos.UserMessage, confidence float64) turnResult {
	lower := strings.ToLower(msg.Message)

	// Bulk-update phrasings occasionally land here; redirect instead of
	// pretending a search answers them.
	if bulkAllPattern.MatchString(msg.Message) &&
		containsAny(lower, []string{"update", "change", "set ", "mark", "move"}) {
		return turnResult{
			text:       "I can't change applications from a search, but I can do it directly - for example: 'mark all my jobs as rejected'.",
			action:     dtos.ActionInformationProvided,
			intent:     IntentJobSearch,
			confidence: confidence,
		}
	}

	ex := s.extractor.Extract(ctx, msg.Message)
	filter := JobFilter{CompanyName: ex.CompanyName, JobTitle: ex.JobTitle}
	if ex.Status != nil && !containsAny(lower, appliedHints) {
		filter.Status = ex.Status
	}
	filtered := filter.CompanyName != "" || filter.JobTitle != "" || filter.Status != nil

	var jobs []models.Job
	var err error
	if filtered {
		jobs, err = s.jobs.Search(ctx, msg.UserID, filter)
	} else {
		jobs, err = s.jobs.List(ctx, msg.UserID, nil, 3)
	}
	if err != nil {
		s.log.Error("Job search failed", "error", err)
		return s.storeFailure(IntentJobSearch, confidence)
	}

	if len(jobs) == 0 {
		text := "Nothing matched that search. Try 'show my jobs' to see everything you're tracking."
		if !filtered {
			text = "You're not tracking any applications yet! Tell me about one - something like \"I applied to Backend Engineer at Acme\" - and I'll start your list."
		}
		return turnResult{
			text:       text,
			action:     dtos.ActionInformationProvided,
			intent:     IntentJobSearch,
			confidence: confidence,
			suggested:  []string{"I applied to <title> at <company>"},
		}
	}

	header := "Here's what you're tracking:"
	if filtered {
		header = "Here's what matched:"
	}
	footer := ""
	if stats, err := s.jobs.Stats(ctx, msg.UserID); err == nil {
		total := 0
		for _, n := range stats {
			total += n
		}
		if total > len(jobs) {
			footer = fmt.Sprintf("Showing %d of %d tracked applications.", len(jobs), total)
		}
	}
	return turnResult{
		text:       s.composer.JobList(ctx, jobs, header, footer),
		action:     dtos.ActionJobsListed,
		intent:     IntentJobSearch,
		confidence: confidence,
	}
}

// ---- JobDelete ----

func (s *AgentService) handleJobDelete(ctx context.Context, conv *models.Conversation, msg dtos.UserMessage, confidence float64) turnResult {
	ex := s.extractor.Extract(ctx, msg.Message)

	filter := JobFilter{CompanyName: ex.CompanyName}
	if ex.Status != nil {
		filter.Status = ex.Status
	}
	if filter.CompanyName == "" && filter.Status == nil && !bulkAllPattern.MatchString(msg.Message) {
		return turnResult{
			text:                  "Which applications should I delete? Give me a company or a status - e.g. 'delete my rejected jobs'.",
			action:                dtos.ActionClarificationNeeded,
			intent:                IntentJobDelete,
			confidence:            confidence,
			requiresClarification: true,
			clarificationPrompt:   "Please provide: company or status filter",
		}
	}

	matches, err := s.jobs.Search(ctx, msg.UserID, filter)
	if err != nil {
		s.log.Error("Deletion search failed", "error", err)
		return s.storeFailure(IntentJobDelete, confidence)
	}
	if len(matches) == 0 {
		return turnResult{
			text:       "I couldn't find any applications matching that, so there's nothing to delete.",
			action:     dtos.ActionInformationProvided,
			intent:     IntentJobDelete,
			confidence: confidence,
		}
	}

	ids := make([]uuid.UUID, 0, len(matches))
	titles := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
		titles = append(titles, m.JobTitle+" at "+m.CompanyName)
	}
	op := &PendingOperation{
		Kind:    PendingDeletion,
		JobIDs:  ids,
		Titles:  titles,
		Company: filter.CompanyName,
	}
	if filter.Status != nil {
		op.Status = filter.Status.String()
	}
	s.storePending(ctx, conv, op)

	// Deletion is always two-phase.
	return turnResult{
		text:                  s.composer.DeletionConfirmPrompt(titles),
		action:                dtos.ActionDeletionStaged,
		intent:                IntentJobDelete,
		confidence:            confidence,
		requiresClarification: true,
		clarificationPrompt:   "Reply 'yes' to delete, or 'no'",
	}
}

// ---- Ambiguous / Unknown ----

func (s *AgentService) handleAmbiguous(ctx context.Context, conv *models.Conversation, msg dtos.UserMessage, intent Intent, confidence float64) turnResult {
	pd := s.loadPending(ctx, conv)

	// Last-chance structured extraction.
	ex := s.extractor.Extract(ctx, msg.Message)

	selectionLive := pd != nil && pd.Kind == PendingSelection
	if ex.Status != nil && (ex.CompanyName != "" || ex.JobTitle != "" || selectionLive) {
		return s.handleStatusUpdate(ctx, conv, msg, confidence, &ex)
	}

	// A message that completes a pending new job (or is complete on its own)
	// creates the record.
	var known *PendingJobFields
	newJobLive := pd != nil && pd.Kind == PendingNewJob
	if newJobLive {
		known = pd.Job
	}
	if newJobLive || ex.HasRequired() {
		merged := mergeExtraction(known, ex)
		if len(merged.missingRequired()) == 0 {
			return s.createJob(ctx, conv, msg.UserID, merged, IntentNewJob, confidence)
		}
		if newJobLive && (ex.JobTitle != "" || ex.CompanyName != "") {
			s.storePending(ctx, conv, &PendingOperation{Kind: PendingNewJob, Job: merged})
			missing := merged.missingRequired()
			return turnResult{
				text:                  s.composer.MissingFields(ctx, merged, missing),
				action:                dtos.ActionClarificationNeeded,
				intent:                IntentNewJob,
				confidence:            confidence,
				requiresClarification: true,
				clarificationPrompt:   "Please provide: " + strings.Join(missing, ", "),
			}
		}
	}

	if pd != nil {
		if isConfirmPhrase(msg.Message) {
			return s.executePending(ctx, conv, msg.UserID, pd, intent, confidence)
		}
		if isCancelPhrase(msg.Message) {
			s.storePending(ctx, conv, nil)
			return turnResult{
				text:       "Okay, I've dropped that. Nothing was changed.",
				action:     dtos.ActionInformationProvided,
				intent:     intent,
				confidence: confidence,
			}
		}
	}

	return turnResult{
		text:       s.composer.Generic(ctx, msg.Message, "No pending operation; user intent unclear."),
		action:     dtos.ActionInformationProvided,
		intent:     intent,
		confidence: confidence,
		suggested:  []string{"show my jobs", "I applied to <title> at <company>"},
	}
}

// executePending runs a staged operation after an explicit confirmation.
// Bulk and deletion apply the exact id set captured at staging time; the
// candidate set is never re-resolved.
func (s *AgentService) executePending(ctx context.Context, conv *models.Conversation, userID uuid.UUID, pd *PendingOperation, intent Intent, confidence float64) turnResult {
	switch pd.Kind {
	case PendingNewJob:
		if pd.Job != nil && len(pd.Job.missingRequired()) == 0 {
			return s.createJob(ctx, conv, userID, pd.Job, IntentNewJob, confidence)
		}
		missing := []string{"job_title", "company_name"}
		if pd.Job != nil {
			missing = pd.Job.missingRequired()
		}
		return turnResult{
			text:                  s.composer.MissingFields(ctx, pd.Job, missing),
			action:                dtos.ActionClarificationNeeded,
			intent:                IntentNewJob,
			confidence:            confidence,
			requiresClarification: true,
			clarificationPrompt:   "Please provide: " + strings.Join(missing, ", "),
		}

	case PendingBulkUpdate:
		status := models.JobStatus(pd.Status)
		if !status.IsValid() {
			s.storePending(ctx, conv, nil)
			return turnResult{
				text:       "That bulk update expired. Tell me again what you'd like to change.",
				action:     dtos.ActionClarificationNeeded,
				intent:     IntentStatusUpdate,
				confidence: confidence,
			}
		}
		s.storePending(ctx, conv, nil)
		updated := 0
		for _, id := range pd.JobIDs {
			job, err := s.jobs.UpdateStatus(ctx, id, userID, status)
			if err != nil {
				s.log.Warn("Bulk update failed for record", "error", err)
				continue
			}
			if job != nil {
				updated++
			}
		}
		return turnResult{
			text:       fmt.Sprintf("Done - moved %d application(s) to '%s'.", updated, status),
			action:     dtos.ActionBulkUpdated,
			intent:     IntentStatusUpdate,
			confidence: confidence,
		}

	case PendingDeletion:
		s.storePending(ctx, conv, nil)
		deleted := 0
		for _, id := range pd.JobIDs {
			ok, err := s.jobs.Delete(ctx, id, userID)
			if err != nil {
				s.log.Warn("Deletion failed for record", "error", err)
				continue
			}
			if ok {
				deleted++
			}
		}
		return turnResult{
			text:       fmt.Sprintf("Deleted %d application(s). Onward and upward!", deleted),
			action:     dtos.ActionJobsDeleted,
			intent:     IntentJobDelete,
			confidence: confidence,
		}

	case PendingSelection:
		// "yes" doesn't resolve a numbered choice; re-prompt.
		return turnResult{
			text:                  s.composer.SelectionPrompt(pd.Candidates, pd.Status),
			action:                dtos.ActionClarificationNeeded,
			intent:                IntentStatusUpdate,
			confidence:            confidence,
			requiresClarification: true,
			clarificationPrompt:   fmt.Sprintf("Reply with a number between 1 and %d", len(pd.Candidates)),
		}
	}

	return turnResult{
		text:       s.composer.Fallback(ctx, intent),
		action:     dtos.ActionInformationProvided,
		intent:     intent,
		confidence: confidence,
	}
}

// ---- pending helpers ----

func (s *AgentService) loadPending(ctx context.Context, conv *models.Conversation) *PendingOperation {
	meta, err := s.convs.GetMetadata(ctx, conv.ID)
	if err != nil {
		s.log.Warn("Failed to load conversation metadata", "error", err)
		return nil
	}
	return decodePending(meta)
}

// storePending writes op into the conversation's pending slot; nil clears it.
func (s *AgentService) storePending(ctx context.Context, conv *models.Conversation, op *PendingOperation) {
	meta, err := s.convs.GetMetadata(ctx, conv.ID)
	if err != nil {
		s.log.Warn("Failed to read metadata before update", "error", err)
		meta = map[string]any{}
	}
	meta = encodePending(meta, op)
	if err := s.convs.UpdateMetadata(ctx, conv.ID, meta); err != nil {
		s.log.Warn("Failed to persist pending operation", "error", err)
	}
}

func (s *AgentService) storeFailure(intent Intent, confidence float64) turnResult {
	return turnResult{
		text:       "I hit a snag saving that - sorry! Please try again in a moment.",
		action:     dtos.ActionError,
		intent:     intent,
		confidence: confidence,
	}
}

// ---- small parsers ----

func parseSelectionIndex(message string) (int, bool) {
	m := bareNumberPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func isConfirmPhrase(message string) bool {
	return matchesPhrase(message, confirmPhrases)
}

func isCancelPhrase(message string) bool {
	return matchesPhrase(message, cancelPhrases)
}

func matchesPhrase(message string, phrases []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	normalized = strings.Trim(normalized, ".!?")
	for _, p := range phrases {
		if normalized == p {
			return true
		}
	}
	return false
}
