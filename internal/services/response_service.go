package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/justsurfingit/jobtrackai/internal/logger"
	"github.com/justsurfingit/jobtrackai/internal/models"
)

// ResponseService renders the final user-visible text for each situation.
// Every method has a deterministic fallback template used verbatim when the
// oracle call fails, so the reply is never empty. No method ever receives an
// internal record id: only schema fields reach composed text.
type ResponseService struct {
	oracle Oracle
	log    *logger.Logger
}

func NewResponseService(oracle Oracle, baseLog *logger.Logger) *ResponseService {
	return &ResponseService{
		oracle: oracle,
		log:    baseLog.With("service", "ResponseService"),
	}
}

func (s *ResponseService) compose(ctx context.Context, systemPrompt, userPayload, fallback string) string {
	out, err := s.oracle.Complete(ctx, systemPrompt, userPayload, false)
	if err != nil || strings.TrimSpace(out) == "" {
		return fallback
	}
	return out
}

const jobCreatedPrompt = `You are JobTrackAI, a warm and encouraging assistant.
Confirm a newly added job application in a concise, friendly tone (1 emoji max).
- Format: "Added '<job_title>' at <company_name> with status '<status>'." then optionally the link on the next line.
- End with a brief encouraging nudge.
- No internal IDs.`

func (s *ResponseService) JobCreated(ctx context.Context, title, company, status, link string) string {
	payload, _ := json.Marshal(map[string]string{
		"job_title": title, "company_name": company, "status": status, "job_link": link,
	})
	fallback := fmt.Sprintf("Added '%s' at %s with status '%s'.", title, company, status)
	if link != "" {
		fallback += "\nLink: " + link
	}
	return s.compose(ctx, jobCreatedPrompt,
		"Create a friendly confirmation for this new job:\n"+string(payload), fallback)
}

const statusUpdatedPrompt = `You are JobTrackAI, a warm and emotionally intelligent assistant.
Write a short confirmation for a job application status change:
- Adapt tone to the outcome:
  - rejected: compassionate, validating, gently encouraging (1 emoji max)
  - withdrawn: affirming and positive about choosing fit
  - interview/screening/technical/final: upbeat and proactive (prep suggestions welcome)
  - offer: celebratory with a nudge toward next steps
  - applied/other: supportive and encouraging
- Keep it concise (1-2 sentences), no internal IDs.
- Do NOT invent details.`

func (s *ResponseService) StatusUpdated(ctx context.Context, title, company, status string) string {
	payload, _ := json.Marshal(map[string]string{
		"job_title": title, "company_name": company, "status": status,
	})
	fallback := fmt.Sprintf("Updated '%s' at %s to '%s'.", title, company, status)
	return s.compose(ctx, statusUpdatedPrompt,
		"Create a tone-appropriate confirmation for this status change:\n"+string(payload), fallback)
}

const jobListPrompt = `You are JobTrackAI, a friendly assistant. Create a concise, upbeat summary of job applications.
Requirements:
- Do NOT invent or alter facts. Use only provided fields.
- Do NOT include internal IDs.
- Show each item as: "<index>. <job_title> - <company_name> [<status>]" and on the next indented line include "Link: <job_link>" if present.
- Keep it supportive and hopeful. End with a short encouraging line.
- Keep output under ~12 lines when possible.`

// JobList renders the given records. The deterministic fallback preserves
// the 1-based ordering the disambiguation protocol relies on.
func (s *ResponseService) JobList(ctx context.Context, jobs []models.Job, header, footerTip string) string {
	type item struct {
		JobTitle    string `json:"job_title"`
		CompanyName string `json:"company_name"`
		Status      string `json:"status"`
		JobLink     string `json:"job_link,omitempty"`
	}
	items := make([]item, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, item{j.JobTitle, j.CompanyName, j.Status, j.JobLink})
	}
	payload, _ := json.Marshal(map[string]any{
		"header": header, "jobs": items, "footer_tip": footerTip,
	})

	lines := []string{header}
	for i, j := range jobs {
		lines = append(lines, fmt.Sprintf("%d. %s - %s [%s]", i+1, j.JobTitle, j.CompanyName, j.Status))
		if j.JobLink != "" {
			lines = append(lines, "   Link: "+j.JobLink)
		}
	}
	if footerTip != "" {
		lines = append(lines, "", footerTip)
	}
	fallback := strings.Join(lines, "\n")

	return s.compose(ctx, jobListPrompt,
		"Render the provided jobs in the required format and tone.\n"+string(payload), fallback)
}

const missingFieldsPrompt = `You are JobTrackAI, a friendly assistant. Ask for the missing required field(s) in a warm, concise way.
Rules:
- Restate any known fields succinctly.
- Ask ONLY for the specific missing fields by name.
- Keep tone supportive, 1 emoji max, no fluff.
- Do not expose internal IDs.
- Use short lines, no long paragraphs.`

func (s *ResponseService) MissingFields(ctx context.Context, known *PendingJobFields, missing []string) string {
	payload, _ := json.Marshal(map[string]any{"known": known, "missing": missing})

	var knownLines []string
	if known != nil {
		if known.CompanyName != "" {
			knownLines = append(knownLines, "Company: "+known.CompanyName)
		}
		if known.JobTitle != "" {
			knownLines = append(knownLines, "Job Title: "+known.JobTitle)
		}
		if known.Status != "" {
			knownLines = append(knownLines, "Status: "+known.Status)
		}
		if known.JobLink != "" {
			knownLines = append(knownLines, "Link: "+known.JobLink)
		}
	}
	prefix := ""
	if len(knownLines) > 0 {
		prefix = strings.Join(knownLines, "\n") + "\n\n"
	}
	fallback := prefix + fmt.Sprintf("Could you share the %s? Just a quick phrase is perfect.", strings.Join(missing, ", "))

	return s.compose(ctx, missingFieldsPrompt,
		"Craft a single friendly prompt asking for the exact missing fields, given this context:\n"+string(payload), fallback)
}

const refusalPrompt = `You are JobTrackAI, a friendly assistant. The user asked for something sensitive or unsafe.
Respond with something witty but kind, then suggest safe next steps.
Do NOT expose internal IDs, environment variables, secrets, or any confidential data.
Keep it to 2-3 sentences.`

func (s *ResponseService) Refusal(ctx context.Context, reason string) string {
	payload, _ := json.Marshal(map[string]string{"reason": reason})
	fallback := "I can't help with that. I can show your applications, add a new job, or update a status instead."
	return s.compose(ctx, refusalPrompt,
		"Refuse this unsafe request and suggest safe next steps:\n"+string(payload), fallback)
}

const redirectPrompt = `You are JobTrackAI, a friendly and witty assistant. The user sent small talk or off-topic content.
Respond with a kind or funny sentence depending on the user's message, then redirect to job-tracking options.
Keep it to 2 sentences.`

func (s *ResponseService) Redirect(ctx context.Context, message string) string {
	fallback := "Got it! I'm here to help with your job search - want to add a job, update a status, or see your applications?"
	return s.compose(ctx, redirectPrompt,
		"Small talk from user: "+message+"\nCreate a friendly redirect.", fallback)
}

const empathyPrompt = `You are JobTrackAI, a warm and emotionally intelligent assistant. The user sounds distressed about their job search.
Acknowledge the feeling first, validate it, and offer gentle encouragement.
Do not pivot to transactional options in the first sentence. Keep it to 2-3 sentences, 1 emoji max.`

func (s *ResponseService) Empathy(ctx context.Context, message, emotion string) string {
	payload, _ := json.Marshal(map[string]string{"message": message, "emotion": emotion})
	fallback := "Job searching is genuinely hard, and what you're feeling makes sense. Be kind to yourself - I'm here whenever you want to keep going."
	return s.compose(ctx, empathyPrompt,
		"Respond empathetically to this user:\n"+string(payload), fallback)
}

const fallbackPrompt = `You are JobTrackAI, a friendly assistant. The system needs a fallback reply.
Produce a concise, supportive, human message (1 emoji max) tailored to the intent provided.
- For JOB_SEARCH: invite the user to view or filter their applications.
- For STATUS_UPDATE: ask for the missing piece (job or status) as a single, clear question.
- For NEW_JOB: ask for the missing required fields succinctly.
- For AMBIGUOUS/UNKNOWN: suggest a couple of helpful next actions.
Do not expose internal IDs.`

func (s *ResponseService) Fallback(ctx context.Context, intent Intent) string {
	payload, _ := json.Marshal(map[string]string{"intent": intent.String()})
	fallback := "How can I help with your applications? Try 'show my jobs' or share a job title and company."
	return s.compose(ctx, fallbackPrompt,
		"Generate a single friendly fallback for this intent:\n"+string(payload), fallback)
}

const genericPrompt = `You are JobTrackAI, a warm and encouraging assistant who helps users track job applications.
Tone: friendly, concise, supportive, never cheesy or overbearing.
Never expose internal IDs. Only mention fields in the jobs schema.
Ask for clarification only for required fields that are still missing.`

func (s *ResponseService) Generic(ctx context.Context, message, contextNote string) string {
	fallback := "I'm not sure how to help with that. I can add a job, update a status, or show your applications."
	return s.compose(ctx, genericPrompt,
		"Context: "+contextNote+"\n\nUser message: "+message, fallback)
}

// SelectionPrompt is deterministic on purpose: the numbered list must match
// the staged candidate order exactly, so it never goes through the oracle.
func (s *ResponseService) SelectionPrompt(candidates []JobCandidate, status string) string {
	lines := []string{fmt.Sprintf("I found %d matching applications. Which one should I move to '%s'?", len(candidates), status)}
	for i, c := range candidates {
		lines = append(lines, fmt.Sprintf("%d. %s - %s", i+1, c.JobTitle, c.CompanyName))
	}
	lines = append(lines, "Reply with the number.")
	return strings.Join(lines, "\n")
}

// BulkConfirmPrompt is deterministic: the count is a safety-relevant fact.
func (s *ResponseService) BulkConfirmPrompt(status string, count int) string {
	return fmt.Sprintf(
		"This will move all %d of your applications to '%s'. Reply 'confirm' to apply it, or 'cancel' to leave everything as is.",
		count, status)
}

// DeletionConfirmPrompt is deterministic: the user must see exactly what
// would be deleted before saying yes.
func (s *ResponseService) DeletionConfirmPrompt(titles []string) string {
	lines := []string{fmt.Sprintf("This will permanently delete %d application(s):", len(titles))}
	for _, t := range titles {
		lines = append(lines, "- "+t)
	}
	lines = append(lines, "Reply 'yes' to delete them, or 'no' to keep everything.")
	return strings.Join(lines, "\n")
}
