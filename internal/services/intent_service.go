package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/justsurfingit/jobtrackai/internal/logger"
)

// Intent is the coarse action category inferred from a message.
type Intent string

const (
	IntentNewJob       Intent = "new_job"
	IntentStatusUpdate Intent = "status_update"
	IntentJobSearch    Intent = "job_search"
	IntentJobDelete    Intent = "job_delete"
	IntentAmbiguous    Intent = "ambiguous"
	IntentUnknown      Intent = "unknown"
)

func (i Intent) String() string { return string(i) }

// urlPattern matches a well-formed http(s) link anywhere in a message.
var urlPattern = regexp.MustCompile(`https?://[^\s)>"']+`)

var bareNumberPattern = regexp.MustCompile(`^\s*(\d{1,2})\s*\.?\s*$`)

const classifyPrompt = `You classify user messages about tracking job applications.

Output ONLY one line in this exact format:
INTENT_TYPE|CONFIDENCE

INTENT_TYPE is one of {NEW_JOB, STATUS_UPDATE, JOB_SEARCH, JOB_DELETE, AMBIGUOUS, UNKNOWN}

Short definitions:
- NEW_JOB: user adds a new application (e.g., "I applied", shares a job link)
- STATUS_UPDATE: user reports a change or outcome (e.g., rejected/declined/passed, interview/phone screen/onsite, offer, withdrew)
- JOB_SEARCH: user wants to view/filter existing applications (e.g., "show my jobs", "applications at Google")
- JOB_DELETE: user wants to remove tracked applications
- AMBIGUOUS: unclear or needs clarification
- UNKNOWN: unrelated to job tracking

Hints:
- If text mentions "applied" or includes a link, prefer NEW_JOB
- Outcome/stage words mean STATUS_UPDATE
- "show/list/view my jobs/applications" means JOB_SEARCH
- If both NEW_JOB and JOB_SEARCH cues appear, prefer NEW_JOB when a link is present; otherwise JOB_SEARCH

CONFIDENCE is a number between 0 and 1.`

const unsafePrompt = `You are a safety classifier for a job-tracking assistant.
Decide if the user's message requests sensitive or unsafe information (internal IDs, environment variables, secrets, API keys, passwords, credentials, tokens, service keys, or confidential system data).
Output EXACTLY one line:
LABEL|CONFIDENCE|REASON
where LABEL is SAFE or UNSAFE and CONFIDENCE is between 0 and 1. Keep REASON short.`

const jobRelatedPrompt = `You classify whether a user message is about job applications/tracking.
Output EXACTLY one line: LABEL|CONFIDENCE
LABEL is JOB or OTHER; CONFIDENCE is between 0 and 1.
JOB covers adding applications, links to jobs, status changes, viewing/searching/deleting applications.
OTHER covers small talk, insults, random chat, unrelated topics.`

const emotionPrompt = `You detect the emotional state of a user talking about their job search.
Output EXACTLY one line: EMOTION|CONFIDENCE
EMOTION is one of {NEUTRAL, ANXIOUS, FRUSTRATED, DISAPPOINTED}; CONFIDENCE is between 0 and 1.
Only report a non-NEUTRAL emotion when the message clearly expresses it.`

// IntentService labels messages. It combines one oracle call with cheap
// deterministic keyword rules: the oracle is fast but unreliable at the
// margins, and the rules catch its blind spots without a second round trip.
type IntentService struct {
	oracle Oracle
	log    *logger.Logger
}

func NewIntentService(oracle Oracle, baseLog *logger.Logger) *IntentService {
	return &IntentService{
		oracle: oracle,
		log:    baseLog.With("service", "IntentService"),
	}
}

// Classify returns the intent of a message with a confidence in [0,1].
func (s *IntentService) Classify(ctx context.Context, message string) (Intent, float64) {
	intent, confidence := IntentUnknown, 0.0

	raw, err := s.oracle.Complete(ctx, classifyPrompt, message, false)
	if err != nil {
		s.log.Warn("Oracle classification failed, relying on rules", "error", err)
	} else if parsed, conf, ok := parseIntentLine(raw); ok {
		intent, confidence = parsed, conf
	} else {
		s.log.Warn("Unparseable classification output", "raw", raw)
	}

	// Rules take over when the oracle is unsure.
	if intent == IntentUnknown || intent == IntentAmbiguous || confidence < 0.6 {
		ruleIntent, ruleConf := ruleClassify(message)
		if ruleConf > confidence {
			intent, confidence = ruleIntent, ruleConf
		}
	}

	// Override 1: a link almost always means "I applied".
	if urlPattern.MatchString(message) && (intent == IntentUnknown || intent == IntentAmbiguous) {
		intent = IntentNewJob
		if confidence < 0.85 {
			confidence = 0.85
		}
	}

	// Override 2: "my jobs" phrasing almost never means "add a job".
	if isListPhrase(message) && intent != IntentNewJob {
		intent = IntentJobSearch
		if confidence < 0.9 {
			confidence = 0.9
		}
	}

	return intent, confidence
}

// parseIntentLine leniently parses an "INTENT|CONFIDENCE" line. Tolerates
// case and underscore variants; reports ok=false on anything unusable.
func parseIntentLine(raw string) (Intent, float64, bool) {
	line := firstPipeLine(raw)
	if line == "" {
		return IntentUnknown, 0.0, false
	}
	parts := strings.SplitN(line, "|", 2)
	if len(parts) != 2 {
		return IntentUnknown, 0.0, false
	}

	key := strings.ToUpper(strings.TrimSpace(parts[0]))
	key = strings.ReplaceAll(key, "_", "")
	key = strings.ReplaceAll(key, " ", "")

	var intent Intent
	switch key {
	case "NEWJOB":
		intent = IntentNewJob
	case "STATUSUPDATE":
		intent = IntentStatusUpdate
	case "JOBSEARCH":
		intent = IntentJobSearch
	case "JOBDELETE":
		intent = IntentJobDelete
	case "AMBIGUOUS":
		intent = IntentAmbiguous
	case "UNKNOWN":
		intent = IntentUnknown
	default:
		return IntentUnknown, 0.0, false
	}

	confidence, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || confidence < 0 || confidence > 1 {
		confidence = 0.8
	}
	return intent, confidence, true
}

// firstPipeLine returns the first line of raw that contains a pipe.
func firstPipeLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		if strings.Contains(line, "|") {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

var (
	deletePhrases = []string{"delete", "remove"}
	searchPhrases = []string{
		"show my jobs", "show me my jobs", "list jobs", "list my jobs",
		"my applications", "what jobs", "view my jobs", "see my jobs",
		"show my applications", "view my applications",
	}
	newJobPhrases = []string{"i applied", "applied to", "applied for", "job link", "new job"}
	statusPhrases = []string{
		"rejected", "reject", "turned me down", "didn't make it", "no longer moving forward",
		"interview", "phone screen", "onsite", "offer", "withdrew", "withdrawn",
		"update status", "status update", "status change", "moved to", "passed on me", "declined",
	}
)

// ruleClassify is the deterministic fallback classifier.
func ruleClassify(message string) (Intent, float64) {
	lower := strings.ToLower(message)

	if containsAny(lower, deletePhrases) && (strings.Contains(lower, "job") || strings.Contains(lower, "application")) {
		return IntentJobDelete, 0.85
	}
	if containsAny(lower, searchPhrases) {
		return IntentJobSearch, 0.85
	}
	if containsAny(lower, newJobPhrases) || urlPattern.MatchString(message) {
		return IntentNewJob, 0.8
	}
	if containsAny(lower, statusPhrases) {
		return IntentStatusUpdate, 0.75
	}
	// A bare 1-2 digit reply is most likely answering a selection prompt.
	if bareNumberPattern.MatchString(message) {
		return IntentStatusUpdate, 0.5
	}
	return IntentUnknown, 0.0
}

func isListPhrase(message string) bool {
	return containsAny(strings.ToLower(message), searchPhrases)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// DetectUnsafe asks the oracle whether the message requests sensitive data.
// Returns (isUnsafe, confidence, reason); degrades to safe on any failure.
func (s *IntentService) DetectUnsafe(ctx context.Context, message string) (bool, float64, string) {
	raw, err := s.oracle.Complete(ctx, unsafePrompt, message, false)
	if err != nil {
		s.log.Warn("Safety detection failed", "error", err)
		return false, 0.0, ""
	}
	line := firstPipeLine(raw)
	parts := strings.SplitN(line, "|", 3)
	if len(parts) < 2 {
		return false, 0.0, ""
	}
	label := strings.ToUpper(strings.TrimSpace(parts[0]))
	conf, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		conf = 0.8
	}
	reason := ""
	if len(parts) == 3 {
		reason = strings.TrimSpace(parts[2])
	}
	return label == "UNSAFE", conf, reason
}

// DetectJobRelated reports whether the message is on-topic.
func (s *IntentService) DetectJobRelated(ctx context.Context, message string) (bool, float64) {
	raw, err := s.oracle.Complete(ctx, jobRelatedPrompt, message, false)
	if err != nil {
		s.log.Warn("Relevance detection failed", "error", err)
		return true, 0.0 // fail open: never block a turn on oracle failure
	}
	line := firstPipeLine(raw)
	parts := strings.SplitN(line, "|", 2)
	if len(parts) != 2 {
		return true, 0.0
	}
	label := strings.ToUpper(strings.TrimSpace(parts[0]))
	conf, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		conf = 0.8
	}
	return label == "JOB", conf
}

// DetectEmotion reports a high-level emotional state for the empathy gate.
func (s *IntentService) DetectEmotion(ctx context.Context, message string) (string, float64) {
	raw, err := s.oracle.Complete(ctx, emotionPrompt, message, false)
	if err != nil {
		return "neutral", 0.0
	}
	line := firstPipeLine(raw)
	parts := strings.SplitN(line, "|", 2)
	if len(parts) != 2 {
		return "neutral", 0.0
	}
	emotion := strings.ToLower(strings.TrimSpace(parts[0]))
	switch emotion {
	case "anxious", "frustrated", "disappointed", "neutral":
	default:
		return "neutral", 0.0
	}
	conf, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		conf = 0.0
	}
	return emotion, conf
}
