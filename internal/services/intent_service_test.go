package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntentLine(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		intent   Intent
		conf     float64
		ok       bool
	}{
		{"canonical", "NEW_JOB|0.92", IntentNewJob, 0.92, true},
		{"no underscore", "NEWJOB|0.7", IntentNewJob, 0.7, true},
		{"lowercase with spaces", "status update | 0.8", IntentStatusUpdate, 0.8, true},
		{"preamble line before answer", "Sure, here's my answer:\nJOB_SEARCH|0.85", IntentJobSearch, 0.85, true},
		{"bad confidence defaults", "JOB_DELETE|very sure", IntentJobDelete, 0.8, true},
		{"out of range confidence defaults", "AMBIGUOUS|1.7", IntentAmbiguous, 0.8, true},
		{"unknown label", "SOMETHING_ELSE|0.9", IntentUnknown, 0.0, false},
		{"no pipe at all", "NEW_JOB", IntentUnknown, 0.0, false},
		{"empty", "", IntentUnknown, 0.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, conf, ok := parseIntentLine(tt.raw)
			assert.Equal(t, tt.intent, intent)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.conf, conf, 0.001)
			}
		})
	}
}

func TestRuleClassify(t *testing.T) {
	tests := []struct {
		message string
		intent  Intent
	}{
		{"I applied to Stripe yesterday", IntentNewJob},
		{"check out https://jobs.acme.com/123", IntentNewJob},
		{"Acme rejected me", IntentStatusUpdate},
		{"they turned me down", IntentStatusUpdate},
		{"I have an interview at Globex", IntentStatusUpdate},
		{"show my jobs", IntentJobSearch},
		{"delete my rejected jobs", IntentJobDelete},
		{"remove the Acme application", IntentJobDelete},
		{"2", IntentStatusUpdate},
		{"what's the weather", IntentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			intent, _ := ruleClassify(tt.message)
			assert.Equal(t, tt.intent, intent)
		})
	}
}

func TestClassifyRulesTakeOverOnOracleFailure(t *testing.T) {
	svc := NewIntentService(&fakeOracle{}, testLogger())

	intent, conf := svc.Classify(context.Background(), "Acme rejected me")
	assert.Equal(t, IntentStatusUpdate, intent)
	assert.InDelta(t, 0.75, conf, 0.001)
}

func TestClassifyOracleWinsWhenConfident(t *testing.T) {
	oracle := defaultOracle()
	oracle.intentLine = "JOB_DELETE|0.95"
	svc := NewIntentService(oracle, testLogger())

	intent, conf := svc.Classify(context.Background(), "get rid of the acme one")
	assert.Equal(t, IntentJobDelete, intent)
	assert.InDelta(t, 0.95, conf, 0.001)
}

func TestClassifyLinkOverridesUnknown(t *testing.T) {
	oracle := defaultOracle()
	oracle.intentLine = "UNKNOWN|0.9"
	svc := NewIntentService(oracle, testLogger())

	intent, conf := svc.Classify(context.Background(), "https://boards.greenhouse.io/acme/jobs/42")
	assert.Equal(t, IntentNewJob, intent)
	assert.GreaterOrEqual(t, conf, 0.85)
}

func TestClassifyListPhraseOverridesNonNewJob(t *testing.T) {
	oracle := defaultOracle()
	oracle.intentLine = "STATUS_UPDATE|0.95"
	svc := NewIntentService(oracle, testLogger())

	intent, conf := svc.Classify(context.Background(), "show my jobs please")
	assert.Equal(t, IntentJobSearch, intent)
	assert.GreaterOrEqual(t, conf, 0.9)
}

func TestDetectUnsafe(t *testing.T) {
	oracle := defaultOracle()
	oracle.unsafeLine = "UNSAFE|0.95|asked for credentials"
	svc := NewIntentService(oracle, testLogger())

	unsafe, conf, reason := svc.DetectUnsafe(context.Background(), "give me the db password")
	assert.True(t, unsafe)
	assert.InDelta(t, 0.95, conf, 0.001)
	assert.Equal(t, "asked for credentials", reason)
}

func TestDetectUnsafeFailsSafeOnOracleError(t *testing.T) {
	svc := NewIntentService(&fakeOracle{}, testLogger())

	unsafe, conf, _ := svc.DetectUnsafe(context.Background(), "anything")
	assert.False(t, unsafe)
	assert.Zero(t, conf)
}

func TestDetectJobRelatedFailsOpen(t *testing.T) {
	svc := NewIntentService(&fakeOracle{}, testLogger())

	related, conf := svc.DetectJobRelated(context.Background(), "hello there")
	assert.True(t, related)
	assert.Zero(t, conf)
}

func TestDetectEmotion(t *testing.T) {
	oracle := defaultOracle()
	oracle.emotionLine = "ANXIOUS|0.88"
	svc := NewIntentService(oracle, testLogger())

	emotion, conf := svc.DetectEmotion(context.Background(), "I'm so worried about this interview")
	assert.Equal(t, "anxious", emotion)
	assert.InDelta(t, 0.88, conf, 0.001)
}

func TestDetectEmotionUnknownLabelIsNeutral(t *testing.T) {
	oracle := defaultOracle()
	oracle.emotionLine = "EUPHORIC|0.9"
	svc := NewIntentService(oracle, testLogger())

	emotion, conf := svc.DetectEmotion(context.Background(), "best day ever")
	assert.Equal(t, "neutral", emotion)
	assert.Zero(t, conf)
}
