package dtos

import "github.com/google/uuid"

// UserMessage is one inbound conversational turn.
type UserMessage struct {
	Message        string     `json:"message" binding:"required"`
	UserID         uuid.UUID  `json:"user_id" binding:"required"`
	ConversationID *uuid.UUID `json:"conversation_id"`
}

// AgentResponse is what a turn resolves to. ActionTaken tells the caller
// what actually happened; RequiresClarification means the agent is waiting
// on more input before it can act.
type AgentResponse struct {
	Response              string     `json:"response"`
	ActionTaken           string     `json:"action_taken"`
	Intent                string     `json:"intent"`
	Confidence            float64    `json:"confidence"`
	JobID                 *uuid.UUID `json:"job_id,omitempty"`
	ConversationID        *uuid.UUID `json:"conversation_id,omitempty"`
	RequiresClarification bool       `json:"requires_clarification"`
	ClarificationPrompt   string     `json:"clarification_prompt,omitempty"`
	SuggestedActions      []string   `json:"suggested_actions,omitempty"`
}

// ActionTaken values.
const (
	ActionJobCreated          = "job_created"
	ActionStatusUpdated       = "status_updated"
	ActionJobsListed          = "jobs_listed"
	ActionJobsDeleted         = "jobs_deleted"
	ActionBulkUpdated         = "bulk_updated"
	ActionBulkUpdateStaged    = "bulk_update_staged"
	ActionDeletionStaged      = "deletion_staged"
	ActionClarificationNeeded = "clarification_needed"
	ActionInformationProvided = "information_provided"
	ActionError               = "error"
)
