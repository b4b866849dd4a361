package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job is a single tracked application. Title and company are the only
// required fields; everything else is optional.
type Job struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`

	JobTitle       string `gorm:"not null" json:"job_title"`
	CompanyName    string `gorm:"not null" json:"company_name"`
	JobLink        string `json:"job_link,omitempty"`
	JobDescription string `gorm:"type:text" json:"job_description,omitempty"`
	Status         string `gorm:"default:'applied'" json:"status"`

	DateAdded   time.Time `gorm:"index" json:"date_added"`
	LastUpdated time.Time `json:"last_updated"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	now := time.Now().UTC()
	if j.DateAdded.IsZero() {
		j.DateAdded = now
	}
	if j.LastUpdated.IsZero() {
		j.LastUpdated = now
	}
	if j.Status == "" {
		j.Status = string(StatusApplied)
	}
	return nil
}

// Conversation is a single chat thread. Metadata is an untyped JSONB
// scratchpad; the orchestrator only ever stores a PendingOperation in it.
type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID        uuid.UUID         `gorm:"type:uuid;index;not null" json:"user_id"`
	Title         string            `json:"title,omitempty"`
	Metadata      datatypes.JSONMap `json:"metadata"`
	LastMessageAt *time.Time        `gorm:"index" json:"last_message_at,omitempty"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Message is one entry in a conversation log. Append-only; assistant
// messages carry an annotation with the classified intent and action.
type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	ConversationID uuid.UUID         `gorm:"type:uuid;index;not null" json:"conversation_id"`
	UserID         uuid.UUID         `gorm:"type:uuid;not null" json:"user_id"`
	Role           string            `gorm:"not null" json:"role"`
	Content        string            `gorm:"type:text" json:"content"`
	Annotation     datatypes.JSONMap `json:"annotation,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// JobEvent is an audit trail entry for automatic status changes made by the
// email watcher.
type JobEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	JobID     uuid.UUID `gorm:"type:uuid;index" json:"job_id"`
	EventType string    `json:"event_type"`
	Details   string    `gorm:"type:text" json:"details"`
}

func (e *JobEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// User holds the Gmail watcher bookmark. The conversational path never
// touches this table; callers supply a trusted user id directly.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	LastHistoryID uint64 `json:"last_history_id"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// ProcessedEmail records Gmail message ids the watcher has already handled,
// so a full-sync fallback never reprocesses the same email.
type ProcessedEmail struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
