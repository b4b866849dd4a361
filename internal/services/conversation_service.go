package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/justsurfingit/jobtrackai/internal/logger"
	"github.com/justsurfingit/jobtrackai/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConversationStore persists the per-conversation message log and the
// metadata scratchpad the orchestrator uses for pending operations.
type ConversationStore interface {
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Conversation, error)
	GetOrCreateRecent(ctx context.Context, userID uuid.UUID) (*models.Conversation, error)
	AppendMessage(ctx context.Context, conversationID, userID uuid.UUID, role, content string, annotation map[string]any) (*models.Message, error)
	GetRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error)
	GetMetadata(ctx context.Context, conversationID uuid.UUID) (map[string]any, error)
	UpdateMetadata(ctx context.Context, conversationID uuid.UUID, metadata map[string]any) error
}

type ConversationService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationService(db *gorm.DB, baseLog *logger.Logger) *ConversationService {
	return &ConversationService{
		db:  db,
		log: baseLog.With("service", "ConversationService"),
	}
}

func (s *ConversationService) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetOrCreateRecent returns the user's most recent conversation, creating
// one lazily on first contact. One active thread per user by design.
func (s *ConversationService) GetOrCreateRecent(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_message_at DESC, updated_at DESC").
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = models.Conversation{
		UserID:   userID,
		Metadata: datatypes.JSONMap{},
	}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, err
	}
	s.log.Info("Created conversation", "conversation_id", conv.ID, "user_id", userID)
	return &conv, nil
}

// AppendMessage writes one log entry and bumps conversation recency.
// Messages are append-only; nothing ever mutates or deletes them.
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID, userID uuid.UUID, role, content string, annotation map[string]any) (*models.Message, error) {
	msg := models.Message{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
	}
	if annotation != nil {
		msg.Annotation = datatypes.JSONMap(annotation)
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{"last_message_at": now, "updated_at": now}).Error; err != nil {
		// Recency is advisory; the message itself is already persisted.
		s.log.Warn("Failed to bump conversation recency", "error", err)
	}
	return &msg, nil
}

// GetRecentMessages returns the last limit messages in chronological order.
func (s *ConversationService) GetRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 10
	}
	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *ConversationService) GetMetadata(ctx context.Context, conversationID uuid.UUID) (map[string]any, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Select("metadata").
		Where("id = ?", conversationID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	if conv.Metadata == nil {
		return map[string]any{}, nil
	}
	return conv.Metadata, nil
}

func (s *ConversationService) UpdateMetadata(ctx context.Context, conversationID uuid.UUID, metadata map[string]any) error {
	return s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"metadata":   datatypes.JSONMap(metadata),
			"updated_at": time.Now().UTC(),
		}).Error
}
