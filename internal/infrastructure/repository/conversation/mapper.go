package conversation

import (
	domain "github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/role"
	"github.com/trackimpact/support-api/internal/infrastructure/database/entities"
)

type conversationRow struct {
	entities.Conversation
	MessageCount int
}

func toEntity(conv *domain.Conversation) entities.Conversation {
	return entities.Conversation{
		ID:           conv.ID,
		OwnerID:      conv.OwnerID,
		OwnerRole:    string(conv.OwnerRole),
		EnterpriseID: optional(conv.EnterpriseID),
		Title:        conv.Title,
		Escalated:    conv.Metadata.Escalated,
		EscalationID: optional(conv.Metadata.EscalationID),
		Resolved:     conv.Metadata.Resolved,
		Context:      conv.Metadata.Context,
		IsActive:     conv.IsActive,
		LastActivity: conv.LastActivity,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}
}

func toDomain(record entities.Conversation) *domain.Conversation {
	return &domain.Conversation{
		ID:           record.ID,
		OwnerID:      record.OwnerID,
		OwnerRole:    role.Role(record.OwnerRole),
		EnterpriseID: deref(record.EnterpriseID),
		Title:        record.Title,
		Metadata: domain.Metadata{
			Escalated:    record.Escalated,
			EscalationID: deref(record.EscalationID),
			Resolved:     record.Resolved,
			Context:      record.Context,
		},
		IsActive:     record.IsActive,
		LastActivity: record.LastActivity,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

// toMessageEntities numbers messages after the given sequence.
func toMessageEntities(conversationID string, messages []domain.Message, after int) []entities.Message {
	rows := make([]entities.Message, 0, len(messages))
	for i, m := range messages {
		rows = append(rows, entities.Message{
			ID:             m.ID,
			ConversationID: conversationID,
			Sequence:       after + i + 1,
			Role:           string(m.Role),
			Content:        m.Content,
			Metadata:       domain.MetadataToMap(m.Metadata),
			CreatedAt:      m.Timestamp,
		})
	}
	return rows
}

func toDomainMessages(rows []entities.Message) []domain.Message {
	messages := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, toDomainMessage(row))
	}
	return messages
}

func toDomainMessage(row entities.Message) domain.Message {
	return domain.Message{
		ID:        row.ID,
		Role:      domain.MessageRole(row.Role),
		Content:   row.Content,
		Timestamp: row.CreatedAt,
		Metadata:  domain.MetadataFromMap(row.Metadata),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
