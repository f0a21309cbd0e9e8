package conversation

import (
	"encoding/json"
	"time"
)

const EscalationConfirmationType = "escalation_confirmation"

// MessageMetadata records where an assistant message came from. The set of variants is closed:
// KnowledgeBaseHit, DatabaseContextUsed, EscalationConfirmation and Unclassified.
type MessageMetadata interface {
	metadataKind() string
}

// KnowledgeBaseHit marks a reply served from the static knowledge base.
type KnowledgeBaseHit struct {
	Intent  string
	EntryID string
}

// DatabaseContextUsed marks a reply produced by the completion service.
type DatabaseContextUsed struct {
	HasDatabaseAccess bool
	Intent            string
}

// EscalationConfirmation marks the message appended when a ticket is created.
type EscalationConfirmation struct {
	TicketID string
}

// Unclassified keeps metadata of unknown shape as-is.
type Unclassified struct {
	Raw map[string]any
}

func (KnowledgeBaseHit) metadataKind() string       { return "knowledge_base" }
func (DatabaseContextUsed) metadataKind() string    { return "completion" }
func (EscalationConfirmation) metadataKind() string { return EscalationConfirmationType }
func (Unclassified) metadataKind() string           { return "unclassified" }

// MetadataKind names the variant, for logs and metrics.
func MetadataKind(m MessageMetadata) string {
	if m == nil {
		return "none"
	}
	return m.metadataKind()
}

// MetadataToMap renders metadata in its wire shape.
func MetadataToMap(m MessageMetadata) map[string]any {
	switch v := m.(type) {
	case KnowledgeBaseHit:
		out := map[string]any{"fromKnowledgeBase": true}
		if v.Intent != "" {
			out["intent"] = v.Intent
		}
		if v.EntryID != "" {
			out["entryId"] = v.EntryID
		}
		return out
	case DatabaseContextUsed:
		out := map[string]any{
			"dbContext": map[string]any{"hasDatabaseAccess": v.HasDatabaseAccess},
		}
		if v.Intent != "" {
			out["intent"] = v.Intent
		}
		return out
	case EscalationConfirmation:
		return map[string]any{
			"type":     EscalationConfirmationType,
			"ticketId": v.TicketID,
		}
	case Unclassified:
		if len(v.Raw) == 0 {
			return nil
		}
		out := make(map[string]any, len(v.Raw))
		for k, val := range v.Raw {
			out[k] = val
		}
		return out
	default:
		return nil
	}
}

// MetadataFromMap classifies a wire-shaped map into one of the variants.
func MetadataFromMap(raw map[string]any) MessageMetadata {
	if len(raw) == 0 {
		return nil
	}

	intent, _ := raw["intent"].(string)

	if fromKB, ok := raw["fromKnowledgeBase"].(bool); ok && fromKB {
		entryID, _ := raw["entryId"].(string)
		return KnowledgeBaseHit{Intent: intent, EntryID: entryID}
	}

	if dbContext, ok := raw["dbContext"].(map[string]any); ok {
		if access, ok := dbContext["hasDatabaseAccess"].(bool); ok {
			return DatabaseContextUsed{HasDatabaseAccess: access, Intent: intent}
		}
	}

	if kind, _ := raw["type"].(string); kind == EscalationConfirmationType {
		ticketID, _ := raw["ticketId"].(string)
		return EscalationConfirmation{TicketID: ticketID}
	}

	return Unclassified{Raw: raw}
}

type messageJSON struct {
	ID        string         `json:"id"`
	Role      MessageRole    `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		Metadata:  MetadataToMap(m.Metadata),
	})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Message{
		ID:        raw.ID,
		Role:      raw.Role,
		Content:   raw.Content,
		Timestamp: raw.Timestamp,
		Metadata:  MetadataFromMap(raw.Metadata),
	}
	return nil
}
