package entities

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Conversation is the persisted conversation header.
type Conversation struct {
	ID           string            `gorm:"type:varchar(64);primaryKey"`
	OwnerID      string            `gorm:"type:varchar(128);not null;index:idx_support_conv_owner_activity,priority:1"`
	OwnerRole    string            `gorm:"type:varchar(20);not null"`
	EnterpriseID *string           `gorm:"type:varchar(64);index"`
	Title        string            `gorm:"type:varchar(256)"`
	Escalated    bool              `gorm:"not null;default:false"`
	EscalationID *string           `gorm:"type:varchar(64)"`
	Resolved     bool              `gorm:"not null;default:false"`
	Context      datatypes.JSONMap `gorm:"type:jsonb"`
	IsActive     bool              `gorm:"not null;default:true"`
	LastActivity time.Time         `gorm:"not null;index:idx_support_conv_owner_activity,priority:2,sort:desc"`
	CreatedAt    time.Time         `gorm:"autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt    `gorm:"index"`
}

func (Conversation) TableName() string {
	return "support_conversations"
}

// Message is one transcript entry; Sequence orders entries within a conversation.
type Message struct {
	ID             string            `gorm:"type:varchar(64);primaryKey"`
	ConversationID string            `gorm:"type:varchar(64);not null;uniqueIndex:idx_support_msg_conv_seq,priority:1"`
	Sequence       int               `gorm:"not null;uniqueIndex:idx_support_msg_conv_seq,priority:2"`
	Role           string            `gorm:"type:varchar(20);not null"`
	Content        string            `gorm:"type:text;not null"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"not null"`
}

func (Message) TableName() string {
	return "support_messages"
}
