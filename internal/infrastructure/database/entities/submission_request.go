package entities

import "time"

// SubmissionRequest is a support ticket raised from a conversation. The unique index on
// ConversationID keeps a single ticket per conversation.
type SubmissionRequest struct {
	ID             string    `gorm:"type:varchar(64);primaryKey"`
	ConversationID string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	RequesterID    string    `gorm:"type:varchar(128);not null;index"`
	RequesterEmail string    `gorm:"type:varchar(256)"`
	EnterpriseID   *string   `gorm:"type:varchar(64);index"`
	Subject        string    `gorm:"type:varchar(256);not null"`
	Details        string    `gorm:"type:text;not null"`
	Transcript     string    `gorm:"type:text"`
	Status         string    `gorm:"type:varchar(20);not null;index"`
	Priority       string    `gorm:"type:varchar(20);not null"`
	ExternalRef    *string   `gorm:"type:varchar(128)"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (SubmissionRequest) TableName() string {
	return "submission_requests"
}
