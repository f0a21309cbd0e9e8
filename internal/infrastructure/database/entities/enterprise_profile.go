package entities

import "time"

// EnterpriseProfile is the read model of an enterprise used to enrich prompts.
type EnterpriseProfile struct {
	ID               string     `gorm:"type:varchar(64);primaryKey"`
	Name             string     `gorm:"type:varchar(256);not null"`
	Sector           string     `gorm:"type:varchar(128)"`
	Size             string     `gorm:"type:varchar(64)"`
	ComplianceScore  float64    `gorm:"not null;default:0"`
	PendingDocuments int        `gorm:"not null;default:0"`
	KPICount         int        `gorm:"not null;default:0"`
	LastReportAt     *time.Time
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (EnterpriseProfile) TableName() string {
	return "enterprise_profiles"
}
