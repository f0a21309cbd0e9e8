package enterprisecontext

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/trackimpact/support-api/internal/infrastructure/database/entities"
)

// Profile is the read model of one enterprise.
type Profile struct {
	ID               string
	Name             string
	Sector           string
	Size             string
	ComplianceScore  float64
	PendingDocuments int
	KPICount         int
	LastReportAt     *time.Time
}

// Overview aggregates every enterprise for administrators.
type Overview struct {
	Enterprises      int64
	AverageScore     float64
	PendingDocuments int64
	StaleReports     int64
}

// Source reads enterprise data. Profile returns (nil, nil) for unknown enterprises.
type Source interface {
	Profile(ctx context.Context, enterpriseID string) (*Profile, error)
	Overview(ctx context.Context, staleBefore time.Time) (Overview, error)
}

// GormSource reads enterprise_profiles.
type GormSource struct {
	db *gorm.DB
}

func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db}
}

func (s *GormSource) Profile(ctx context.Context, enterpriseID string) (*Profile, error) {
	var row entities.EnterpriseProfile
	err := s.db.WithContext(ctx).Where("id = ?", enterpriseID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Profile{
		ID:               row.ID,
		Name:             row.Name,
		Sector:           row.Sector,
		Size:             row.Size,
		ComplianceScore:  row.ComplianceScore,
		PendingDocuments: row.PendingDocuments,
		KPICount:         row.KPICount,
		LastReportAt:     row.LastReportAt,
	}, nil
}

func (s *GormSource) Overview(ctx context.Context, staleBefore time.Time) (Overview, error) {
	var out Overview
	err := s.db.WithContext(ctx).
		Model(&entities.EnterpriseProfile{}).
		Select(`COUNT(*) AS enterprises,
			COALESCE(AVG(compliance_score), 0) AS average_score,
			COALESCE(SUM(pending_documents), 0) AS pending_documents,
			COUNT(*) FILTER (WHERE last_report_at IS NULL OR last_report_at < ?) AS stale_reports`, staleBefore).
		Scan(&out).Error
	if err != nil {
		return Overview{}, err
	}
	return out, nil
}

// StaticSource serves fixed profiles when no database is configured.
type StaticSource struct {
	profiles map[string]Profile
}

func NewStaticSource(profiles ...Profile) *StaticSource {
	s := &StaticSource{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	return s
}

func (s *StaticSource) Profile(_ context.Context, enterpriseID string) (*Profile, error) {
	p, ok := s.profiles[enterpriseID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *StaticSource) Overview(_ context.Context, staleBefore time.Time) (Overview, error) {
	var o Overview
	var total float64
	for _, p := range s.profiles {
		o.Enterprises++
		total += p.ComplianceScore
		o.PendingDocuments += int64(p.PendingDocuments)
		if p.LastReportAt == nil || p.LastReportAt.Before(staleBefore) {
			o.StaleReports++
		}
	}
	if o.Enterprises > 0 {
		o.AverageScore = total / float64(o.Enterprises)
	}
	return o, nil
}
