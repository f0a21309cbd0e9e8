package ticket

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/trackimpact/support-api/internal/infrastructure/database/entities"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

// PostgresStore writes tickets to the submission_requests table.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, record *Record) error {
	row := toEntity(record)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateKey(err) {
			return duplicateError(ctx, record.ConversationID, err)
		}
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to insert ticket", err, "9a4f2c68-1e07-4b3d-85c9-7d0e6a3b1f92")
	}
	record.CreatedAt = row.CreatedAt
	return nil
}

func (s *PostgresStore) FindByConversation(ctx context.Context, conversationID string) (*Record, error) {
	var row entities.SubmissionRequest
	err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(ctx, conversationID)
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to load ticket", err, "27d8b0e4-6f19-4c5a-b3e2-0a8c7d4f9e61")
	}
	return toRecord(row), nil
}

func (s *PostgresStore) SetExternalRef(ctx context.Context, id, ref string) error {
	result := s.db.WithContext(ctx).Model(&entities.SubmissionRequest{}).Where("id = ?", id).Update("external_ref", ref)
	if result.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to update ticket", result.Error, "b6f1a3d9-0e47-4c82-a5d3-8e2c9f7b1a40")
	}
	if result.RowsAffected == 0 {
		return notFoundError(ctx, id)
	}
	return nil
}

// isDuplicateKey matches the translated gorm error as well as a raw 23505 from the driver.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}

func toEntity(r *Record) entities.SubmissionRequest {
	row := entities.SubmissionRequest{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		RequesterID:    r.RequesterID,
		RequesterEmail: r.RequesterEmail,
		Subject:        r.Subject,
		Details:        r.Details,
		Transcript:     r.Transcript,
		Status:         r.Status,
		Priority:       r.Priority,
		CreatedAt:      r.CreatedAt,
	}
	if r.EnterpriseID != "" {
		enterpriseID := r.EnterpriseID
		row.EnterpriseID = &enterpriseID
	}
	if r.ExternalRef != "" {
		ref := r.ExternalRef
		row.ExternalRef = &ref
	}
	return row
}

func toRecord(row entities.SubmissionRequest) *Record {
	record := &Record{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		RequesterID:    row.RequesterID,
		RequesterEmail: row.RequesterEmail,
		Subject:        row.Subject,
		Details:        row.Details,
		Transcript:     row.Transcript,
		Status:         row.Status,
		Priority:       row.Priority,
		CreatedAt:      row.CreatedAt,
	}
	if row.EnterpriseID != nil {
		record.EnterpriseID = *row.EnterpriseID
	}
	if row.ExternalRef != nil {
		record.ExternalRef = *row.ExternalRef
	}
	return record
}

var _ Store = (*PostgresStore)(nil)
