package conversation

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/infrastructure/database/entities"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

// PostgresRepository persists conversations via PostgreSQL using GORM.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository creates a repository backed by the provided DB.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	record := toEntity(conv)
	messages := toMessageEntities(conv.ID, conv.Messages, 0)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		if len(messages) > 0 {
			if err := tx.Create(&messages).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dbError(ctx, err, "failed to insert conversation", "2c7e0b94-5a1f-4d38-b6e3-9f0a4d1c8e27")
	}
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var record entities.Conversation
	err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundError(ctx, id)
		}
		return nil, dbError(ctx, err, "failed to load conversation", "8b1d4f6a-3e92-4c07-a5d8-6f2e1b9c0a73")
	}

	var messages []entities.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", id).
		Order("sequence ASC").
		Find(&messages).Error; err != nil {
		return nil, dbError(ctx, err, "failed to load messages", "d5a0c3e7-1f84-4b29-9e6d-0c7b2a4f8d15")
	}

	conv := toDomain(record)
	conv.Messages = toDomainMessages(messages)
	return conv, nil
}

func (r *PostgresRepository) AppendMessages(ctx context.Context, id string, messages []domain.Message, at time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockActive(ctx, tx, id); err != nil {
			return err
		}
		next, err := nextSequence(tx, id)
		if err != nil {
			return err
		}
		rows := toMessageEntities(id, messages, next)
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		return tx.Model(&entities.Conversation{}).
			Where("id = ?", id).
			Updates(map[string]any{"last_activity": at, "updated_at": at}).Error
	})
	return wrapTxError(ctx, err, "failed to append messages", "4e8f2a61-9c03-4d7b-b1e5-7a6d0f3c9b28")
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, filter domain.ListFilter) ([]domain.Digest, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("owner_id = ? AND is_active = ?", filter.OwnerID, true)
		if filter.Role != nil {
			db = db.Where("owner_role = ?", string(*filter.Role))
		}
		return db
	}

	var (
		total   int64
		records []conversationRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.db.WithContext(gctx).Model(&entities.Conversation{}).Scopes(scope).Count(&total).Error
	})
	g.Go(func() error {
		return r.db.WithContext(gctx).
			Model(&entities.Conversation{}).
			Scopes(scope).
			Select("support_conversations.*, (SELECT COUNT(*) FROM support_messages m WHERE m.conversation_id = support_conversations.id) AS message_count").
			Order("last_activity DESC, id DESC").
			Offset(filter.Offset).
			Limit(filter.Limit).
			Scan(&records).Error
	})
	if err := g.Wait(); err != nil {
		return nil, 0, dbError(ctx, err, "failed to list conversations", "a9c6e1d3-0b72-4f58-8e4a-2d1f7c5b9e06")
	}

	if len(records) == 0 {
		return []domain.Digest{}, total, nil
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}

	var lastMessages []entities.Message
	if err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (conversation_id) * FROM support_messages
			WHERE conversation_id IN ? ORDER BY conversation_id, sequence DESC`, ids).
		Scan(&lastMessages).Error; err != nil {
		return nil, 0, dbError(ctx, err, "failed to load last messages", "f1b7d2c8-6e49-4a03-9d5c-8b0e3a7f1c62")
	}
	lastByConversation := make(map[string]entities.Message, len(lastMessages))
	for _, m := range lastMessages {
		lastByConversation[m.ConversationID] = m
	}

	digests := make([]domain.Digest, 0, len(records))
	for _, rec := range records {
		digest := domain.Digest{
			Conversation: *toDomain(rec.Conversation),
			MessageCount: rec.MessageCount,
		}
		if m, ok := lastByConversation[rec.ID]; ok {
			last := toDomainMessage(m)
			digest.LastMessage = &last
		}
		digests = append(digests, digest)
	}
	return digests, total, nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&entities.Conversation{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"is_active": false, "deleted_at": at, "updated_at": at})
	if result.Error != nil {
		return dbError(ctx, result.Error, "failed to delete conversation", "0e5a9c27-4d1b-4f86-a3c0-6b8d2e7f1a94")
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError(ctx, id)
	}
	return nil
}

func (r *PostgresRepository) MarkEscalated(ctx context.Context, id, ticketID string, confirmation domain.Message, at time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := lockActive(ctx, tx, id)
		if err != nil {
			return err
		}
		if record.Escalated {
			return domain.AlreadyEscalatedError(ctx, id)
		}
		next, err := nextSequence(tx, id)
		if err != nil {
			return err
		}
		rows := toMessageEntities(id, []domain.Message{confirmation}, next)
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		return tx.Model(&entities.Conversation{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"escalated":     true,
				"escalation_id": ticketID,
				"last_activity": at,
				"updated_at":    at,
			}).Error
	})
	return wrapTxError(ctx, err, "failed to mark conversation escalated", "6d3b8e05-2a7c-4e91-b4f6-1c9a0d5e7b38")
}

func (r *PostgresRepository) SetResolved(ctx context.Context, id string, resolved bool, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&entities.Conversation{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"resolved": resolved, "updated_at": at})
	if result.Error != nil {
		return dbError(ctx, result.Error, "failed to update conversation", "b2e9f4a6-8c15-4d30-9a7e-3f6c0b1d8e52")
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError(ctx, id)
	}
	return nil
}

// lockActive loads the conversation row FOR UPDATE so concurrent writers queue behind it.
func lockActive(ctx context.Context, tx *gorm.DB, id string) (*entities.Conversation, error) {
	var record entities.Conversation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_active = ?", id, true).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundError(ctx, id)
		}
		return nil, err
	}
	return &record, nil
}

func nextSequence(tx *gorm.DB, id string) (int, error) {
	var maxSeq int
	err := tx.Model(&entities.Message{}).
		Where("conversation_id = ?", id).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSeq).Error
	return maxSeq, err
}

func wrapTxError(ctx context.Context, err error, message, code string) error {
	if err == nil {
		return nil
	}
	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		return err
	}
	return dbError(ctx, err, message, code)
}

func dbError(ctx context.Context, err error, message, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, message, err, code)
}

var _ domain.Repository = (*PostgresRepository)(nil)
