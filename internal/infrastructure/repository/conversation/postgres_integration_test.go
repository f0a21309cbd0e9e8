//go:build integration

package conversation_test

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	domain "github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/role"
	"github.com/trackimpact/support-api/internal/infrastructure/database"
	repo "github.com/trackimpact/support-api/internal/infrastructure/repository/conversation"
	"github.com/trackimpact/support-api/internal/utils/idgen"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/infrastructure/...
func openDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.Connect(database.Config{DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(context.Background(), db, "test", zerolog.Nop()))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newOwner(t *testing.T) domain.Owner {
	t.Helper()
	id, err := idgen.GenerateSecureID("usr", 12)
	require.NoError(t, err)
	return domain.Owner{UserID: id, Role: role.Entreprise, EnterpriseID: "ent_demo"}
}

func TestIntegration_PostgresConcurrentAppendsStayPaired(t *testing.T) {
	svc := domain.NewService(repo.NewPostgresRepository(openDatabase(t)), zerolog.Nop())
	ctx := context.Background()
	owner := newOwner(t)

	conv, err := svc.Create(ctx, owner)
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Append(ctx, owner, conv.ID,
				domain.Message{Role: domain.MessageRoleUser, Content: fmt.Sprintf("question %d", i)},
				domain.Message{Role: domain.MessageRoleAssistant, Content: fmt.Sprintf("réponse %d", i)},
			)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := svc.Get(ctx, owner, conv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2*writers)
	for i := 0; i < len(stored.Messages); i += 2 {
		var n int
		_, err := fmt.Sscanf(stored.Messages[i].Content, "question %d", &n)
		require.NoError(t, err)
		assert.Equal(t, domain.MessageRoleAssistant, stored.Messages[i+1].Role)
		assert.Equal(t, fmt.Sprintf("réponse %d", n), stored.Messages[i+1].Content)
	}
}

func TestIntegration_PostgresMarkEscalatedOnce(t *testing.T) {
	svc := domain.NewService(repo.NewPostgresRepository(openDatabase(t)), zerolog.Nop())
	ctx := context.Background()
	owner := newOwner(t)

	conv, err := svc.Start(ctx, owner, nil, domain.Message{Role: domain.MessageRoleUser, Content: "Mon export échoue"})
	require.NoError(t, err)

	confirmation := domain.Message{Role: domain.MessageRoleAssistant, Content: "Ticket créé",
		Metadata: domain.EscalationConfirmation{TicketID: "tkt_integration"}}

	_, err = svc.MarkEscalated(ctx, owner, conv.ID, "tkt_integration", confirmation)
	require.NoError(t, err)

	_, err = svc.MarkEscalated(ctx, owner, conv.ID, "tkt_other", confirmation)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict))

	stored, err := svc.Get(ctx, owner, conv.ID)
	require.NoError(t, err)
	assert.True(t, stored.Metadata.Escalated)
	assert.Equal(t, "tkt_integration", stored.Metadata.EscalationID)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, domain.EscalationConfirmation{TicketID: "tkt_integration"}, stored.Messages[1].Metadata)
}

func TestIntegration_PostgresListPastLastPage(t *testing.T) {
	svc := domain.NewService(repo.NewPostgresRepository(openDatabase(t)), zerolog.Nop())
	ctx := context.Background()
	owner := newOwner(t)

	_, err := svc.Start(ctx, owner, nil, domain.Message{Role: domain.MessageRoleUser, Content: "Bonjour"})
	require.NoError(t, err)

	page, err := svc.ListByUser(ctx, owner, domain.ListQuery{Page: math.MaxInt})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, int64(1), page.Total)
}
