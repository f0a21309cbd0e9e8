//go:build integration

package ticket_test

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackimpact/support-api/internal/infrastructure/database"
	"github.com/trackimpact/support-api/internal/infrastructure/ticket"
	"github.com/trackimpact/support-api/internal/utils/idgen"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

func TestIntegration_PostgresStoreOneTicketPerConversation(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.Connect(database.Config{DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(context.Background(), db, "test", zerolog.Nop()))

	ctx := context.Background()
	system := ticket.NewSystem(ticket.NewPostgresStore(db), nil, zerolog.Nop())
	convID, err := idgen.ConversationID()
	require.NoError(t, err)

	id, err := system.CreateTicket(ctx, newRequest(convID, "Le tableau de bord reste vide"))
	require.NoError(t, err)

	_, err = system.CreateTicket(ctx, newRequest(convID, "Second signalement"))
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict))

	found, err := system.TicketFor(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, id, found)
}
