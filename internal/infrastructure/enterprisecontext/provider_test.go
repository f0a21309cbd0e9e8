package enterprisecontext

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/role"
)

type countingSource struct {
	Source
	profileCalls  int
	overviewCalls int
	err           error
}

func (s *countingSource) Profile(ctx context.Context, id string) (*Profile, error) {
	s.profileCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.Source.Profile(ctx, id)
}

func (s *countingSource) Overview(ctx context.Context, staleBefore time.Time) (Overview, error) {
	s.overviewCalls++
	return s.Source.Overview(ctx, staleBefore)
}

func demoSource() *countingSource {
	lastReport := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	return &countingSource{Source: NewStaticSource(
		Profile{ID: "ent_demo", Name: "Atelier Démo SAS", Sector: "Industrie", Size: "PME",
			ComplianceScore: 72, PendingDocuments: 3, KPICount: 12, LastReportAt: &lastReport},
		Profile{ID: "ent_other", Name: "Autre SARL", ComplianceScore: 50, PendingDocuments: 1},
	)}
}

func newProvider(t *testing.T, source Source, ttl time.Duration) (*Provider, *time.Time) {
	t.Helper()
	p, err := NewProvider(source, 8, ttl, zerolog.Nop())
	require.NoError(t, err)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	return p, &now
}

func TestEnterpriseUserGetsProfile(t *testing.T) {
	p, _ := newProvider(t, demoSource(), time.Minute)

	ctx, err := p.EnterpriseContext(context.Background(), conversation.Owner{UserID: "u1", Role: role.Entreprise, EnterpriseID: "ent_demo"})
	require.NoError(t, err)

	assert.True(t, ctx.HasDatabaseAccess)
	assert.Equal(t, "Atelier Démo SAS", ctx.Attributes["enterprise_name"])
	assert.Contains(t, ctx.Summary, "Score de conformité : 72/100")
	assert.Contains(t, ctx.Summary, "Dernier rapport : 31/03/2026")
}

func TestUnknownOrMissingEnterpriseHasNoAccess(t *testing.T) {
	p, _ := newProvider(t, demoSource(), time.Minute)

	ctx, err := p.EnterpriseContext(context.Background(), conversation.Owner{UserID: "u1", Role: role.Entreprise})
	require.NoError(t, err)
	assert.False(t, ctx.HasDatabaseAccess)

	ctx, err = p.EnterpriseContext(context.Background(), conversation.Owner{UserID: "u1", Role: role.Entreprise, EnterpriseID: "ent_ghost"})
	require.NoError(t, err)
	assert.False(t, ctx.HasDatabaseAccess)
}

func TestAdminGetsOverview(t *testing.T) {
	p, _ := newProvider(t, demoSource(), time.Minute)

	ctx, err := p.EnterpriseContext(context.Background(), conversation.Owner{UserID: "a1", Role: role.Admin})
	require.NoError(t, err)

	assert.True(t, ctx.HasDatabaseAccess)
	assert.Equal(t, int64(2), ctx.Attributes["enterprises"])
	assert.Equal(t, int64(4), ctx.Attributes["pending_documents"])
	assert.Equal(t, int64(1), ctx.Attributes["stale_reports"])
	assert.Contains(t, ctx.Summary, "Score de conformité moyen : 61.0/100")
}

func TestResultsAreCachedUntilExpiry(t *testing.T) {
	source := demoSource()
	p, now := newProvider(t, source, time.Minute)
	owner := conversation.Owner{UserID: "u1", Role: role.Entreprise, EnterpriseID: "ent_demo"}

	for i := 0; i < 3; i++ {
		_, err := p.EnterpriseContext(context.Background(), owner)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, source.profileCalls)

	*now = now.Add(2 * time.Minute)
	_, err := p.EnterpriseContext(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 2, source.profileCalls)

	p.Invalidate("ent_demo")
	_, err = p.EnterpriseContext(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 3, source.profileCalls)
}

func TestSourceErrorsAreReturnedAndNotCached(t *testing.T) {
	source := demoSource()
	source.err = errors.New("connection refused")
	p, _ := newProvider(t, source, time.Minute)
	owner := conversation.Owner{UserID: "u1", Role: role.Entreprise, EnterpriseID: "ent_demo"}

	_, err := p.EnterpriseContext(context.Background(), owner)
	assert.Error(t, err)

	source.err = nil
	ctx, err := p.EnterpriseContext(context.Background(), owner)
	require.NoError(t, err)
	assert.True(t, ctx.HasDatabaseAccess)
	assert.Equal(t, 2, source.profileCalls)
}
