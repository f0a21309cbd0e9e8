package enterprisecontext

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/role"
	"github.com/trackimpact/support-api/internal/domain/router"
	"github.com/trackimpact/support-api/internal/infrastructure/metrics"
)

// reports older than this count as stale in the admin overview
const staleReportAge = 365 * 24 * time.Hour

const overviewKey = "admin:overview"

type cacheEntry struct {
	value     router.EnterpriseContext
	expiresAt time.Time
}

// Provider builds read-only prompt context scoped to the caller, caching results in an LRU.
type Provider struct {
	source Source
	cache  *lru.Cache
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
	mu     sync.Mutex
}

func NewProvider(source Source, size int, ttl time.Duration, log zerolog.Logger) (*Provider, error) {
	if size <= 0 {
		size = 512
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Provider{
		source: source,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
		log:    log.With().Str("component", "enterprise-context").Logger(),
	}, nil
}

// EnterpriseContext returns the enterprise profile for enterprise users and an aggregate
// overview for administrators. Callers without an enterprise get no database access.
func (p *Provider) EnterpriseContext(ctx context.Context, owner conversation.Owner) (router.EnterpriseContext, error) {
	var key string
	switch {
	case owner.Role == role.Admin:
		key = overviewKey
	case strings.TrimSpace(owner.EnterpriseID) != "":
		key = "enterprise:" + owner.EnterpriseID
	default:
		return router.EnterpriseContext{}, nil
	}

	if cached, ok := p.lookup(key); ok {
		metrics.EnterpriseContextCache.WithLabelValues(metrics.Outcome(true)).Inc()
		return cached, nil
	}
	metrics.EnterpriseContextCache.WithLabelValues(metrics.Outcome(false)).Inc()

	var (
		result router.EnterpriseContext
		err    error
	)
	if key == overviewKey {
		result, err = p.overview(ctx)
	} else {
		result, err = p.profile(ctx, owner.EnterpriseID)
	}
	if err != nil {
		return router.EnterpriseContext{}, err
	}

	p.store(key, result)
	return result, nil
}

// Invalidate drops the cached context of one enterprise.
func (p *Provider) Invalidate(enterpriseID string) {
	p.cache.Remove("enterprise:" + enterpriseID)
}

func (p *Provider) profile(ctx context.Context, enterpriseID string) (router.EnterpriseContext, error) {
	profile, err := p.source.Profile(ctx, enterpriseID)
	if err != nil {
		return router.EnterpriseContext{}, fmt.Errorf("load enterprise profile: %w", err)
	}
	if profile == nil {
		p.log.Debug().Str("enterprise_id", enterpriseID).Msg("no profile for enterprise")
		return router.EnterpriseContext{}, nil
	}

	attributes := map[string]any{
		"enterprise_id":     profile.ID,
		"enterprise_name":   profile.Name,
		"sector":            profile.Sector,
		"size":              profile.Size,
		"compliance_score":  profile.ComplianceScore,
		"pending_documents": profile.PendingDocuments,
		"kpi_count":         profile.KPICount,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Entreprise : %s", profile.Name)
	if profile.Sector != "" {
		fmt.Fprintf(&b, " (secteur %s", profile.Sector)
		if profile.Size != "" {
			fmt.Fprintf(&b, ", %s", profile.Size)
		}
		b.WriteString(")")
	}
	fmt.Fprintf(&b, "\nScore de conformité : %.0f/100", profile.ComplianceScore)
	fmt.Fprintf(&b, "\nDocuments en attente : %d", profile.PendingDocuments)
	fmt.Fprintf(&b, "\nKPI suivis : %d", profile.KPICount)
	if profile.LastReportAt != nil {
		attributes["last_report_at"] = profile.LastReportAt.UTC().Format(time.RFC3339)
		fmt.Fprintf(&b, "\nDernier rapport : %s", profile.LastReportAt.Format("02/01/2006"))
	} else {
		b.WriteString("\nDernier rapport : aucun")
	}

	return router.EnterpriseContext{HasDatabaseAccess: true, Attributes: attributes, Summary: b.String()}, nil
}

func (p *Provider) overview(ctx context.Context) (router.EnterpriseContext, error) {
	o, err := p.source.Overview(ctx, p.now().Add(-staleReportAge))
	if err != nil {
		return router.EnterpriseContext{}, fmt.Errorf("load enterprise overview: %w", err)
	}

	summary := fmt.Sprintf("Entreprises suivies : %d\nScore de conformité moyen : %.1f/100\n"+
		"Documents en attente (total) : %d\nEntreprises sans rapport depuis un an : %d",
		o.Enterprises, o.AverageScore, o.PendingDocuments, o.StaleReports)

	attributes := map[string]any{
		"enterprises":       o.Enterprises,
		"average_score":     o.AverageScore,
		"pending_documents": o.PendingDocuments,
		"stale_reports":     o.StaleReports,
	}
	return router.EnterpriseContext{HasDatabaseAccess: true, Attributes: attributes, Summary: summary}, nil
}

func (p *Provider) lookup(key string) (router.EnterpriseContext, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	raw, ok := p.cache.Get(key)
	if !ok {
		return router.EnterpriseContext{}, false
	}
	entry := raw.(cacheEntry)
	if p.now().After(entry.expiresAt) {
		p.cache.Remove(key)
		return router.EnterpriseContext{}, false
	}
	return entry.value, true
}

func (p *Provider) store(key string, value router.EnterpriseContext) {
	if p.ttl <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Add(key, cacheEntry{value: value, expiresAt: p.now().Add(p.ttl)})
}

var _ router.ContextProvider = (*Provider)(nil)
