package role

import (
	"context"
	"strings"
	"time"

	"github.com/trackimpact/support-api/internal/domain/ratelimit"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

// Role identifies the kind of TrackImpact account behind a request.
type Role string

const (
	Admin      Role = "admin"
	Entreprise Role = "entreprise"
)

// Strategy gathers every behaviour that differs between roles.
type Strategy struct {
	Role          Role
	Quota         ratelimit.Window
	CanEscalate   bool
	// CanResolve allows closing conversations after a support follow-up.
	CanResolve    bool
	PromptContext string
}

var strategies = map[Role]Strategy{
	Admin: {
		Role:        Admin,
		Quota:       ratelimit.Window{Name: "chat:admin", Limit: 100, Period: 15 * time.Minute},
		CanEscalate: false,
		CanResolve:  true,
		PromptContext: "Tu assistes un administrateur de la plateforme TrackImpact. " +
			"Il supervise plusieurs entreprises, leurs indicateurs de conformité et leurs rapports d'impact. " +
			"Réponds de façon précise et opérationnelle.",
	},
	Entreprise: {
		Role:        Entreprise,
		Quota:       ratelimit.Window{Name: "chat:entreprise", Limit: 30, Period: 15 * time.Minute},
		CanEscalate: true,
		CanResolve:  false,
		PromptContext: "Tu assistes un utilisateur d'une entreprise cliente de TrackImpact. " +
			"Il renseigne ses documents de conformité, ses KPI et consulte ses rapports d'impact. " +
			"Réponds simplement et propose de contacter le support si le problème persiste.",
	},
}

// Parse converts raw input into a known role.
func Parse(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := strategies[r]
	return r, ok
}

// For returns the strategy of a role.
func For(ctx context.Context, r Role) (Strategy, error) {
	strategy, ok := strategies[r]
	if !ok {
		return Strategy{}, platformerrors.NewValidationError(ctx, platformerrors.LayerDomain, "role",
			"role must be admin or entreprise", "4f0c2a1e-7d43-4b8e-9a61-2c5d0e9b7f13")
	}
	return strategy, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := strategies[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}
