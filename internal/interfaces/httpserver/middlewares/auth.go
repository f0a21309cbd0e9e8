package middlewares

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/trackimpact/support-api/internal/domain"
	"github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/infrastructure/auth"
	"github.com/trackimpact/support-api/internal/interfaces/httpserver/responses"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

const principalContextKey = "principal"

// AuthMiddleware resolves the caller and stores the principal in the gin context.
// A nil validator trusts the gateway identity headers.
func AuthMiddleware(validator *auth.Validator, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := validator.Authenticate(c.Request)
		if err != nil {
			if errors.Is(err, auth.ErrUnknownRole) {
				responses.HandleNewError(c, platformerrors.ErrorTypeForbidden, "Rôle non autorisé", "8e4b2d61-0a9c-4f37-b5e1-3c7d9f0a2b46")
				return
			}
			logger.Warn().Err(err).Str("path", c.FullPath()).Str("method", c.Request.Method).Msg("unauthenticated request")
			responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "Authentification requise", "1d7f3a90-6c25-4e8b-a4f2-9b0e5d3c7a18")
			return
		}

		c.Set(principalContextKey, principal)
		c.Set("user_id", principal.ID)
		c.Next()
	}
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(c *gin.Context) (domain.Principal, bool) {
	val, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := val.(domain.Principal)
	return principal, ok
}

// OwnerFromContext is the conversation scope of the authenticated principal.
func OwnerFromContext(c *gin.Context) conversation.Owner {
	principal, _ := PrincipalFromContext(c)
	return principal.Owner()
}
