package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/trackimpact/support-api/internal/domain"
	"github.com/trackimpact/support-api/internal/domain/role"
)

// Gateway headers trusted when token validation is disabled.
const (
	HeaderUserID       = "X-User-ID"
	HeaderUserEmail    = "X-User-Email"
	HeaderUserRole     = "X-User-Role"
	HeaderEnterpriseID = "X-Enterprise-ID"
)

var (
	ErrMissingCredentials = errors.New("authentication required")
	ErrUnknownRole        = errors.New("role must be admin or entreprise")
)

// Options configures token validation.
type Options struct {
	Issuer    string
	Audience  string
	RoleClaim string
	Methods   []string
}

// Validator turns a request into a Principal, either from a bearer token or, when
// token validation is disabled, from gateway headers.
type Validator struct {
	keyfunc jwt.Keyfunc
	opts    Options
	log     zerolog.Logger
}

// NewValidator fetches the JWKS and keeps it refreshed until ctx ends.
func NewValidator(ctx context.Context, jwksURL string, opts Options, log zerolog.Logger) (*Validator, error) {
	logger := log.With().Str("component", "auth").Logger()
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Error().Err(err).Msg("jwks refresh error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	if len(opts.Methods) == 0 {
		opts.Methods = []string{"RS256", "RS384", "RS512"}
	}
	return NewValidatorWithKeyfunc(jwks.Keyfunc, opts, logger), nil
}

// NewValidatorWithKeyfunc validates tokens with a caller supplied key lookup.
func NewValidatorWithKeyfunc(kf jwt.Keyfunc, opts Options, log zerolog.Logger) *Validator {
	if opts.RoleClaim == "" {
		opts.RoleClaim = "role"
	}
	return &Validator{keyfunc: kf, opts: opts, log: log}
}

// Authenticate resolves the caller of r. A nil validator trusts gateway headers.
func (v *Validator) Authenticate(r *http.Request) (domain.Principal, error) {
	if v == nil {
		return principalFromHeaders(r.Header)
	}
	raw := bearerToken(r.Header.Get("Authorization"))
	if raw == "" {
		return domain.Principal{}, ErrMissingCredentials
	}
	return v.Validate(raw)
}

// Validate parses a signed token and maps its claims.
func (v *Validator) Validate(raw string) (domain.Principal, error) {
	parserOpts := []jwt.ParserOption{jwt.WithIssuer(v.opts.Issuer), jwt.WithExpirationRequired()}
	if v.opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.opts.Audience))
	}
	if len(v.opts.Methods) > 0 {
		parserOpts = append(parserOpts, jwt.WithValidMethods(v.opts.Methods))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, v.keyfunc, parserOpts...)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return domain.Principal{}, errors.New("invalid token")
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return domain.Principal{}, errors.New("token has no subject")
	}
	r, ok := roleFromClaim(claims[v.opts.RoleClaim])
	if !ok {
		return domain.Principal{}, ErrUnknownRole
	}
	email, _ := claims["email"].(string)

	return domain.Principal{
		ID:           subject,
		AuthMethod:   domain.AuthMethodJWT,
		Email:        email,
		Role:         r,
		EnterpriseID: firstString(claims, "enterprise_id", "enterpriseId"),
	}, nil
}

func principalFromHeaders(h http.Header) (domain.Principal, error) {
	id := strings.TrimSpace(h.Get(HeaderUserID))
	if id == "" {
		return domain.Principal{}, ErrMissingCredentials
	}
	r, ok := role.Parse(h.Get(HeaderUserRole))
	if !ok {
		return domain.Principal{}, ErrUnknownRole
	}
	return domain.Principal{
		ID:           id,
		AuthMethod:   domain.AuthMethodGateway,
		Email:        strings.TrimSpace(h.Get(HeaderUserEmail)),
		Role:         r,
		EnterpriseID: strings.TrimSpace(h.Get(HeaderEnterpriseID)),
	}, nil
}

// roleFromClaim accepts a single role or a list, keeping the first known one.
func roleFromClaim(raw any) (role.Role, bool) {
	switch val := raw.(type) {
	case string:
		return role.Parse(val)
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				if r, ok := role.Parse(s); ok {
					return r, true
				}
			}
		}
	}
	return "", false
}

func firstString(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if s, ok := claims[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
