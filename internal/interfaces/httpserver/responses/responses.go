package responses

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/trackimpact/support-api/internal/domain/ratelimit"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

const genericInternalMessage = "Une erreur interne est survenue. Veuillez réessayer plus tard."

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code      string `json:"code"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Field     string `json:"field,omitempty"`
}

// RateLimitedResponse is the body of a 429.
type RateLimitedResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

// HandleError translates err into a JSON error response and logs it.
func HandleError(c *gin.Context, err error, message string) {
	ctx := c.Request.Context()
	platformErr := platformerrors.AsError(ctx, platformerrors.LayerHandler, err, message)
	if platformErr == nil {
		platformErr = platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeInternal, message, nil, "")
	}
	if platformErr.RequestID == "" {
		platformErr.RequestID = requestID(c)
	}
	platformerrors.LogError(log.Logger, platformErr)

	c.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(platformErr.Type), ErrorResponse{
		Code:      platformErr.UUID,
		Error:     ErrorTypeToString(platformErr.Type),
		Message:   clientMessage(err, platformErr),
		RequestID: platformErr.RequestID,
		Field:     platformErr.Field(),
	})
}

// HandleNewError writes a route level error such as a bad request body.
func HandleNewError(c *gin.Context, errorType platformerrors.ErrorType, message, code string) {
	c.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(errorType), ErrorResponse{
		Code:      code,
		Error:     ErrorTypeToString(errorType),
		Message:   message,
		RequestID: requestID(c),
	})
}

// HandleRateLimited writes a 429 with the retry hint in both header and body.
func HandleRateLimited(c *gin.Context, decision ratelimit.Decision, message string) {
	retryAfter := decision.RetryAfterSeconds()
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitedResponse{
		Error:      "rate_limited",
		Message:    message,
		RetryAfter: retryAfter,
	})
}

// clientMessage keeps the innermost domain message and hides internal failures.
func clientMessage(original error, platformErr *platformerrors.PlatformError) string {
	switch platformErr.Type {
	case platformerrors.ErrorTypeInternal, platformerrors.ErrorTypeDatabaseError:
		return genericInternalMessage
	}
	var inner *platformerrors.PlatformError
	for e := original; e != nil; e = errors.Unwrap(e) {
		if pe, ok := e.(*platformerrors.PlatformError); ok {
			inner = pe
		}
	}
	if inner != nil {
		return inner.Message
	}
	return platformErr.Message
}

func requestID(c *gin.Context) string {
	if id := platformerrors.RequestIDFromContext(c.Request.Context()); id != "" {
		return id
	}
	return c.GetString("request_id")
}

// ErrorTypeToString converts an ErrorType to the snake_case string used in API responses.
func ErrorTypeToString(t platformerrors.ErrorType) string {
	switch t {
	case platformerrors.ErrorTypeNotFound:
		return "not_found_error"
	case platformerrors.ErrorTypeValidation:
		return "validation_error"
	case platformerrors.ErrorTypeConflict:
		return "conflict_error"
	case platformerrors.ErrorTypeUnauthorized:
		return "unauthorized_error"
	case platformerrors.ErrorTypeForbidden:
		return "forbidden_error"
	case platformerrors.ErrorTypeRateLimited:
		return "rate_limited_error"
	case platformerrors.ErrorTypeServiceUnavailable:
		return "service_unavailable_error"
	case platformerrors.ErrorTypeTimeout:
		return "timeout_error"
	case platformerrors.ErrorTypeExternal:
		return "external_error"
	default:
		return "internal_error"
	}
}
