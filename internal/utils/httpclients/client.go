package httpclients

import (
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

// NewClient returns a resty client that logs every outbound call at debug level.
// Bodies are never logged; they carry user text.
func NewClient(clientName string, log zerolog.Logger) *resty.Client {
	client := resty.New()
	client.SetHeader("User-Agent", "trackimpact-support-api")
	client.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		log.Debug().
			Str("request_id", platformerrors.RequestIDFromContext(r.Request.Context())).
			Str("client", clientName).
			Str("method", r.Request.Method).
			Str("url", r.Request.URL).
			Int("status", r.StatusCode()).
			Dur("latency", r.Time()).
			Msg("HTTP client request")
		return nil
	})
	client.OnError(func(r *resty.Request, err error) {
		log.Debug().
			Err(err).
			Str("request_id", platformerrors.RequestIDFromContext(r.Context())).
			Str("client", clientName).
			Str("method", r.Method).
			Str("url", r.URL).
			Msg("HTTP client request failed")
	})
	return client
}
