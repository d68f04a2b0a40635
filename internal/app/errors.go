package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/region-matcher/internal/ctxutil"
	domerrors "github.com/garyellow/region-matcher/internal/errors"
	"github.com/garyellow/region-matcher/internal/matcher"
	"github.com/garyellow/region-matcher/internal/sentry"
)

// classify maps an error to an HTTP status and a metrics error type.
func classify(err error) (int, string) {
	var (
		maxBytes   *http.MaxBytesError
		validation *domerrors.ValidationError
		sheetErr   *domerrors.SheetError
	)
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, domerrors.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "unsupported_format"
	case errors.As(err, &validation),
		errors.As(err, &sheetErr),
		errors.Is(err, domerrors.ErrInvalidInput),
		errors.Is(err, domerrors.ErrEmptyUpload):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domerrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domerrors.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domerrors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads this
		return 499, "canceled"
	case errors.Is(err, domerrors.ErrCatalogUnavailable), errors.Is(err, matcher.ErrNotInitialized):
		return http.StatusServiceUnavailable, "catalog_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// respondError writes err as JSON, records it, and reports 5xx errors to
// Sentry.
func (a *Application) respondError(c *gin.Context, err error) {
	status, errType := classify(err)
	_ = c.Error(err)

	if a.metrics != nil {
		a.metrics.RecordHTTPError(errType, c.FullPath())
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		sentry.CaptureExceptionWithContext(c.Request.Context(), err)
	}

	body := gin.H{"error": domerrors.GetUserMessage(err)}
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
	}
	if requestID, ok := ctxutil.GetRequestID(c.Request.Context()); ok {
		body["request_id"] = requestID
	}
	c.AbortWithStatusJSON(status, body)
}
