package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"explorer/internal/domain"
	"explorer/internal/httputil"
)

// handleError converts domain errors to RFC 7807 responses. Anything that is
// not a client error is logged and reported without internal detail.
func handleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var httpErr domain.HTTPError
	if !errors.As(err, &httpErr) {
		logger.Error("unhandled error",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", httputil.GetRequestID(r),
		)
		httputil.RespondErrorWithExtras(w, http.StatusInternalServerError, "internal server error",
			map[string]any{"code": "INTERNAL_ERROR"})
		return
	}

	status := httpErr.StatusCode()
	extras := map[string]any{"code": httpErr.ErrorCode()}

	var validationErr *domain.ValidationError
	var ruleErr *domain.BusinessRuleError
	switch {
	case errors.As(err, &validationErr) && validationErr.Field != "":
		extras["field"] = validationErr.Field
	case errors.As(err, &ruleErr) && len(ruleErr.Details) > 0:
		extras["details"] = ruleErr.Details
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"error", err,
			"code", httpErr.ErrorCode(),
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", httputil.GetRequestID(r),
		)
		httputil.RespondErrorWithExtras(w, status, "internal server error", extras)
		return
	}

	httputil.RespondErrorWithExtras(w, status, httpErr.Error(), extras)
}
