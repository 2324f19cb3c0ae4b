package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/harshasoftware/halohome-sub007/internal/catalog"
	"github.com/harshasoftware/halohome-sub007/internal/chart"
	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/httputil"
	"github.com/harshasoftware/halohome-sub007/internal/lines"
	"github.com/harshasoftware/halohome-sub007/internal/scout"
)

// clientErrors are caller mistakes reported as 400.
var clientErrors = []error{
	httputil.ErrBadRequest,
	ephemeris.ErrUnknownBody,
	lines.ErrUnknownAngle,
	lines.ErrUnknownAspect,
	chart.ErrUnknownHouseSystem,
	scout.ErrUnknownCategory,
	scout.ErrUnknownSortMode,
	scout.ErrUnknownKernel,
	scout.ErrUnknownPreset,
	scout.ErrInvalidConfig,
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	switch {
	case catalog.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	httputil.WriteError(w, status, msg)
}
