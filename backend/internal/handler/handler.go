package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/vpportal/vpportal/backend/internal/service"
	"github.com/vpportal/vpportal/shared/errors"
	"github.com/vpportal/vpportal/shared/logger"
	"github.com/vpportal/vpportal/shared/monitoring"
	"github.com/vpportal/vpportal/shared/utils"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	auth     service.AuthService
	requests service.RequestService
	health   Pinger
	reporter *monitoring.Reporter
}

func New(auth service.AuthService, requests service.RequestService, health Pinger, reporter *monitoring.Reporter) *Handler {
	return &Handler{
		auth:     auth,
		requests: requests,
		health:   health,
		reporter: reporter,
	}
}

// writeError answers with the error envelope. Unexpected errors are logged
// with the request id and sent to Sentry.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, name string, err error) {
	if errors.StatusCode(err) >= http.StatusInternalServerError {
		logger.Log.Error("request failed",
			"handler", name,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		h.reporter.CaptureRequestError(r, name, err)
	}
	utils.WriteError(w, err)
}
