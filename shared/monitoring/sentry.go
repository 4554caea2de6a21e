package monitoring

import (
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vpportal/vpportal/shared/logger"
)

// Reporter forwards unexpected errors to Sentry. The zero value and a
// Reporter built without a DSN are no-ops.
type Reporter struct {
	initialized bool
}

func New(dsn, environment string) *Reporter {
	if dsn == "" {
		logger.Log.Info("sentry dsn not set, error reporting disabled")
		return &Reporter{}
	}
	if environment == "" {
		environment = "development"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		logger.Log.Error("sentry initialization failed", "error", err)
		return &Reporter{}
	}
	return &Reporter{initialized: true}
}

func (s *Reporter) Enabled() bool {
	return s != nil && s.initialized
}

// CaptureRequestError tags the event with the route and chi request id.
func (s *Reporter) CaptureRequestError(r *http.Request, handler string, err error) {
	if !s.Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("handler", handler)
		scope.SetTag("method", r.Method)
		scope.SetTag("path", r.URL.Path)
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			scope.SetTag("request_id", reqID)
		}
		sentry.CaptureException(err)
	})
}

func (s *Reporter) CaptureError(component string, err error) {
	if !s.Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		sentry.CaptureException(err)
	})
}

func (s *Reporter) Flush(timeout time.Duration) bool {
	if !s.Enabled() {
		return true
	}
	return sentry.Flush(timeout)
}
