package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/vpportal/vpportal/shared/api"
	"github.com/vpportal/vpportal/shared/domain"
	"github.com/vpportal/vpportal/shared/errors"
	"github.com/vpportal/vpportal/shared/middleware/metrics"
	"github.com/vpportal/vpportal/shared/middleware/ratelimiter"
	"github.com/vpportal/vpportal/shared/utils"
)

const maxKeyedBody = 1 << 20

// RateLimit answers 429 once the bucket for the request's identity is empty.
// name labels the rejection in the metrics.
func RateLimit(name string, rl *ratelimiter.UserRateLimiter, getIdentity func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := getIdentity(r)
			if err != nil {
				utils.WriteError(w, err)
				return
			}
			if !rl.Allow(name + ":" + identity) {
				metrics.RateLimited(name)
				utils.WriteJSON(w, http.StatusTooManyRequests, api.Response{
					Success: false,
					Message: "Too many requests, please try again later",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimitByIpAndEmail applies the same limiter twice, keyed by client ip and
// by the email in the JSON body.
func LimitByIpAndEmail(name string, rl *ratelimiter.UserRateLimiter) func(http.Handler) http.Handler {
	byIP := RateLimit(name+"_ip", rl, GetIP)
	byEmail := RateLimit(name+"_email", rl, GetEmailFromBody)
	return func(next http.Handler) http.Handler {
		return byIP(byEmail(next))
	}
}

// GetIP extracts the client IP from RemoteAddr only. Forwarded headers are
// not trusted.
func GetIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("invalid IP address: %s", ip)
	}
	return ip, nil
}

// GetUserIDFromContext is usable after NeedAuth.
func GetUserIDFromContext(r *http.Request) (string, error) {
	user := GetUserFromContext(r)
	if user == nil {
		return "", errors.Unauthorized("Not authorized, no token")
	}
	return "user_" + user.Id, nil
}

// GetEmailFromBody reads the JSON body, restores it for the handler and
// returns the normalized email field.
func GetEmailFromBody(r *http.Request) (string, error) {
	return GetFieldFromBody("email", "userId")(r)
}

// GetFieldFromBody returns the first non-empty field among names. Emails are
// normalized so casing cannot be used to dodge the limit.
func GetFieldFromBody(names ...string) func(r *http.Request) (string, error) {
	return func(r *http.Request) (string, error) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxKeyedBody))
		if err != nil {
			return "", errors.BadRequest("Failed to read request body")
		}
		r.Body = io.NopCloser(bytes.NewBuffer(body))

		var data map[string]any
		if err := json.Unmarshal(body, &data); err != nil {
			return "", errors.BadRequest("Body is invalid json")
		}
		for _, name := range names {
			if v, ok := data[name].(string); ok && v != "" {
				return name + ":" + domain.NormalizeEmail(v), nil
			}
		}
		return "", errors.BadRequest("Required fields missing")
	}
}
