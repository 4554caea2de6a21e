package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/vpportal/vpportal/shared/domain"
	"github.com/vpportal/vpportal/shared/errors"
	jwt_internal "github.com/vpportal/vpportal/shared/jwt"
	"github.com/vpportal/vpportal/shared/utils"
)

// Key to store the user claims in the request context
type key int

const UserClaimsKey key = 0

var errNoToken = errors.Unauthorized("Not authorized, no token")

type tokenDecoder interface {
	DecodeToken(jwtStr string) (*jwt_internal.Claims, error)
}

type Auth struct {
	jwtService tokenDecoder
}

func NewAuth(jwtService tokenDecoder) *Auth {
	return &Auth{jwtService: jwtService}
}

// NeedAuth rejects requests without a valid bearer token with 401 and puts
// the caller into the request context otherwise.
func (a *Auth) NeedAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := a.extractUser(r)
			if err != nil {
				utils.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Auth) extractUser(r *http.Request) (*domain.User, error) {
	tokenString, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	tokenString = strings.TrimSpace(tokenString)
	if !found || tokenString == "" {
		return nil, errNoToken
	}

	claims, err := a.jwtService.DecodeToken(tokenString)
	if err != nil {
		return nil, err
	}

	return &domain.User{Id: claims.UserId(), Role: claims.Role}, nil
}

// GetUserFromContext returns the authenticated caller or nil. Only Id and
// Role are populated.
func GetUserFromContext(r *http.Request) *domain.User {
	user, ok := r.Context().Value(UserClaimsKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}
