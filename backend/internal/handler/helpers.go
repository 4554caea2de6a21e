package handler

import (
	"net/http"

	"github.com/vpportal/vpportal/shared/domain"
	"github.com/vpportal/vpportal/shared/errors"
	"github.com/vpportal/vpportal/shared/middleware"
)

var errNoUser = errors.Unauthorized("Not authorized, no token")

// currentUser returns the caller put into the context by the auth
// middleware.
func currentUser(r *http.Request) (*domain.User, error) {
	user := middleware.GetUserFromContext(r)
	if user == nil || user.Id == "" {
		return nil, errNoUser
	}
	return user, nil
}
