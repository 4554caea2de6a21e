package domain

import (
	"strings"
	"time"
)

type User struct {
	Id            UserId
	Name          string
	Email         Email
	PassHash      string
	Role          Role
	School        string
	Phone         string
	EmailVerified bool
	CreatedAt     time.Time

	// Only the sha256 of the reset token is ever stored.
	ResetTokenHash string
	ResetExpires   time.Time
}

// UserView is the projection of User that is safe to return to clients.
type UserView struct {
	Id     UserId `json:"id"`
	Name   string `json:"name"`
	Email  Email  `json:"email"`
	Role   Role   `json:"role"`
	School string `json:"school"`
	Phone  string `json:"phone"`
}

func (u User) View() UserView {
	return UserView{
		Id:     u.Id,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		School: u.School,
		Phone:  u.Phone,
	}
}

// NormalizeEmail is applied before every lookup and uniqueness check.
func NormalizeEmail(email Email) Email {
	return strings.ToLower(strings.TrimSpace(email))
}
