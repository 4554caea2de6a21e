package domain

import "time"

// PendingRegistration is a signup (or re-verification of an existing user)
// waiting for the OTP sent to Email.
type PendingRegistration struct {
	Email    Email     `json:"email"`
	Name     string    `json:"name"`
	PassHash string    `json:"pass_hash"`
	Role     Role      `json:"role"`
	School   string    `json:"school"`
	Phone    string    `json:"phone"`
	OTPHash  string    `json:"otp_hash"`
	Expires  time.Time `json:"expires"`

	// Set when the entry re-verifies an already stored user instead of
	// staging a new one.
	UserId UserId `json:"user_id,omitempty"`
}

func (p PendingRegistration) Expired(now time.Time) bool {
	return now.After(p.Expires)
}
