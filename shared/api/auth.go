package api

import "github.com/vpportal/vpportal/shared/domain"

// Request DTOs. Email format and password length are checked by the auth
// service so the client sees the exact domain message.

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role,omitempty"`
	School   string `json:"school,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required"`
	OTP   string `json:"otp" validate:"required"`
}

// ResendOTPRequest accepts either a user id or an email.
type ResendOTPRequest struct {
	UserId string `json:"userId,omitempty" validate:"required_without=Email"`
	Email  string `json:"email,omitempty" validate:"required_without=UserId"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Data    any              `json:"data,omitempty"`
	Token   string           `json:"token,omitempty"`
	User    *domain.UserView `json:"user,omitempty"`
	Email   string           `json:"email,omitempty"`
}

// Typed envelopes for clients decoding responses.

type AuthResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Token   string           `json:"token,omitempty"`
	User    *domain.UserView `json:"user,omitempty"`
	Email   string           `json:"email,omitempty"`
}

type UserResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    domain.UserView `json:"data"`
}
