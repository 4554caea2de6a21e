package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/vpportal/vpportal/shared/api"
	"github.com/vpportal/vpportal/shared/domain"
)

// Register stages a registration. The backend answers with the normalized
// email the OTP was sent to.
func (c *APIClient) Register(ctx context.Context, body api.RegisterRequest) (api.AuthResponse, error) {
	var response api.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", "", body, &response)
	return response, err
}

// VerifyEmail completes a registration and returns the session token.
func (c *APIClient) VerifyEmail(ctx context.Context, email domain.Email, otp string) (api.AuthResponse, error) {
	var response api.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/verify-email", "", api.VerifyEmailRequest{Email: email, OTP: otp}, &response)
	return response, err
}

func (c *APIClient) ResendOTP(ctx context.Context, email domain.Email) (api.AuthResponse, error) {
	var response api.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/resend-otp", "", api.ResendOTPRequest{Email: email}, &response)
	return response, err
}

func (c *APIClient) Login(ctx context.Context, email domain.Email, password domain.Password) (api.AuthResponse, error) {
	var response api.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", "", api.LoginRequest{Email: email, Password: password}, &response)
	return response, err
}

func (c *APIClient) ForgotPassword(ctx context.Context, email domain.Email) (api.AuthResponse, error) {
	var response api.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/forgot-password", "", api.ForgotPasswordRequest{Email: email}, &response)
	return response, err
}

// ResetPassword redeems the raw token from the reset link.
func (c *APIClient) ResetPassword(ctx context.Context, token string, password domain.Password) (api.AuthResponse, error) {
	var response api.AuthResponse
	path := "/auth/reset-password/" + url.PathEscape(token)
	err := c.do(ctx, http.MethodPost, path, "", api.ResetPasswordRequest{Password: password}, &response)
	return response, err
}

func (c *APIClient) Me(ctx context.Context, token string) (domain.UserView, error) {
	var response api.UserResponse
	if err := c.do(ctx, http.MethodGet, "/users/me", token, nil, &response); err != nil {
		return domain.UserView{}, err
	}
	return response.Data, nil
}
