package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vpportal/vpportal/backend/internal/service"
	"github.com/vpportal/vpportal/shared/domain"
)

func TestRegisterHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var got service.RegisterInput
		auth := &MockAuthService{
			MockRegister: func(ctx context.Context, input service.RegisterInput) (domain.Email, error) {
				got = input
				return "asha@woxsen.edu.in", nil
			},
		}
		h := newTestHandler(auth, nil)

		rr, env := serve(t, http.MethodPost, "/api/auth/register", "/api/auth/register", h.Register,
			`{"name":"Asha","email":"Asha@woxsen.edu.in","password":"secret123","role":"faculty","school":"SoT","phone":"1"}`, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, env.Success)
		assert.Equal(t, "Please check your email for verification OTP.", env.Message)
		assert.Equal(t, "asha@woxsen.edu.in", env.Email)
		assert.Empty(t, env.Token)
		assert.Equal(t, service.RegisterInput{Name: "Asha", Email: "Asha@woxsen.edu.in", Password: "secret123", Role: "faculty", School: "SoT", Phone: "1"}, got)
	})

	t.Run("missing fields", func(t *testing.T) {
		h := newTestHandler(nil, nil)
		rr, env := serve(t, http.MethodPost, "/r", "/r", h.Register, `{"email":"a@woxsen.edu.in"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.False(t, env.Success)
		assert.Equal(t, "Required fields missing", env.Message)
	})

	t.Run("invalid json", func(t *testing.T) {
		h := newTestHandler(nil, nil)
		rr, env := serve(t, http.MethodPost, "/r", "/r", h.Register, `{invalid`, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Body is invalid json", env.Message)
	})

	t.Run("domain error keeps its message", func(t *testing.T) {
		auth := &MockAuthService{
			MockRegister: func(context.Context, service.RegisterInput) (domain.Email, error) {
				return "", service.ErrWrongEmailDomain
			},
		}
		h := newTestHandler(auth, nil)
		rr, env := serve(t, http.MethodPost, "/r", "/r", h.Register, `{"name":"A","email":"a@gmail.com","password":"secret123"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Please use your Woxsen email address for registration", env.Message)
	})

	t.Run("unexpected error is hidden", func(t *testing.T) {
		auth := &MockAuthService{
			MockRegister: func(context.Context, service.RegisterInput) (domain.Email, error) {
				return "", errors.New("smtp: connection refused")
			},
		}
		h := newTestHandler(auth, nil)
		rr, env := serve(t, http.MethodPost, "/r", "/r", h.Register, `{"name":"A","email":"a@woxsen.edu.in","password":"secret123"}`, nil)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.False(t, env.Success)
		assert.Equal(t, "Server error", env.Message)
	})
}

func TestVerifyEmailHandler(t *testing.T) {
	auth := &MockAuthService{
		MockVerifyEmail: func(ctx context.Context, email domain.Email, otp string) (string, domain.User, error) {
			if otp != "123456" {
				return "", domain.User{}, service.ErrInvalidOTP
			}
			return "jwt", domain.User{Id: "u1", Email: email, Name: "Asha", PassHash: "secret-hash", ResetTokenHash: "reset"}, nil
		},
	}
	h := newTestHandler(auth, nil)

	rr, env := serve(t, http.MethodPost, "/v", "/v", h.VerifyEmail, `{"email":"a@woxsen.edu.in","otp":"123456"}`, nil)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "Registration successful!", env.Message)
	assert.Equal(t, "jwt", env.Token)
	require.NotNil(t, env.User)
	assert.Equal(t, "u1", env.User.Id)
	assert.NotContains(t, rr.Body.String(), "secret-hash")
	assert.NotContains(t, rr.Body.String(), "reset")

	rr, env = serve(t, http.MethodPost, "/v", "/v", h.VerifyEmail, `{"email":"a@woxsen.edu.in","otp":"000000"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid OTP. Please try again.", env.Message)
}

func TestResendOTPHandler(t *testing.T) {
	var gotId, gotEmail string
	auth := &MockAuthService{
		MockResendOTP: func(ctx context.Context, userId domain.UserId, email domain.Email) error {
			gotId, gotEmail = userId, email
			return nil
		},
	}
	h := newTestHandler(auth, nil)

	rr, env := serve(t, http.MethodPost, "/o", "/o", h.ResendOTP, `{"email":"a@woxsen.edu.in"}`, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "New OTP sent to your email", env.Message)
	assert.Equal(t, "a@woxsen.edu.in", gotEmail)
	assert.Empty(t, gotId)

	rr, _ = serve(t, http.MethodPost, "/o", "/o", h.ResendOTP, `{"userId":"u1"}`, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1", gotId)

	rr, env = serve(t, http.MethodPost, "/o", "/o", h.ResendOTP, `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Required fields missing", env.Message)
}

func TestLoginHandler(t *testing.T) {
	auth := &MockAuthService{
		MockLogin: func(ctx context.Context, email domain.Email, password domain.Password) (string, domain.User, error) {
			if password != "secret123" {
				return "", domain.User{}, service.ErrInvalidCredentials
			}
			return "jwt", domain.User{Id: "u1", Email: email}, nil
		},
	}
	h := newTestHandler(auth, nil)

	rr, env := serve(t, http.MethodPost, "/l", "/l", h.Login, `{"email":"a@woxsen.edu.in","password":"secret123"}`, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "jwt", env.Token)
	require.NotNil(t, env.User)
	assert.Equal(t, "a@woxsen.edu.in", env.User.Email)

	rr, env = serve(t, http.MethodPost, "/l", "/l", h.Login, `{"email":"a@woxsen.edu.in","password":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid credentials", env.Message)
}

func TestMeHandler(t *testing.T) {
	auth := &MockAuthService{
		MockMe: func(ctx context.Context, userId domain.UserId) (domain.User, error) {
			return domain.User{Id: userId, Name: "Asha", PassHash: "secret-hash"}, nil
		},
	}
	h := newTestHandler(auth, nil)

	rr, env := serve(t, http.MethodGet, "/me", "/me", h.Me, "", &domain.User{Id: "u1"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"id":"u1","name":"Asha","email":"","role":"","school":"","phone":""}`, string(env.Data))

	rr, _ = serve(t, http.MethodGet, "/me", "/me", h.Me, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestForgotPasswordHandler(t *testing.T) {
	var gotOrigin string
	auth := &MockAuthService{
		MockForgotPassword: func(ctx context.Context, email domain.Email, origin string) error {
			if email == "nobody@woxsen.edu.in" {
				return service.ErrNoUserWithEmail
			}
			gotOrigin = origin
			return nil
		},
	}
	h := newTestHandler(auth, nil)

	call := func(body string, proto string) (int, envelope) {
		rr, env := serveWithHeader(t, h.ForgotPassword, body, "X-Forwarded-Proto", proto)
		return rr.Code, env
	}

	code, env := call(`{"email":"a@woxsen.edu.in"}`, "https")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Password reset link sent to email", env.Message)
	assert.Equal(t, "https://example.com", gotOrigin)

	code, env = call(`{"email":"nobody@woxsen.edu.in"}`, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No user found with this email", env.Message)
}

func TestResetPasswordHandler(t *testing.T) {
	var gotToken string
	auth := &MockAuthService{
		MockResetPassword: func(ctx context.Context, rawToken string, password domain.Password) (string, error) {
			gotToken = rawToken
			if rawToken == "bad" {
				return "", service.ErrInvalidResetToken
			}
			return "jwt", nil
		},
	}
	h := newTestHandler(auth, nil)

	rr, env := serve(t, http.MethodPost, "/reset/{token}", "/reset/abc123", h.ResetPassword, `{"password":"new-secret"}`, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc123", gotToken)
	assert.Equal(t, "jwt", env.Token)
	assert.Equal(t, "Password reset successful", env.Message)

	rr, env = serve(t, http.MethodPost, "/reset/{token}", "/reset/bad", h.ResetPassword, `{"password":"new-secret"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid or expired reset token", env.Message)
}
