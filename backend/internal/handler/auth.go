package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vpportal/vpportal/backend/internal/service"
	"github.com/vpportal/vpportal/shared/api"
	"github.com/vpportal/vpportal/shared/utils"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body api.RegisterRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	email, err := h.auth.Register(r.Context(), service.RegisterInput{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
		Role:     body.Role,
		School:   body.School,
		Phone:    body.Phone,
	})
	if err != nil {
		h.writeError(w, r, "Register", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.Response{
		Success: true,
		Message: "Please check your email for verification OTP.",
		Email:   email,
	})
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body api.VerifyEmailRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	token, user, err := h.auth.VerifyEmail(r.Context(), body.Email, body.OTP)
	if err != nil {
		h.writeError(w, r, "VerifyEmail", err)
		return
	}

	view := user.View()
	utils.WriteJSON(w, http.StatusCreated, api.Response{
		Success: true,
		Message: "Registration successful!",
		Token:   token,
		User:    &view,
	})
}

func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var body api.ResendOTPRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.auth.ResendOTP(r.Context(), body.UserId, body.Email); err != nil {
		h.writeError(w, r, "ResendOTP", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.Response{Success: true, Message: "New OTP sent to your email"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body api.LoginRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	token, user, err := h.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.writeError(w, r, "Login", err)
		return
	}

	view := user.View()
	utils.WriteJSON(w, http.StatusOK, api.Response{Success: true, Token: token, User: &view})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, err := currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	user, err := h.auth.Me(r.Context(), caller.Id)
	if err != nil {
		h.writeError(w, r, "Me", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.Response{Success: true, Data: user.View()})
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body api.ForgotPasswordRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), body.Email, utils.RequestOrigin(r)); err != nil {
		h.writeError(w, r, "ForgotPassword", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.Response{Success: true, Message: "Password reset link sent to email"})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body api.ResetPasswordRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	token, err := h.auth.ResetPassword(r.Context(), chi.URLParam(r, "token"), body.Password)
	if err != nil {
		h.writeError(w, r, "ResetPassword", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.Response{Success: true, Message: "Password reset successful", Token: token})
}
