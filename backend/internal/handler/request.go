package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vpportal/vpportal/shared/api"
	"github.com/vpportal/vpportal/shared/utils"
)

func (h *Handler) MyRequests(w http.ResponseWriter, r *http.Request) {
	caller, err := currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	requests, err := h.requests.MyRequests(r.Context(), caller.Id)
	if err != nil {
		h.writeError(w, r, "MyRequests", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.RequestListResponse{Success: true, Data: requests})
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	caller, err := currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	request, err := h.requests.Request(r.Context(), caller.Id, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "GetRequest", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.RequestResponse{Success: true, Data: request})
}

func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	caller, err := currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var body api.CreateRequestRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	request, err := h.requests.CreateRequest(r.Context(), caller.Id, body.Subject, body.Description)
	if err != nil {
		h.writeError(w, r, "CreateRequest", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, api.RequestResponse{Success: true, Message: "Request created", Data: request})
}

func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	caller, err := currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var body api.UpdateRequestRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	request, err := h.requests.UpdateRequest(r.Context(), caller.Id, chi.URLParam(r, "id"), body.Subject, body.Description)
	if err != nil {
		h.writeError(w, r, "UpdateRequest", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.RequestResponse{Success: true, Message: "Request updated", Data: request})
}
