package handlers

import (
	"net/http"

	"github.com/kerimlews/taskmanager/models"
	"github.com/kerimlews/taskmanager/services"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type UserHandler struct {
	service *services.UserService
	logger  logrus.FieldLogger
}

func NewUserHandler(service *services.UserService, logger logrus.FieldLogger) *UserHandler {
	return &UserHandler{service: service, logger: logger}
}

func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var patch models.UserPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "User deleted")
}
