package handlers

import (
	"net/http"

	"github.com/kerimlews/taskmanager/middleware"
	"github.com/kerimlews/taskmanager/models"
	"github.com/kerimlews/taskmanager/services"
	"github.com/kerimlews/taskmanager/services/queries"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type TaskHandler struct {
	service *services.TaskService
	logger  logrus.FieldLogger
}

func NewTaskHandler(service *services.TaskService, logger logrus.FieldLogger) *TaskHandler {
	return &TaskHandler{service: service, logger: logger}
}

type commentRequest struct {
	Text string `json:"text"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.IdentityFromContext(r.Context())

	var input models.TaskInput
	if err := decodeJSON(r, &input); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	task, err := h.service.CreateTask(r.Context(), caller, input)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.IdentityFromContext(r.Context())

	q, err := queries.ParseTaskQuery(caller.ID, r.URL.Query())
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), caller, q)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.GetTaskByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch models.TaskPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	task, err := h.service.UpdateTask(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTask(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Task deleted")
}

func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.IdentityFromContext(r.Context())

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	task, err := h.service.AddComment(r.Context(), caller, mux.Vars(r)["id"], req.Text)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
