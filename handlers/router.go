package handlers

import (
	"net/http"

	"github.com/kerimlews/taskmanager/middleware"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Handlers struct {
	Tasks     *TaskHandler
	Auth      *AuthHandler
	Users     *UserHandler
	Reminders *ReminderHandler
}

// NewRouter mounts the public auth routes and the token protected API.
func NewRouter(h Handlers, validator middleware.TokenValidator, logger logrus.FieldLogger) *mux.Router {
	r := mux.NewRouter()
	jsonFallbacks(r)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusOK, "Task service is running")
	}).Methods(http.MethodGet)

	auth := r.PathPrefix("/api/auth").Subrouter()
	jsonFallbacks(auth)
	auth.HandleFunc("/signup", h.Auth.SignUp).Methods(http.MethodPost)
	auth.HandleFunc("/login", h.Auth.Login).Methods(http.MethodPost)
	auth.HandleFunc("/logout", h.Auth.Logout).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.JWTAuthMiddleware(validator, logger))
	jsonFallbacks(api)

	api.HandleFunc("/tasks", h.Tasks.CreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks", h.Tasks.GetTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks/analytics/stats", h.Tasks.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", h.Tasks.GetTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", h.Tasks.UpdateTask).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{id}", h.Tasks.DeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id}/comments", h.Tasks.AddComment).Methods(http.MethodPost)

	admin := api.NewRoute().Subrouter()
	admin.Use(middleware.RequireAdmin)
	jsonFallbacks(admin)
	admin.HandleFunc("/users", h.Users.GetUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}", h.Users.UpdateUser).Methods(http.MethodPut)
	admin.HandleFunc("/users/{id}", h.Users.DeleteUser).Methods(http.MethodDelete)
	admin.HandleFunc("/reminders/run", h.Reminders.RunReminders).Methods(http.MethodPost)

	return r
}

// jsonFallbacks answers unmatched paths and methods in the API's JSON shape. Each
// subrouter needs its own handlers, otherwise a later sibling turns a method
// mismatch into a plain 404.
func jsonFallbacks(r *mux.Router) {
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}
