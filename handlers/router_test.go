package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kerimlews/taskmanager/handlers"
	"github.com/kerimlews/taskmanager/models"
	"github.com/kerimlews/taskmanager/repositories"
	"github.com/kerimlews/taskmanager/services"
	"github.com/kerimlews/taskmanager/utils"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) Send(_ context.Context, to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

type testServer struct {
	router *mux.Router
	tasks  *repositories.MemoryTaskRepository
	mailer *recordingMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger, _ := test.NewNullLogger()

	tasks := repositories.NewMemoryTaskRepository()
	users := repositories.NewMemoryUserRepository()
	mailer := &recordingMailer{}
	tokens := utils.NewTokenIssuer("test-secret", time.Hour)

	taskService := services.NewTaskService(tasks, users, logger)
	userService := services.NewUserService(users, utils.NewPasswordHasher(bcrypt.MinCost), tokens, []string{"admin@example.com"}, logger)
	reminderService := services.NewReminderService(tasks, users, mailer, services.DefaultReminderSettings(), logger)

	router := handlers.NewRouter(handlers.Handlers{
		Tasks:     handlers.NewTaskHandler(taskService, logger),
		Auth:      handlers.NewAuthHandler(userService, logger),
		Users:     handlers.NewUserHandler(userService, logger),
		Reminders: handlers.NewReminderHandler(reminderService, logger),
	}, tokens, logger)

	return &testServer{router: router, tasks: tasks, mailer: mailer}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// login signs up the account and returns its token and id.
func (s *testServer) login(t *testing.T, email string) (string, string) {
	t.Helper()
	creds := map[string]string{"email": email, "password": "secret1"}

	rec := s.do(t, http.MethodPost, "/api/auth/signup", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token, resp.UserID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.login(t, "jane@example.com")

	rec := s.do(t, http.MethodPost, "/api/tasks", token, map[string]any{
		"title":    "Write report",
		"priority": "high",
		"dueDate":  1714557600000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Task](t, rec)
	assert.Equal(t, userID, created.CreatedBy)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.NotContains(t, rec.Body.String(), "remindedFor")

	rec = s.do(t, http.MethodGet, "/api/tasks/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/tasks/"+created.ID, token, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.StatusCompleted, decode[models.Task](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/api/tasks/"+created.ID+"/comments", token, map[string]any{"text": "done"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[models.Task](t, rec).Comments, 1)

	rec = s.do(t, http.MethodGet, "/api/tasks/analytics/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.TaskStats{Total: 1, Completed: 1, Progress: 100}, decode[models.TaskStats](t, rec))

	rec = s.do(t, http.MethodDelete, "/api/tasks/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/tasks/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTask_PopulatesUsers(t *testing.T) {
	s := newTestServer(t)
	janeToken, janeID := s.login(t, "jane@example.com")
	johnToken, johnID := s.login(t, "john@example.com")
	adminToken, _ := s.login(t, "admin@example.com")

	rec := s.do(t, http.MethodPost, "/api/tasks", janeToken, map[string]any{"title": "Write report"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	taskID := decode[models.Task](t, rec).ID

	rec = s.do(t, http.MethodPost, "/api/tasks/"+taskID+"/comments", johnToken, map[string]any{"text": "looks good"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/tasks/"+taskID, janeToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		CreatedBy map[string]string `json:"createdBy"`
		Comments  []struct {
			Text   string            `json:"text"`
			UserID map[string]string `json:"userId"`
		} `json:"comments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"id": janeID, "email": "jane@example.com", "role": "user"}, body.CreatedBy)
	require.Len(t, body.Comments, 1)
	assert.Equal(t, "looks good", body.Comments[0].Text)
	assert.Equal(t, "john@example.com", body.Comments[0].UserID["email"])
	assert.Equal(t, johnID, body.Comments[0].UserID["id"])

	rec = s.do(t, http.MethodDelete, "/api/users/"+johnID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/tasks", janeToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tasks := decode[[]models.TaskView](t, rec)
	require.Len(t, tasks, 1)
	assert.Equal(t, "jane@example.com", tasks[0].CreatedBy.Email)
	require.Len(t, tasks[0].Comments, 1)
	assert.Equal(t, models.UserRef{ID: johnID}, tasks[0].Comments[0].UserID)
	assert.Contains(t, rec.Body.String(), `"userId":"`+johnID+`"`)
}

func TestGetTasks_FiltersAndSorts(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t, "jane@example.com")
	otherToken, _ := s.login(t, "john@example.com")

	for _, due := range []int64{100, 300, 200} {
		rec := s.do(t, http.MethodPost, "/api/tasks", token, map[string]any{"title": "t", "dueDate": due, "status": "completed"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/api/tasks", token, map[string]any{"title": "pending one"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/tasks", otherToken, map[string]any{"title": "not mine", "status": "completed"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/tasks?status=completed&sortBy=-dueDate", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tasks := decode[[]models.TaskView](t, rec)
	require.Len(t, tasks, 3)
	assert.Equal(t, int64(300), *tasks[0].DueDate)
	assert.Equal(t, int64(200), *tasks[1].DueDate)
	assert.Equal(t, int64(100), *tasks[2].DueDate)

	rec = s.do(t, http.MethodGet, "/api/tasks?dueDate=150", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.TaskView](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/api/tasks?createdBy=someone", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/tasks?sortBy=password", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskRoutes_Errors(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t, "jane@example.com")

	rec := s.do(t, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/tasks", token, map[string]any{"title": "t", "status": "done"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/tasks", token, map[string]any{"title": "t", "owner": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/tasks", token, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/tasks/missing", token, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/tasks/missing/comments", token, map[string]any{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthRoutes(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "jane@example.com")

	rec := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "jane@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "jane@example.com", "password": "nope123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	userToken, userID := s.login(t, "jane@example.com")
	adminToken, _ := s.login(t, "admin@example.com")

	rec := s.do(t, http.MethodGet, "/api/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/reminders/run", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.User](t, rec), 2)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodPut, "/api/users/"+userID, adminToken, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.RoleAdmin, decode[models.User](t, rec).Role)

	rec = s.do(t, http.MethodDelete, "/api/users/"+userID, adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/users/"+userID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunReminders(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t, "jane@example.com")
	adminToken, _ := s.login(t, "admin@example.com")

	due := time.Now().Add(30 * time.Minute).UnixMilli()
	rec := s.do(t, http.MethodPost, "/api/tasks", token, map[string]any{"title": "soon", "dueDate": due})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/reminders/run", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, services.ReminderReport{Scanned: 1, Sent: 1}, decode[services.ReminderReport](t, rec))

	s.mailer.mu.Lock()
	defer s.mailer.mu.Unlock()
	assert.Equal(t, []string{"jane@example.com"}, s.mailer.sent)
}

func TestUnmatchedRoutesAnswerJSON(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t, "jane@example.com")

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "unknown top level path", method: http.MethodGet, path: "/nope", wantStatus: http.StatusNotFound},
		{name: "unknown api path", method: http.MethodGet, path: "/api/nope", wantStatus: http.StatusNotFound},
		{name: "unknown auth path", method: http.MethodPost, path: "/api/auth/nope", wantStatus: http.StatusNotFound},
		{name: "wrong method on task", method: http.MethodPatch, path: "/api/tasks/x", wantStatus: http.StatusMethodNotAllowed},
		{name: "wrong method on auth", method: http.MethodGet, path: "/api/auth/login", wantStatus: http.StatusMethodNotAllowed},
		{name: "wrong method on admin route", method: http.MethodGet, path: "/api/users/x", wantStatus: http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, token, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := decode[map[string]string](t, rec)
			assert.NotEmpty(t, body["message"])
		})
	}
}
