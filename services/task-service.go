package services

import (
	"context"
	"strings"
	"time"

	"github.com/kerimlews/taskmanager/models"
	"github.com/kerimlews/taskmanager/services/queries"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type TaskService struct {
	store  TaskStore
	users  UserDirectory
	logger logrus.FieldLogger
	now    Clock
}

func NewTaskService(store TaskStore, users UserDirectory, logger logrus.FieldLogger) *TaskService {
	return &TaskService{
		store:  store,
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the time source.
func (s *TaskService) WithClock(now Clock) *TaskService {
	s.now = now
	return s
}

// CreateTask validates the input and persists a new task owned by the caller.
func (s *TaskService) CreateTask(ctx context.Context, caller models.Identity, input models.TaskInput) (*models.Task, error) {
	if caller.IsZero() {
		return nil, models.Unauthorizedf("no authenticated user")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, models.Validationf("title is required")
	}

	status := models.StatusPending
	if input.Status != "" {
		parsed, err := models.ParseTaskStatus(input.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}

	priority := models.PriorityMedium
	if input.Priority != "" {
		parsed, err := models.ParseTaskPriority(input.Priority)
		if err != nil {
			return nil, err
		}
		priority = parsed
	}

	if err := validateDueDate(input.DueDate); err != nil {
		return nil, err
	}

	now := s.now().UnixMilli()
	task := &models.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: input.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     input.DueDate,
		CreatedBy:   caller.ID,
		Category:    input.Category,
		Comments:    []models.Comment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Insert(ctx, task); err != nil {
		return nil, err
	}

	s.logger.WithField("createdBy", caller.ID).Infof("Event ID: TASK_CREATED, Description: Task created: %s", task.ID)
	return task, nil
}

// GetTaskByID returns the task with its owner and comment authors resolved.
func (s *TaskService) GetTaskByID(ctx context.Context, id string) (*models.TaskView, error) {
	if strings.TrimSpace(id) == "" {
		return nil, models.Validationf("task id is required")
	}
	task, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.resolveUsers(ctx, []models.Task{*task})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListTasks returns the caller's tasks filtered and ordered by q. The owner
// scope always comes from the caller, never from q.
func (s *TaskService) ListTasks(ctx context.Context, caller models.Identity, q queries.TaskQuery) ([]models.TaskView, error) {
	if caller.IsZero() {
		return nil, models.Unauthorizedf("no authenticated user")
	}
	q.OwnerID = caller.ID
	tasks, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.resolveUsers(ctx, tasks)
}

func (s *TaskService) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	changes, err := s.validatePatch(patch)
	if err != nil {
		return nil, err
	}

	task, err := s.store.Update(ctx, id, changes)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Event ID: TASK_UPDATED, Description: Task updated: %s", task.ID)
	return task, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Infof("Event ID: TASK_DELETED, Description: Task deleted: %s", id)
	return nil
}

// AddComment appends a comment authored by the caller and returns the updated task.
func (s *TaskService) AddComment(ctx context.Context, caller models.Identity, taskID, text string) (*models.Task, error) {
	if caller.IsZero() {
		return nil, models.Unauthorizedf("no user id found")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.Validationf("comment text is required")
	}

	now := s.now().UnixMilli()
	comment := models.Comment{
		Text:      text,
		UserID:    caller.ID,
		CreatedAt: now,
	}

	task, err := s.store.AppendComment(ctx, taskID, comment, now)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("userId", caller.ID).Infof("Event ID: TASK_COMMENTED, Description: Comment added to task %s", taskID)
	return task, nil
}

// GetStats counts all tasks and the completed ones. Progress is a percentage and
// is zero when there are no tasks.
func (s *TaskService) GetStats(ctx context.Context) (*models.TaskStats, error) {
	total, err := s.store.Count(ctx, nil)
	if err != nil {
		return nil, err
	}
	completed := models.StatusCompleted
	done, err := s.store.Count(ctx, &completed)
	if err != nil {
		return nil, err
	}

	stats := &models.TaskStats{Total: total, Completed: done}
	if total > 0 {
		stats.Progress = float64(done) / float64(total) * 100
	}
	return stats, nil
}

func (s *TaskService) validatePatch(patch models.TaskPatch) (models.TaskChanges, error) {
	changes := models.TaskChanges{
		Description: patch.Description,
		Category:    patch.Category,
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return models.TaskChanges{}, models.Validationf("title cannot be empty")
		}
		changes.Title = &title
	}
	if patch.Status != nil {
		status, err := models.ParseTaskStatus(*patch.Status)
		if err != nil {
			return models.TaskChanges{}, err
		}
		changes.Status = &status
	}
	if patch.Priority != nil {
		priority, err := models.ParseTaskPriority(*patch.Priority)
		if err != nil {
			return models.TaskChanges{}, err
		}
		changes.Priority = &priority
	}
	if patch.ClearDueDate && patch.DueDate != nil {
		return models.TaskChanges{}, models.Validationf("dueDate and clearDueDate are mutually exclusive")
	}
	if err := validateDueDate(patch.DueDate); err != nil {
		return models.TaskChanges{}, err
	}
	changes.DueDate = patch.DueDate
	changes.ClearDueDate = patch.ClearDueDate
	changes.UpdatedAt = s.now().UnixMilli()

	return changes, nil
}

// resolveUsers looks up every owner and comment author of tasks in one batch.
// Users that no longer exist stay as bare ids.
func (s *TaskService) resolveUsers(ctx context.Context, tasks []models.Task) ([]models.TaskView, error) {
	seen := make(map[string]bool)
	ids := []string{}
	collect := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, task := range tasks {
		collect(task.CreatedBy)
		for _, comment := range task.Comments {
			collect(comment.UserID)
		}
	}

	refs := make(map[string]models.UserRef, len(ids))
	if len(ids) > 0 {
		users, err := s.users.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range users {
			refs[users[i].ID] = models.NewUserRef(&users[i])
		}
	}
	ref := func(id string) models.UserRef {
		if r, ok := refs[id]; ok {
			return r
		}
		return models.UserRef{ID: id}
	}

	views := make([]models.TaskView, 0, len(tasks))
	for _, task := range tasks {
		comments := make([]models.CommentView, 0, len(task.Comments))
		for _, comment := range task.Comments {
			comments = append(comments, models.CommentView{
				Text:      comment.Text,
				UserID:    ref(comment.UserID),
				CreatedAt: comment.CreatedAt,
			})
		}
		views = append(views, models.TaskView{
			Task:      task,
			CreatedBy: ref(task.CreatedBy),
			Comments:  comments,
		})
	}
	return views, nil
}

func validateDueDate(due *int64) error {
	if due != nil && *due < 0 {
		return models.Validationf("dueDate must be milliseconds since epoch")
	}
	return nil
}
