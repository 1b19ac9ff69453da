package repositories

import (
	"cmp"
	"context"
	"strings"
	"sync"

	"github.com/kerimlews/taskmanager/models"
	"github.com/kerimlews/taskmanager/services/queries"

	"golang.org/x/exp/slices"
)

// MemoryTaskRepository keeps tasks in process memory. It backs STORE_DRIVER=memory
// and the service tests; order of insertion breaks sort ties.
type MemoryTaskRepository struct {
	mu    sync.RWMutex
	order []string
	tasks map[string]*models.Task
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{tasks: make(map[string]*models.Task)}
}

func (r *MemoryTaskRepository) Insert(_ context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[task.ID]; exists {
		return models.Validationf("task %s already exists", task.ID)
	}
	if task.Comments == nil {
		task.Comments = []models.Comment{}
	}
	r.tasks[task.ID] = cloneTask(task)
	r.order = append(r.order, task.ID)
	return nil
}

func (r *MemoryTaskRepository) FindByID(_ context.Context, id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, models.NotFoundf("task %s", id)
	}
	return cloneTask(task), nil
}

func (r *MemoryTaskRepository) Find(_ context.Context, q queries.TaskQuery) ([]models.Task, error) {
	r.mu.RLock()
	matched := make([]*models.Task, 0, len(r.order))
	for _, id := range r.order {
		if task := r.tasks[id]; q.Match(task) {
			matched = append(matched, cloneTask(task))
		}
	}
	r.mu.RUnlock()

	slices.SortStableFunc(matched, q.Compare)

	tasks := make([]models.Task, 0, len(matched))
	for _, task := range matched {
		tasks = append(tasks, *task)
	}
	return tasks, nil
}

func (r *MemoryTaskRepository) Update(_ context.Context, id string, changes models.TaskChanges) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, models.NotFoundf("task %s", id)
	}
	changes.Apply(task)
	return cloneTask(task), nil
}

func (r *MemoryTaskRepository) AppendComment(_ context.Context, id string, comment models.Comment, updatedAt int64) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, models.NotFoundf("task %s", id)
	}
	task.Comments = append(task.Comments, comment)
	task.UpdatedAt = updatedAt
	return cloneTask(task), nil
}

func (r *MemoryTaskRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return models.NotFoundf("task %s", id)
	}
	delete(r.tasks, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return nil
}

func (r *MemoryTaskRepository) Count(_ context.Context, status *models.TaskStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, task := range r.tasks {
		if status == nil || task.Status == *status {
			n++
		}
	}
	return n, nil
}

func (r *MemoryTaskRepository) FindDueBetween(_ context.Context, from, to int64) ([]models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tasks := []models.Task{}
	for _, id := range r.order {
		task := r.tasks[id]
		if task.DueDate != nil && *task.DueDate >= from && *task.DueDate <= to {
			tasks = append(tasks, *cloneTask(task))
		}
	}
	slices.SortStableFunc(tasks, func(a, b models.Task) int {
		return cmp.Compare(*a.DueDate, *b.DueDate)
	})
	return tasks, nil
}

func (r *MemoryTaskRepository) MarkReminded(_ context.Context, id string, dueDate int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || task.DueDate == nil || *task.DueDate != dueDate {
		return nil
	}
	marked := dueDate
	task.RemindedFor = &marked
	return nil
}

// MemoryUserRepository mirrors UserRepository, including the unique email constraint.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	order []string
	users map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*models.User)}
}

func (r *MemoryUserRepository) Insert(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTaken(user.Email, "") {
		return models.Validationf("user already exists")
	}
	u := *user
	r.users[u.ID] = &u
	r.order = append(r.order, u.ID)
	return nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, models.NotFoundf("user %s", id)
	}
	u := *user
	return &u, nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			u := *user
			return &u, nil
		}
	}
	return nil, models.NotFoundf("user %s", email)
}

func (r *MemoryUserRepository) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := []models.User{}
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			users = append(users, *user)
		}
	}
	return users, nil
}

func (r *MemoryUserRepository) List(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]models.User, 0, len(r.order))
	for _, id := range r.order {
		users = append(users, *r.users[id])
	}
	return users, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, id string, email *string, role *models.Role, updatedAt int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, models.NotFoundf("user %s", id)
	}
	if email != nil {
		if r.emailTaken(*email, id) {
			return nil, models.Validationf("email already in use")
		}
		user.Email = *email
	}
	if role != nil {
		user.Role = *role
	}
	user.UpdatedAt = updatedAt
	u := *user
	return &u, nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return models.NotFoundf("user %s", id)
	}
	delete(r.users, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return nil
}

func (r *MemoryUserRepository) emailTaken(email, exceptID string) bool {
	for id, user := range r.users {
		if id != exceptID && strings.EqualFold(user.Email, email) {
			return true
		}
	}
	return false
}

func cloneTask(t *models.Task) *models.Task {
	c := *t
	if t.DueDate != nil {
		due := *t.DueDate
		c.DueDate = &due
	}
	if t.RemindedFor != nil {
		marked := *t.RemindedFor
		c.RemindedFor = &marked
	}
	c.Comments = append([]models.Comment{}, t.Comments...)
	return &c
}
