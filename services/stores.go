package services

import (
	"context"
	"time"

	"github.com/kerimlews/taskmanager/models"
	"github.com/kerimlews/taskmanager/services/queries"
)

// TaskStore is the task persistence collaborator. Implementations must apply each
// call to a single record atomically.
type TaskStore interface {
	Insert(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id string) (*models.Task, error)
	Find(ctx context.Context, q queries.TaskQuery) ([]models.Task, error)
	Update(ctx context.Context, id string, changes models.TaskChanges) (*models.Task, error)
	AppendComment(ctx context.Context, id string, comment models.Comment, updatedAt int64) (*models.Task, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, status *models.TaskStatus) (int64, error)
}

// ReminderTaskStore is the read side the reminder scheduler needs, plus its marker.
type ReminderTaskStore interface {
	FindDueBetween(ctx context.Context, from, to int64) ([]models.Task, error)
	MarkReminded(ctx context.Context, id string, dueDate int64) error
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// UserDirectory resolves a set of users in one round trip. Unknown ids are
// simply absent from the result.
type UserDirectory interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type UserStore interface {
	UserFinder
	UserDirectory
	Insert(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, id string, email *string, role *models.Role, updatedAt int64) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// Mailer is the mail transport collaborator.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Clock returns the current instant; tests replace it.
type Clock func() time.Time
