package models

import "strings"

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in progress"
	StatusCompleted  TaskStatus = "completed"
)

// ParseTaskStatus accepts the stored spelling and the hyphenated "in-progress" alias.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StatusPending):
		return StatusPending, nil
	case string(StatusInProgress), "in-progress", "in_progress":
		return StatusInProgress, nil
	case string(StatusCompleted):
		return StatusCompleted, nil
	}
	return "", Validationf("invalid status %q: must be one of pending, in progress, completed", s)
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func ParseTaskPriority(s string) (TaskPriority, error) {
	switch TaskPriority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	}
	return "", Validationf("invalid priority %q: must be one of low, medium, high", s)
}

// Comment is owned by its task and never edited once appended.
type Comment struct {
	Text      string `json:"text" bson:"text"`
	UserID    string `json:"userId" bson:"userId"`
	CreatedAt int64  `json:"createdAt" bson:"createdAt"`
}

// Task timestamps are milliseconds since the Unix epoch.
type Task struct {
	ID          string       `json:"id" bson:"_id"`
	Title       string       `json:"title" bson:"title"`
	Description string       `json:"description,omitempty" bson:"description,omitempty"`
	Status      TaskStatus   `json:"status" bson:"status"`
	Priority    TaskPriority `json:"priority" bson:"priority"`
	DueDate     *int64       `json:"dueDate,omitempty" bson:"dueDate,omitempty"`
	CreatedBy   string       `json:"createdBy" bson:"createdBy"`
	Category    string       `json:"category,omitempty" bson:"category,omitempty"`
	Comments    []Comment    `json:"comments" bson:"comments"`
	CreatedAt   int64        `json:"createdAt" bson:"createdAt"`
	UpdatedAt   int64        `json:"updatedAt" bson:"updatedAt"`
	// RemindedFor holds the due date a reminder was already delivered for.
	RemindedFor *int64 `json:"-" bson:"remindedFor,omitempty"`
}

// NeedsReminder reports whether the current due date has not been reminded yet.
func (t *Task) NeedsReminder() bool {
	if t.DueDate == nil {
		return false
	}
	return t.RemindedFor == nil || *t.RemindedFor != *t.DueDate
}

// TaskInput carries the caller supplied fields of a new task.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	DueDate     *int64 `json:"dueDate"`
	Category    string `json:"category"`
}

// TaskPatch is a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Status       *string `json:"status"`
	Priority     *string `json:"priority"`
	DueDate      *int64  `json:"dueDate"`
	ClearDueDate bool    `json:"clearDueDate"`
	Category     *string `json:"category"`
}

// TaskChanges is a validated TaskPatch ready to be applied by a store.
type TaskChanges struct {
	Title        *string
	Description  *string
	Status       *TaskStatus
	Priority     *TaskPriority
	DueDate      *int64
	ClearDueDate bool
	Category     *string
	UpdatedAt    int64
}

// Apply mutates t in place. Stores that work on decoded documents use it.
func (c TaskChanges) Apply(t *Task) {
	if c.Title != nil {
		t.Title = *c.Title
	}
	if c.Description != nil {
		t.Description = *c.Description
	}
	if c.Status != nil {
		t.Status = *c.Status
	}
	if c.Priority != nil {
		t.Priority = *c.Priority
	}
	if c.ClearDueDate {
		t.DueDate = nil
	} else if c.DueDate != nil {
		due := *c.DueDate
		t.DueDate = &due
	}
	if c.Category != nil {
		t.Category = *c.Category
	}
	t.UpdatedAt = c.UpdatedAt
}

// CommentView is a comment with its author resolved.
type CommentView struct {
	Text      string  `json:"text"`
	UserID    UserRef `json:"userId"`
	CreatedAt int64   `json:"createdAt"`
}

// TaskView is a task as returned by reads: the owner and comment authors are
// resolved to users. Its CreatedBy and Comments shadow the embedded fields.
type TaskView struct {
	Task
	CreatedBy UserRef       `json:"createdBy"`
	Comments  []CommentView `json:"comments"`
}

type TaskStats struct {
	Total     int64   `json:"total"`
	Completed int64   `json:"completed"`
	Progress  float64 `json:"progress"`
}
