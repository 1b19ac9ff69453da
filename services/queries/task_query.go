// Package queries turns the task list vocabulary (filters and a single sort key)
// into a validated TaskQuery that both the MongoDB and in-memory stores understand.
package queries

import (
	"cmp"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kerimlews/taskmanager/models"

	"go.mongodb.org/mongo-driver/bson"
)

type SortField string

const (
	SortTitle     SortField = "title"
	SortStatus    SortField = "status"
	SortPriority  SortField = "priority"
	SortDueDate   SortField = "dueDate"
	SortCategory  SortField = "category"
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
)

var sortFields = map[string]SortField{
	string(SortTitle):     SortTitle,
	string(SortStatus):    SortStatus,
	string(SortPriority):  SortPriority,
	string(SortDueDate):   SortDueDate,
	string(SortCategory):  SortCategory,
	string(SortCreatedAt): SortCreatedAt,
	string(SortUpdatedAt): SortUpdatedAt,
}

type SortDirection int

const (
	Ascending  SortDirection = 1
	Descending SortDirection = -1
)

const (
	ParamStatus   = "status"
	ParamPriority = "priority"
	ParamDueDate  = "dueDate"
	ParamSortBy   = "sortBy"
)

// TaskQuery is a conjunction of optional filters plus one sort key.
// An empty OwnerID means the query is not scoped to an owner.
type TaskQuery struct {
	OwnerID   string
	Status    *models.TaskStatus
	Priority  *models.TaskPriority
	DueFrom   *int64
	SortBy    SortField
	Direction SortDirection
}

// NewTaskQuery returns an unfiltered query ordered by creation time, newest first.
func NewTaskQuery(ownerID string) TaskQuery {
	return TaskQuery{
		OwnerID:   ownerID,
		SortBy:    SortCreatedAt,
		Direction: Descending,
	}
}

// ParseTaskQuery validates list parameters. Unknown parameters are rejected
// instead of being passed through to the store.
func ParseTaskQuery(ownerID string, params url.Values) (TaskQuery, error) {
	q := NewTaskQuery(ownerID)

	for key := range params {
		switch key {
		case ParamStatus, ParamPriority, ParamDueDate, ParamSortBy:
		default:
			return TaskQuery{}, models.Validationf("unsupported query parameter %q", key)
		}
	}

	if v := strings.TrimSpace(params.Get(ParamStatus)); v != "" {
		status, err := models.ParseTaskStatus(v)
		if err != nil {
			return TaskQuery{}, err
		}
		q.Status = &status
	}

	if v := strings.TrimSpace(params.Get(ParamPriority)); v != "" {
		priority, err := models.ParseTaskPriority(v)
		if err != nil {
			return TaskQuery{}, err
		}
		q.Priority = &priority
	}

	if v := strings.TrimSpace(params.Get(ParamDueDate)); v != "" {
		from, err := ParseInstant(v)
		if err != nil {
			return TaskQuery{}, err
		}
		q.DueFrom = &from
	}

	if v := strings.TrimSpace(params.Get(ParamSortBy)); v != "" {
		field, dir, err := ParseSort(v)
		if err != nil {
			return TaskQuery{}, err
		}
		q.SortBy, q.Direction = field, dir
	}

	return q, nil
}

// ParseSort reads "field" (ascending) or "-field" (descending).
func ParseSort(s string) (SortField, SortDirection, error) {
	dir := Ascending
	name := s
	if strings.HasPrefix(s, "-") {
		dir = Descending
		name = s[1:]
	}
	field, ok := sortFields[name]
	if !ok {
		return "", 0, models.Validationf("unsupported sort field %q", name)
	}
	return field, dir, nil
}

// ParseInstant accepts milliseconds since epoch, RFC3339 or a plain YYYY-MM-DD date (UTC).
func ParseInstant(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UnixMilli(), nil
	}
	return 0, models.Validationf("invalid date %q: expected milliseconds, RFC3339 or YYYY-MM-DD", s)
}

// Filter renders the query as a MongoDB filter document.
func (q TaskQuery) Filter() bson.M {
	filter := bson.M{}
	if q.OwnerID != "" {
		filter["createdBy"] = q.OwnerID
	}
	if q.Status != nil {
		filter["status"] = *q.Status
	}
	if q.Priority != nil {
		filter["priority"] = *q.Priority
	}
	if q.DueFrom != nil {
		filter["dueDate"] = bson.M{"$gte": *q.DueFrom}
	}
	return filter
}

// Sort renders the ordering as a MongoDB sort document.
func (q TaskQuery) Sort() bson.D {
	field, dir := q.sortKey()
	return bson.D{{Key: string(field), Value: int(dir)}}
}

// Match evaluates the filter against a decoded task.
func (q TaskQuery) Match(t *models.Task) bool {
	if q.OwnerID != "" && t.CreatedBy != q.OwnerID {
		return false
	}
	if q.Status != nil && t.Status != *q.Status {
		return false
	}
	if q.Priority != nil && t.Priority != *q.Priority {
		return false
	}
	if q.DueFrom != nil && (t.DueDate == nil || *t.DueDate < *q.DueFrom) {
		return false
	}
	return true
}

// Compare orders two tasks the way the MongoDB sort document would:
// strings compare bytewise and a missing due date sorts before any value.
func (q TaskQuery) Compare(a, b *models.Task) int {
	field, dir := q.sortKey()
	var c int
	switch field {
	case SortTitle:
		c = cmp.Compare(a.Title, b.Title)
	case SortStatus:
		c = cmp.Compare(a.Status, b.Status)
	case SortPriority:
		c = cmp.Compare(a.Priority, b.Priority)
	case SortCategory:
		c = cmp.Compare(a.Category, b.Category)
	case SortDueDate:
		c = compareOptional(a.DueDate, b.DueDate)
	case SortUpdatedAt:
		c = cmp.Compare(a.UpdatedAt, b.UpdatedAt)
	default:
		c = cmp.Compare(a.CreatedAt, b.CreatedAt)
	}
	return c * int(dir)
}

func (q TaskQuery) sortKey() (SortField, SortDirection) {
	field, dir := q.SortBy, q.Direction
	if field == "" {
		field = SortCreatedAt
	}
	if dir == 0 {
		dir = Descending
		if q.SortBy != "" {
			dir = Ascending
		}
	}
	return field, dir
}

func compareOptional(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmp.Compare(*a, *b)
}
