package repositories

import (
	"context"
	"errors"

	"github.com/kerimlews/taskmanager/models"
	"github.com/kerimlews/taskmanager/services/queries"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TaskRepository stores tasks as documents keyed by their UUID.
// Every mutation touches exactly one document.
type TaskRepository struct {
	collection *mongo.Collection
	logger     logrus.FieldLogger
}

func NewTaskRepository(collection *mongo.Collection, logger logrus.FieldLogger) *TaskRepository {
	return &TaskRepository{
		collection: collection,
		logger:     logger,
	}
}

// EnsureIndexes creates the indexes used by owner listing and the reminder scan.
func (r *TaskRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "dueDate", Value: 1}}},
	})
	if err != nil {
		return models.DependencyError("create task indexes", err)
	}
	r.logger.Infof("Event ID: DB_INDEXES_READY, Description: Task indexes ensured on %s", r.collection.Name())
	return nil
}

func (r *TaskRepository) Insert(ctx context.Context, task *models.Task) error {
	if task.Comments == nil {
		task.Comments = []models.Comment{}
	}
	if _, err := r.collection.InsertOne(ctx, task); err != nil {
		return models.DependencyError("insert task", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err != nil {
		return nil, translate(err, "task", id)
	}
	return &task, nil
}

func (r *TaskRepository) Find(ctx context.Context, q queries.TaskQuery) ([]models.Task, error) {
	cursor, err := r.collection.Find(ctx, q.Filter(), options.Find().SetSort(q.Sort()))
	if err != nil {
		return nil, models.DependencyError("find tasks", err)
	}
	defer cursor.Close(ctx)

	tasks := []models.Task{}
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, models.DependencyError("decode tasks", err)
	}
	return tasks, nil
}

func (r *TaskRepository) Update(ctx context.Context, id string, changes models.TaskChanges) (*models.Task, error) {
	set := bson.M{"updatedAt": changes.UpdatedAt}
	if changes.Title != nil {
		set["title"] = *changes.Title
	}
	if changes.Description != nil {
		set["description"] = *changes.Description
	}
	if changes.Status != nil {
		set["status"] = *changes.Status
	}
	if changes.Priority != nil {
		set["priority"] = *changes.Priority
	}
	if changes.Category != nil {
		set["category"] = *changes.Category
	}
	update := bson.M{}
	if changes.ClearDueDate {
		update["$unset"] = bson.M{"dueDate": ""}
	} else if changes.DueDate != nil {
		set["dueDate"] = *changes.DueDate
	}
	update["$set"] = set

	return r.findOneAndUpdate(ctx, id, update)
}

func (r *TaskRepository) AppendComment(ctx context.Context, id string, comment models.Comment, updatedAt int64) (*models.Task, error) {
	update := bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updatedAt": updatedAt},
	}
	return r.findOneAndUpdate(ctx, id, update)
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return models.DependencyError("delete task", err)
	}
	if result.DeletedCount == 0 {
		return models.NotFoundf("task %s", id)
	}
	return nil
}

// Count returns the number of tasks, optionally restricted to one status.
func (r *TaskRepository) Count(ctx context.Context, status *models.TaskStatus) (int64, error) {
	filter := bson.M{}
	if status != nil {
		filter["status"] = *status
	}
	n, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, models.DependencyError("count tasks", err)
	}
	return n, nil
}

// FindDueBetween returns tasks whose due date lies in [from, to].
func (r *TaskRepository) FindDueBetween(ctx context.Context, from, to int64) ([]models.Task, error) {
	filter := bson.M{"dueDate": bson.M{"$gte": from, "$lte": to}}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "dueDate", Value: 1}}))
	if err != nil {
		return nil, models.DependencyError("find due tasks", err)
	}
	defer cursor.Close(ctx)

	tasks := []models.Task{}
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, models.DependencyError("decode due tasks", err)
	}
	return tasks, nil
}

// MarkReminded records that the reminder for dueDate was delivered. The write is
// conditional on the due date so a concurrent reschedule keeps its reminder armed.
func (r *TaskRepository) MarkReminded(ctx context.Context, id string, dueDate int64) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "dueDate": dueDate},
		bson.M{"$set": bson.M{"remindedFor": dueDate}},
	)
	if err != nil {
		return models.DependencyError("mark task reminded", err)
	}
	return nil
}

func (r *TaskRepository) findOneAndUpdate(ctx context.Context, id string, update bson.M) (*models.Task, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var task models.Task
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&task)
	if err != nil {
		return nil, translate(err, "task", id)
	}
	return &task, nil
}

func translate(err error, kind, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.NotFoundf("%s %s", kind, id)
	}
	return models.DependencyError("load "+kind, err)
}
