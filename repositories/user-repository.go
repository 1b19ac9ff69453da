package repositories

import (
	"context"

	"github.com/kerimlews/taskmanager/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepository struct {
	collection *mongo.Collection
	logger     logrus.FieldLogger
}

func NewUserRepository(collection *mongo.Collection, logger logrus.FieldLogger) *UserRepository {
	return &UserRepository{
		collection: collection,
		logger:     logger,
	}
}

// EnsureIndexes makes email unique so sign-up races cannot create duplicates.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return models.DependencyError("create user indexes", err)
	}
	r.logger.Infof("Event ID: DB_INDEXES_READY, Description: User indexes ensured on %s", r.collection.Name())
	return nil
}

func (r *UserRepository) Insert(ctx context.Context, user *models.User) error {
	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Validationf("user already exists")
		}
		return models.DependencyError("insert user", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, translate(err, "user", id)
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, translate(err, "user", email)
	}
	return &user, nil
}

// FindByIDs returns the users among ids that exist, in no particular order.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, models.DependencyError("find users by id", err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &users); err != nil {
		return nil, models.DependencyError("decode users", err)
	}
	return users, nil
}

func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, models.DependencyError("find users", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, models.DependencyError("decode users", err)
	}
	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, id string, email *string, role *models.Role, updatedAt int64) (*models.User, error) {
	set := bson.M{"updatedAt": updatedAt}
	if email != nil {
		set["email"] = *email
	}
	if role != nil {
		set["role"] = *role
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, models.Validationf("email already in use")
		}
		return nil, translate(err, "user", id)
	}
	return &user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return models.DependencyError("delete user", err)
	}
	if result.DeletedCount == 0 {
		return models.NotFoundf("user %s", id)
	}
	return nil
}
