package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection      = "users"
	tasksCollection      = "task"
	groupsCollection     = "groups"
	groupTasksCollection = "group_tasks"
)

var byCreatedAt = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}

type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo connects to uri, pings the server and makes sure the unique
// indexes exist.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("could not connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	m := &Mongo{client: client, db: client.Database(database)}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	unique := func(field string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
	}

	if _, err := m.db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		unique("email"),
		unique("username"),
	}); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	if _, err := m.db.Collection(groupsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		unique("name"),
		{Keys: bson.D{{Key: "created_by", Value: 1}}},
		{Keys: bson.D{{Key: "members", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create group indexes: %w", err)
	}
	if _, err := m.db.Collection(tasksCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create task indexes: %w", err)
	}
	if _, err := m.db.Collection(groupTasksCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "group_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create group task indexes: %w", err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func mongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrConflict
	default:
		return err
	}
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) (T, error) {
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		var zero T
		return zero, mongoError(err)
	}
	return out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) ([]T, error) {
	cur, err := coll.Find(ctx, filter, options.Find().SetSort(byCreatedAt))
	if err != nil {
		return nil, err
	}
	out := make([]T, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func updateOne(ctx context.Context, coll *mongo.Collection, filter, set bson.M) error {
	res, err := coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return mongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteOne(ctx context.Context, coll *mongo.Collection, filter bson.M) error {
	res, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// --- users ---

func (m *Mongo) users() *mongo.Collection { return m.db.Collection(usersCollection) }

func (m *Mongo) CreateUser(ctx context.Context, u User) error {
	_, err := m.users().InsertOne(ctx, u)
	return mongoError(err)
}

func (m *Mongo) GetUser(ctx context.Context, id string) (User, error) {
	return findOne[User](ctx, m.users(), bson.M{"_id": id})
}

func (m *Mongo) FindUserByUsername(ctx context.Context, username string) (User, error) {
	return findOne[User](ctx, m.users(), bson.M{"username": username})
}

func (m *Mongo) FindUserByEmail(ctx context.Context, email string) (User, error) {
	return findOne[User](ctx, m.users(), bson.M{"email": email})
}

func (m *Mongo) ListUsers(ctx context.Context) ([]User, error) {
	return findAll[User](ctx, m.users(), bson.M{})
}

func (m *Mongo) UpdateUser(ctx context.Context, id string, p UserPatch) error {
	if p.empty() {
		return nil
	}
	set := bson.M{}
	if p.Username != nil {
		set["username"] = *p.Username
	}
	if p.Email != nil {
		set["email"] = *p.Email
	}
	if p.Role != nil {
		set["role"] = int(*p.Role)
	}
	if p.LastLogin != nil {
		set["last_login"] = *p.LastLogin
	}
	return updateOne(ctx, m.users(), bson.M{"_id": id}, set)
}

func (m *Mongo) DeleteUser(ctx context.Context, id string) error {
	return deleteOne(ctx, m.users(), bson.M{"_id": id})
}

// --- personal tasks ---

func (m *Mongo) tasks() *mongo.Collection { return m.db.Collection(tasksCollection) }

func (m *Mongo) CreateTask(ctx context.Context, t Task) error {
	_, err := m.tasks().InsertOne(ctx, t)
	return mongoError(err)
}

func (m *Mongo) GetTask(ctx context.Context, id string) (Task, error) {
	return findOne[Task](ctx, m.tasks(), bson.M{"_id": id})
}

func (m *Mongo) ListTasksByOwner(ctx context.Context, userID string) ([]Task, error) {
	return findAll[Task](ctx, m.tasks(), bson.M{"user_id": userID})
}

func (m *Mongo) UpdateTask(ctx context.Context, id string, p TaskPatch) error {
	set := bson.M{"updated_at": p.UpdatedAt}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Category != nil {
		set["category"] = *p.Category
	}
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.Deadline != nil {
		set["deadline"] = *p.Deadline
	}
	return updateOne(ctx, m.tasks(), bson.M{"_id": id}, set)
}

func (m *Mongo) DeleteTask(ctx context.Context, id string) error {
	return deleteOne(ctx, m.tasks(), bson.M{"_id": id})
}

// --- groups ---

func (m *Mongo) groups() *mongo.Collection { return m.db.Collection(groupsCollection) }

func (m *Mongo) CreateGroup(ctx context.Context, g Group) error {
	if g.Members == nil {
		g.Members = []string{}
	}
	if g.Tasks == nil {
		g.Tasks = map[string]any{}
	}
	_, err := m.groups().InsertOne(ctx, g)
	return mongoError(err)
}

func (m *Mongo) GetGroup(ctx context.Context, id string) (Group, error) {
	return findOne[Group](ctx, m.groups(), bson.M{"_id": id})
}

func (m *Mongo) FindGroupByName(ctx context.Context, name string) (Group, error) {
	return findOne[Group](ctx, m.groups(), bson.M{"name": name})
}

func (m *Mongo) ListGroupsByCreator(ctx context.Context, userID string) ([]Group, error) {
	return findAll[Group](ctx, m.groups(), bson.M{"created_by": userID})
}

// ListGroupsByMember matches userID against the members array.
func (m *Mongo) ListGroupsByMember(ctx context.Context, userID string) ([]Group, error) {
	return findAll[Group](ctx, m.groups(), bson.M{"members": userID})
}

func (m *Mongo) SetGroupMembers(ctx context.Context, id string, members []string, updatedAt time.Time) error {
	if members == nil {
		members = []string{}
	}
	return updateOne(ctx, m.groups(), bson.M{"_id": id}, bson.M{
		"members":    members,
		"updated_at": updatedAt,
	})
}

func (m *Mongo) DeleteGroup(ctx context.Context, id string) error {
	if err := deleteOne(ctx, m.groups(), bson.M{"_id": id}); err != nil {
		return err
	}
	_, err := m.groupTasks().DeleteMany(ctx, bson.M{"group_id": id})
	return err
}

// --- group tasks ---

func (m *Mongo) groupTasks() *mongo.Collection { return m.db.Collection(groupTasksCollection) }

func (m *Mongo) CreateGroupTask(ctx context.Context, t GroupTask) error {
	if _, err := m.GetGroup(ctx, t.GroupID); err != nil {
		return err
	}
	_, err := m.groupTasks().InsertOne(ctx, t)
	return mongoError(err)
}

func (m *Mongo) GetGroupTask(ctx context.Context, groupID, taskID string) (GroupTask, error) {
	return findOne[GroupTask](ctx, m.groupTasks(), bson.M{"_id": taskID, "group_id": groupID})
}

func (m *Mongo) ListGroupTasks(ctx context.Context, groupID string) ([]GroupTask, error) {
	return findAll[GroupTask](ctx, m.groupTasks(), bson.M{"group_id": groupID})
}

func (m *Mongo) UpdateGroupTaskStatus(ctx context.Context, groupID, taskID, status, updatedBy string, updatedAt time.Time) error {
	return updateOne(ctx, m.groupTasks(), bson.M{"_id": taskID, "group_id": groupID}, bson.M{
		"status":     status,
		"updated_by": updatedBy,
		"updated_at": updatedAt,
	})
}

func (m *Mongo) DeleteGroupTask(ctx context.Context, groupID, taskID string) error {
	return deleteOne(ctx, m.groupTasks(), bson.M{"_id": taskID, "group_id": groupID})
}
