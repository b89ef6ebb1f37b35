// Package store is the resource store adapter: users, personal tasks,
// groups and the tasks that belong to a group. Backends are in-memory,
// PostgreSQL and MongoDB; all of them report missing records with
// ErrNotFound and uniqueness violations with ErrConflict.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	FindUserByUsername(ctx context.Context, username string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id string, p UserPatch) error
	DeleteUser(ctx context.Context, id string) error
}

type TaskStore interface {
	CreateTask(ctx context.Context, t Task) error
	GetTask(ctx context.Context, id string) (Task, error)
	ListTasksByOwner(ctx context.Context, userID string) ([]Task, error)
	UpdateTask(ctx context.Context, id string, p TaskPatch) error
	DeleteTask(ctx context.Context, id string) error
}

type GroupStore interface {
	CreateGroup(ctx context.Context, g Group) error
	GetGroup(ctx context.Context, id string) (Group, error)
	FindGroupByName(ctx context.Context, name string) (Group, error)
	ListGroupsByCreator(ctx context.Context, userID string) ([]Group, error)
	ListGroupsByMember(ctx context.Context, userID string) ([]Group, error)
	SetGroupMembers(ctx context.Context, id string, members []string, updatedAt time.Time) error
	// DeleteGroup removes the group and every task under it.
	DeleteGroup(ctx context.Context, id string) error
}

type GroupTaskStore interface {
	CreateGroupTask(ctx context.Context, t GroupTask) error
	GetGroupTask(ctx context.Context, groupID, taskID string) (GroupTask, error)
	ListGroupTasks(ctx context.Context, groupID string) ([]GroupTask, error)
	UpdateGroupTaskStatus(ctx context.Context, groupID, taskID, status, updatedBy string, updatedAt time.Time) error
	DeleteGroupTask(ctx context.Context, groupID, taskID string) error
}

type Store interface {
	UserStore
	TaskStore
	GroupStore
	GroupTaskStore
	Close(ctx context.Context) error
}
