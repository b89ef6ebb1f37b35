package store

import (
	"time"

	"kyri56xcaesar/taskhub/internal/authz"
)

type User struct {
	ID           string     `json:"id" bson:"_id"`
	Email        string     `json:"email" bson:"email"`
	Username     string     `json:"username" bson:"username"`
	PasswordHash string     `json:"-" bson:"password_hash"`
	Role         authz.Role `json:"role" bson:"role"`
	LastLogin    time.Time  `json:"last_login" bson:"last_login"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at"`
}

// Public returns u without credential material.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// UserPatch lists the user fields to change; nil means unchanged.
type UserPatch struct {
	Username  *string
	Email     *string
	Role      *authz.Role
	LastLogin *time.Time
}

func (p UserPatch) empty() bool {
	return p.Username == nil && p.Email == nil && p.Role == nil && p.LastLogin == nil
}

type Task struct {
	ID          string    `json:"id" bson:"_id"`
	UserID      string    `json:"userId" bson:"user_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	Category    string    `json:"category" bson:"category"`
	Status      string    `json:"status" bson:"status"`
	Deadline    time.Time `json:"deadline" bson:"deadline"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// TaskPatch lists the task fields to change; nil means unchanged.
// UpdatedAt is always written.
type TaskPatch struct {
	Name        *string
	Description *string
	Category    *string
	Status      *string
	Deadline    *time.Time
	UpdatedAt   time.Time
}

type Group struct {
	ID        string         `json:"id" bson:"_id"`
	Name      string         `json:"name" bson:"name"`
	CreatedBy string         `json:"createdBy" bson:"created_by"`
	Members   []string       `json:"members" bson:"members"`
	Tasks     map[string]any `json:"tasks" bson:"tasks"`
	Status    string         `json:"status" bson:"status"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" bson:"updated_at"`
}

type GroupTask struct {
	ID          string    `json:"id" bson:"_id"`
	GroupID     string    `json:"groupId" bson:"group_id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	DueDate     time.Time `json:"dueDate" bson:"due_date"`
	AssignedTo  string    `json:"assignedTo" bson:"assigned_to"`
	Status      string    `json:"status" bson:"status"`
	UpdatedBy   string    `json:"updatedBy,omitempty" bson:"updated_by"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}
