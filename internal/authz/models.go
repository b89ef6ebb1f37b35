package authz

import "strconv"

type Role int

const (
	RoleAdmin  Role = 1
	RoleNormal Role = 2
	RoleMaster Role = 3
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleNormal || r == RoleMaster
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleNormal:
		return "normal"
	case RoleMaster:
		return "master"
	default:
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
}

// Claims are the identity attributes carried by a verified token.
type Claims struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Subject is who a decision is taken for. Role must come from the store,
// not from the token.
type Subject struct {
	UID  string
	Role Role
}

type Action int

const (
	ReadTask Action = iota + 1
	UpdateTask
	DeleteTask
	ListGroups
	CreateGroup
	DeleteGroup
	AddMember
	RemoveMember
	ListMembers
	CreateGroupTask
	ListGroupTasks
	UpdateGroupTask
	DeleteGroupTask
	ListUsers
	UpdateUser
	DeleteUser
)

// Resource carries the ownership data a decision may need. Unused fields
// stay empty.
type Resource struct {
	OwnerID   string
	CreatorID string
	Members   []string
}

// GroupScope selects which groups a subject gets to see.
type GroupScope int

const (
	ScopeCreated GroupScope = iota + 1
	ScopeMember
)
