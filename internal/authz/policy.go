// Package authz decides whether a subject may perform an action on a
// resource. Decisions are pure: callers fetch the subject's current role
// and the resource's ownership data before asking.
package authz

import "slices"

// Can reports whether s may perform a on r. Unknown actions are denied.
func Can(s Subject, a Action, r Resource) bool {
	if s.UID == "" {
		return false
	}

	switch a {
	case ReadTask, UpdateTask, DeleteTask:
		return r.OwnerID != "" && r.OwnerID == s.UID
	case ListGroups:
		return true
	case CreateGroup, DeleteGroup, AddMember, RemoveMember:
		return s.Role == RoleAdmin
	case DeleteGroupTask, CreateGroupTask:
		return s.Role == RoleAdmin || isCreator(s, r)
	case ListGroupTasks, UpdateGroupTask, ListMembers:
		return s.Role == RoleAdmin || isCreator(s, r) || slices.Contains(r.Members, s.UID)
	case ListUsers, UpdateUser, DeleteUser:
		return s.Role == RoleAdmin
	default:
		return false
	}
}

// GroupListScope picks the group listing for s: admins see the groups they
// created, everybody else the groups they belong to.
func GroupListScope(s Subject) GroupScope {
	if s.Role == RoleAdmin {
		return ScopeCreated
	}
	return ScopeMember
}

func isCreator(s Subject, r Resource) bool {
	return r.CreatorID != "" && r.CreatorID == s.UID
}
