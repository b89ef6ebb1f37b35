package store

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// Memory keeps every collection in process maps. Used by tests and by the
// "memory" backend for local runs.
type Memory struct {
	mu         sync.RWMutex
	users      map[string]User
	tasks      map[string]Task
	groups     map[string]Group
	groupTasks map[string]map[string]GroupTask
}

func NewMemory() *Memory {
	return &Memory{
		users:      make(map[string]User),
		tasks:      make(map[string]Task),
		groups:     make(map[string]Group),
		groupTasks: make(map[string]map[string]GroupTask),
	}
}

func (m *Memory) Close(context.Context) error { return nil }

// --- users ---

func (m *Memory) CreateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.ID]; ok {
		return ErrConflict
	}
	for _, existing := range m.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return ErrConflict
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) FindUserByUsername(_ context.Context, username string) (User, error) {
	return m.findUser(func(u User) bool { return u.Username == username })
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (User, error) {
	return m.findUser(func(u User) bool { return u.Email == email })
}

func (m *Memory) findUser(match func(User) bool) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *Memory) ListUsers(_ context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := slices.Collect(maps.Values(m.users))
	if out == nil {
		out = make([]User, 0)
	}
	slices.SortFunc(out, func(a, b User) int {
		return byCreated(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) UpdateUser(_ context.Context, id string, p UserPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	for otherID, other := range m.users {
		if otherID == id {
			continue
		}
		if (p.Username != nil && other.Username == *p.Username) || (p.Email != nil && other.Email == *p.Email) {
			return ErrConflict
		}
	}

	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.LastLogin != nil {
		u.LastLogin = *p.LastLogin
	}
	m.users[id] = u
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// --- personal tasks ---

func (m *Memory) CreateTask(_ context.Context, t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[t.ID]; ok {
		return ErrConflict
	}
	m.tasks[t.ID] = t
	return nil
}

func (m *Memory) GetTask(_ context.Context, id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) ListTasksByOwner(_ context.Context, userID string) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Task, 0)
	for _, t := range m.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b Task) int {
		return byCreated(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) UpdateTask(_ context.Context, id string, p TaskPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Deadline != nil {
		t.Deadline = *p.Deadline
	}
	t.UpdatedAt = p.UpdatedAt
	m.tasks[id] = t
	return nil
}

func (m *Memory) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

// --- groups ---

func (m *Memory) CreateGroup(_ context.Context, g Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[g.ID]; ok {
		return ErrConflict
	}
	for _, existing := range m.groups {
		if existing.Name == g.Name {
			return ErrConflict
		}
	}
	g.Members = slices.Clone(g.Members)
	g.Tasks = maps.Clone(g.Tasks)
	m.groups[g.ID] = g
	return nil
}

func (m *Memory) GetGroup(_ context.Context, id string) (Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return cloneGroup(g), nil
}

func (m *Memory) FindGroupByName(_ context.Context, name string) (Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, g := range m.groups {
		if g.Name == name {
			return cloneGroup(g), nil
		}
	}
	return Group{}, ErrNotFound
}

func (m *Memory) ListGroupsByCreator(_ context.Context, userID string) ([]Group, error) {
	return m.listGroups(func(g Group) bool { return g.CreatedBy == userID }), nil
}

func (m *Memory) ListGroupsByMember(_ context.Context, userID string) ([]Group, error) {
	return m.listGroups(func(g Group) bool { return slices.Contains(g.Members, userID) }), nil
}

func (m *Memory) listGroups(keep func(Group) bool) []Group {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Group, 0)
	for _, g := range m.groups {
		if keep(g) {
			out = append(out, cloneGroup(g))
		}
	}
	slices.SortFunc(out, func(a, b Group) int {
		return byCreated(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return out
}

func (m *Memory) SetGroupMembers(_ context.Context, id string, members []string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[id]
	if !ok {
		return ErrNotFound
	}
	g.Members = slices.Clone(members)
	g.UpdatedAt = updatedAt
	m.groups[id] = g
	return nil
}

func (m *Memory) DeleteGroup(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[id]; !ok {
		return ErrNotFound
	}
	delete(m.groups, id)
	delete(m.groupTasks, id)
	return nil
}

// --- group tasks ---

func (m *Memory) CreateGroupTask(_ context.Context, t GroupTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[t.GroupID]; !ok {
		return ErrNotFound
	}
	bucket, ok := m.groupTasks[t.GroupID]
	if !ok {
		bucket = make(map[string]GroupTask)
		m.groupTasks[t.GroupID] = bucket
	}
	if _, ok := bucket[t.ID]; ok {
		return ErrConflict
	}
	bucket[t.ID] = t
	return nil
}

func (m *Memory) GetGroupTask(_ context.Context, groupID, taskID string) (GroupTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.groupTasks[groupID][taskID]
	if !ok {
		return GroupTask{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) ListGroupTasks(_ context.Context, groupID string) ([]GroupTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := slices.Collect(maps.Values(m.groupTasks[groupID]))
	if out == nil {
		out = make([]GroupTask, 0)
	}
	slices.SortFunc(out, func(a, b GroupTask) int {
		return byCreated(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) UpdateGroupTaskStatus(_ context.Context, groupID, taskID, status, updatedBy string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.groupTasks[groupID][taskID]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	t.UpdatedBy = updatedBy
	t.UpdatedAt = updatedAt
	m.groupTasks[groupID][taskID] = t
	return nil
}

func (m *Memory) DeleteGroupTask(_ context.Context, groupID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groupTasks[groupID][taskID]; !ok {
		return ErrNotFound
	}
	delete(m.groupTasks[groupID], taskID)
	return nil
}

func cloneGroup(g Group) Group {
	g.Members = slices.Clone(g.Members)
	g.Tasks = maps.Clone(g.Tasks)
	return g
}

func byCreated(a, b time.Time, aID, bID string) int {
	if c := a.Compare(b); c != 0 {
		return c
	}
	return strings.Compare(aID, bID)
}
