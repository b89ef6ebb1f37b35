// Package mgroup manages groups, their members and the tasks assigned
// inside a group. Group management is reserved to admins; reading and
// moving tasks along is open to the group's creator and members.
package mgroup

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"kyri56xcaesar/taskhub/internal/apperr"
	"kyri56xcaesar/taskhub/internal/authz"
	"kyri56xcaesar/taskhub/internal/muser"
	"kyri56xcaesar/taskhub/internal/store"
	"kyri56xcaesar/taskhub/internal/utils"
)

type Service struct {
	groups store.GroupStore
	tasks  store.GroupTaskStore
	users  store.UserStore
	now    func() time.Time
}

func NewService(groups store.GroupStore, tasks store.GroupTaskStore, users store.UserStore) *Service {
	return &Service{groups: groups, tasks: tasks, users: users, now: time.Now}
}

func resourceOf(g store.Group) authz.Resource {
	return authz.Resource{CreatorID: g.CreatedBy, Members: g.Members}
}

func (s *Service) getGroup(ctx context.Context, groupID string) (store.Group, error) {
	g, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Group{}, apperr.New(apperr.NotFound, "group not found")
		}
		return store.Group{}, apperr.Wrap(apperr.Internal, "get group", err)
	}
	return g, nil
}

// requireAdmin gates the admin-only actions before anything is looked up.
func (s *Service) requireAdmin(ctx context.Context, requesterID string, action authz.Action, msg string) error {
	sub, err := muser.LoadSubject(ctx, s.users, requesterID)
	if err != nil {
		return err
	}
	if !authz.Can(sub, action, authz.Resource{}) {
		return apperr.New(apperr.Forbidden, msg)
	}
	return nil
}

// groupFor loads the group and checks action against its creator and
// members.
func (s *Service) groupFor(ctx context.Context, groupID, requesterID string, action authz.Action) (store.Group, error) {
	sub, err := muser.LoadSubject(ctx, s.users, requesterID)
	if err != nil {
		return store.Group{}, err
	}
	g, err := s.getGroup(ctx, groupID)
	if err != nil {
		return store.Group{}, err
	}
	if !authz.Can(sub, action, resourceOf(g)) {
		return store.Group{}, apperr.New(apperr.Forbidden, "not allowed in this group")
	}
	return g, nil
}

func (s *Service) CreateGroup(ctx context.Context, creatorID string, req CreateGroupRequest) (store.Group, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return store.Group{}, apperr.New(apperr.BadRequest, "group name is required")
	}
	if err := s.requireAdmin(ctx, creatorID, authz.CreateGroup, "only admins can create groups"); err != nil {
		return store.Group{}, err
	}

	if _, err := s.groups.FindGroupByName(ctx, name); err == nil {
		return store.Group{}, apperr.New(apperr.Conflict, "a group with this name already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.Group{}, apperr.Wrap(apperr.Internal, "lookup group", err)
	}

	now := s.now().UTC()
	g := store.Group{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: creatorID,
		Members:   utils.Uniq(req.Members),
		Tasks:     map[string]any{},
		Status:    statusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.groups.CreateGroup(ctx, g); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.Group{}, apperr.New(apperr.Conflict, "a group with this name already exists")
		}
		return store.Group{}, apperr.Wrap(apperr.Internal, "create group", err)
	}

	log.Info().Str("group", g.ID).Str("name", name).Str("by", creatorID).Int("members", len(g.Members)).Msg("group created")
	return g, nil
}

// ListGroups returns the groups an admin created, or the groups anybody
// else is a member of.
func (s *Service) ListGroups(ctx context.Context, uid string) ([]store.Group, error) {
	sub, err := muser.LoadSubject(ctx, s.users, uid)
	if err != nil {
		return nil, err
	}

	var groups []store.Group
	switch authz.GroupListScope(sub) {
	case authz.ScopeCreated:
		groups, err = s.groups.ListGroupsByCreator(ctx, uid)
	default:
		groups, err = s.groups.ListGroupsByMember(ctx, uid)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list groups", err)
	}
	return groups, nil
}

func (s *Service) DeleteGroup(ctx context.Context, groupID, requesterID string) error {
	if err := s.requireAdmin(ctx, requesterID, authz.DeleteGroup, "only admins can delete groups"); err != nil {
		return err
	}

	if err := s.groups.DeleteGroup(ctx, groupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "group not found")
		}
		return apperr.Wrap(apperr.Internal, "delete group", err)
	}

	log.Info().Str("group", groupID).Str("by", requesterID).Msg("group deleted")
	return nil
}

// ListMembers returns the member users without credentials. Members whose
// user record is gone are skipped.
func (s *Service) ListMembers(ctx context.Context, groupID, requesterID string) ([]store.User, error) {
	g, err := s.groupFor(ctx, groupID, requesterID, authz.ListMembers)
	if err != nil {
		return nil, err
	}

	members := make([]store.User, 0, len(g.Members))
	for _, id := range g.Members {
		u, err := s.users.GetUser(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "get member", err)
		}
		members = append(members, u)
	}
	return utils.Map(members, store.User.Public), nil
}

func (s *Service) AddMember(ctx context.Context, groupID, requesterID, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperr.New(apperr.BadRequest, "userId is required")
	}
	if err := s.requireAdmin(ctx, requesterID, authz.AddMember, "only admins can add members"); err != nil {
		return err
	}

	g, err := s.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "user not found")
		}
		return apperr.Wrap(apperr.Internal, "get user", err)
	}
	if utils.Contains(g.Members, userID) {
		return apperr.New(apperr.Conflict, "user is already a member of this group")
	}

	return s.setMembers(ctx, g.ID, append(slices.Clone(g.Members), userID))
}

func (s *Service) RemoveMember(ctx context.Context, groupID, requesterID, userID string) error {
	if err := s.requireAdmin(ctx, requesterID, authz.RemoveMember, "only admins can remove members"); err != nil {
		return err
	}

	g, err := s.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if !utils.Contains(g.Members, userID) {
		return apperr.New(apperr.BadRequest, "user is not a member of this group")
	}

	return s.setMembers(ctx, g.ID, utils.Filter(g.Members, func(id string) bool { return id != userID }))
}

func (s *Service) setMembers(ctx context.Context, groupID string, members []string) error {
	if err := s.groups.SetGroupMembers(ctx, groupID, members, s.now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "group not found")
		}
		return apperr.Wrap(apperr.Internal, "update members", err)
	}
	return nil
}

func (s *Service) CreateGroupTask(ctx context.Context, groupID, requesterID string, req CreateGroupTaskRequest) (string, error) {
	title := strings.TrimSpace(req.Title)
	desc := strings.TrimSpace(req.Description)
	assignee := strings.TrimSpace(req.AssignedTo)
	if title == "" || desc == "" || strings.TrimSpace(req.DueDate) == "" || assignee == "" {
		return "", apperr.New(apperr.BadRequest, "title, description, dueDate and assignedTo are required")
	}
	due, ok := parseDueDate(req.DueDate)
	if !ok {
		return "", apperr.New(apperr.BadRequest, "dueDate must be a date or an RFC 3339 timestamp")
	}

	g, err := s.groupFor(ctx, groupID, requesterID, authz.CreateGroupTask)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	t := store.GroupTask{
		ID:          uuid.NewString(),
		GroupID:     g.ID,
		Title:       title,
		Description: desc,
		DueDate:     due,
		AssignedTo:  assignee,
		Status:      taskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.CreateGroupTask(ctx, t); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apperr.New(apperr.NotFound, "group not found")
		}
		return "", apperr.Wrap(apperr.Internal, "create group task", err)
	}

	log.Debug().Str("group", g.ID).Str("task", t.ID).Str("assignee", assignee).Msg("group task assigned")
	return t.ID, nil
}

func (s *Service) ListGroupTasks(ctx context.Context, groupID, requesterID string) ([]store.GroupTask, error) {
	if _, err := s.groupFor(ctx, groupID, requesterID, authz.ListGroupTasks); err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListGroupTasks(ctx, groupID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list group tasks", err)
	}
	return tasks, nil
}

func (s *Service) UpdateGroupTaskStatus(ctx context.Context, groupID, taskID, requesterID string, req UpdateStatusRequest) error {
	status := strings.TrimSpace(req.Status)
	updatedBy := strings.TrimSpace(req.UpdatedBy)
	if status == "" || updatedBy == "" {
		return apperr.New(apperr.BadRequest, "status and updatedBy are required")
	}

	if _, err := s.groupFor(ctx, groupID, requesterID, authz.UpdateGroupTask); err != nil {
		return err
	}

	err := s.tasks.UpdateGroupTaskStatus(ctx, groupID, taskID, status, updatedBy, s.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "task not found")
		}
		return apperr.Wrap(apperr.Internal, "update group task", err)
	}
	return nil
}

// DeleteGroupTask reports a missing group or task before checking rights.
func (s *Service) DeleteGroupTask(ctx context.Context, groupID, taskID, requesterID string) error {
	sub, err := muser.LoadSubject(ctx, s.users, requesterID)
	if err != nil {
		return err
	}
	g, err := s.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if _, err := s.tasks.GetGroupTask(ctx, groupID, taskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "task not found")
		}
		return apperr.Wrap(apperr.Internal, "get group task", err)
	}
	if !authz.Can(sub, authz.DeleteGroupTask, resourceOf(g)) {
		return apperr.New(apperr.Forbidden, "only admins or the group creator can delete tasks")
	}

	if err := s.tasks.DeleteGroupTask(ctx, groupID, taskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "task not found")
		}
		return apperr.Wrap(apperr.Internal, "delete group task", err)
	}

	log.Debug().Str("group", groupID).Str("task", taskID).Str("by", requesterID).Msg("group task deleted")
	return nil
}
