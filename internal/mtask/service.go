// Package mtask manages personal tasks. A task belongs to the user who
// created it and nobody else can see or change it.
package mtask

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"kyri56xcaesar/taskhub/internal/apperr"
	"kyri56xcaesar/taskhub/internal/authz"
	"kyri56xcaesar/taskhub/internal/muser"
	"kyri56xcaesar/taskhub/internal/store"
)

type Service struct {
	tasks store.TaskStore
	users store.UserStore
	now   func() time.Time
}

func NewService(tasks store.TaskStore, users store.UserStore) *Service {
	return &Service{tasks: tasks, users: users, now: time.Now}
}

// maxOffset bounds relative deadlines; larger offsets overflow time.Duration
// arithmetic or the database timestamp range.
const maxOffset = 100 * 365 * 24 * time.Hour

const day = 24 * time.Hour

// deadline applies a relative offset to now. Without both an amount and a
// unit the deadline is now.
func deadline(now time.Time, amount Offset, unit string) (time.Time, error) {
	if amount < 0 {
		return time.Time{}, apperr.New(apperr.BadRequest, "time must not be negative")
	}
	if amount == 0 || unit == "" {
		return now, nil
	}

	var step time.Duration
	switch strings.ToLower(unit) {
	case "minutes":
		step = time.Minute
	case "hours":
		step = time.Hour
	case "days":
		step = day
	case "weeks":
		step = 7 * day
	default:
		return time.Time{}, apperr.New(apperr.BadRequest, "invalid time unit, use minutes, hours, days or weeks")
	}

	n := int64(amount)
	if n > int64(maxOffset/step) {
		return time.Time{}, apperr.New(apperr.BadRequest, "time is too far in the future, at most 100 years")
	}
	if step >= day {
		// calendar days, so DST shifts keep the wall clock
		return now.AddDate(0, 0, int(n*int64(step/day))), nil
	}
	return now.Add(time.Duration(n) * step), nil
}

func (s *Service) CreateTask(ctx context.Context, ownerID string, req CreateTaskRequest) (string, error) {
	name := strings.TrimSpace(req.Name)
	status := strings.TrimSpace(req.Status)
	if name == "" || status == "" {
		return "", apperr.New(apperr.BadRequest, "name and status are required")
	}

	if _, err := muser.LoadSubject(ctx, s.users, ownerID); err != nil {
		return "", err
	}

	now := s.now().UTC()
	due, err := deadline(now, req.Time, strings.TrimSpace(req.TimeUnit))
	if err != nil {
		return "", err
	}

	t := store.Task{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		Name:        name,
		Description: req.Description,
		Category:    req.Category,
		Status:      status,
		Deadline:    due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.CreateTask(ctx, t); err != nil {
		return "", apperr.Wrap(apperr.Internal, "create task", err)
	}

	log.Debug().Str("task", t.ID).Str("owner", ownerID).Msg("task created")
	return t.ID, nil
}

func (s *Service) ListTasks(ctx context.Context, ownerID string) ([]store.Task, error) {
	if _, err := muser.LoadSubject(ctx, s.users, ownerID); err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListTasksByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list tasks", err)
	}
	return tasks, nil
}

// ownedTask loads taskID and checks that requesterID may perform action on it.
func (s *Service) ownedTask(ctx context.Context, taskID, requesterID string, action authz.Action) error {
	sub, err := muser.LoadSubject(ctx, s.users, requesterID)
	if err != nil {
		return err
	}

	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "task not found")
		}
		return apperr.Wrap(apperr.Internal, "get task", err)
	}

	if !authz.Can(sub, action, authz.Resource{OwnerID: t.UserID}) {
		return apperr.New(apperr.Forbidden, "not the owner of this task")
	}
	return nil
}

func (s *Service) UpdateTask(ctx context.Context, taskID, ownerID string, req UpdateTaskRequest) error {
	if err := s.ownedTask(ctx, taskID, ownerID, authz.UpdateTask); err != nil {
		return err
	}

	patch := store.TaskPatch{
		Name:        nonEmpty(req.Name),
		Description: nonEmpty(req.Description),
		Category:    nonEmpty(req.Category),
		Status:      nonEmpty(req.Status),
		UpdatedAt:   s.now().UTC(),
	}
	if d := nonEmpty(req.Deadline); d != nil {
		due, err := time.Parse(time.RFC3339, *d)
		if err != nil {
			return apperr.New(apperr.BadRequest, "deadline must be an RFC 3339 timestamp")
		}
		due = due.UTC()
		patch.Deadline = &due
	}

	if err := s.tasks.UpdateTask(ctx, taskID, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "task not found")
		}
		return apperr.Wrap(apperr.Internal, "update task", err)
	}
	return nil
}

func (s *Service) DeleteTask(ctx context.Context, taskID, ownerID string) error {
	if strings.TrimSpace(taskID) == "" {
		return apperr.New(apperr.BadRequest, "task id required")
	}
	if err := s.ownedTask(ctx, taskID, ownerID, authz.DeleteTask); err != nil {
		return err
	}

	if err := s.tasks.DeleteTask(ctx, taskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "task not found")
		}
		return apperr.Wrap(apperr.Internal, "delete task", err)
	}

	log.Debug().Str("task", taskID).Str("owner", ownerID).Msg("task deleted")
	return nil
}

func nonEmpty(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
