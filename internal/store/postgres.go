package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kyri56xcaesar/taskhub/internal/authz"
)

const pgUniqueViolation = "23505"

// DB is the part of pgx the Postgres backend needs; *pgxpool.Pool and
// pgx.Tx both satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Postgres struct {
	db   DB
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool to dsn and pings it.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not connect to the database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping the db: %w", err)
	}

	return &Postgres{db: pool, pool: pool}, nil
}

// NewPostgres wraps an existing connection.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Close(context.Context) error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func pgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrConflict
	}
	return err
}

func affected(ct pgconn.CommandTag, err error) error {
	if err != nil {
		return pgError(err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- users ---

const userColumns = `id, email, username, password_hash, role, last_login, created_at`

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role int
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &role, &u.LastLogin, &u.CreatedAt); err != nil {
		return User{}, pgError(err)
	}
	u.Role = authz.Role(role)
	return u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u User) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO users (id, email, username, password_hash, role, last_login, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Email, u.Username, u.PasswordHash, int(u.Role), u.LastLogin, u.CreatedAt)
	return pgError(err)
}

func (p *Postgres) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(p.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (p *Postgres) FindUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(p.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (p *Postgres) FindUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(p.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (p *Postgres) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := p.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateUser(ctx context.Context, id string, patch UserPatch) error {
	if patch.empty() {
		return nil
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	i := 1

	if patch.Username != nil {
		sets = append(sets, fmt.Sprintf("username = $%d", i))
		args = append(args, *patch.Username)
		i++
	}
	if patch.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", i))
		args = append(args, *patch.Email)
		i++
	}
	if patch.Role != nil {
		sets = append(sets, fmt.Sprintf("role = $%d", i))
		args = append(args, int(*patch.Role))
		i++
	}
	if patch.LastLogin != nil {
		sets = append(sets, fmt.Sprintf("last_login = $%d", i))
		args = append(args, *patch.LastLogin)
		i++
	}

	args = append(args, id)
	q := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), i)

	return affected(p.db.Exec(ctx, q, args...))
}

func (p *Postgres) DeleteUser(ctx context.Context, id string) error {
	return affected(p.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id))
}

// --- personal tasks ---

const taskColumns = `id, user_id, name, description, category, status, deadline, created_at, updated_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Description, &t.Category, &t.Status,
		&t.Deadline, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Task{}, pgError(err)
	}
	return t, nil
}

func (p *Postgres) CreateTask(ctx context.Context, t Task) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO tasks (id, user_id, name, description, category, status, deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.UserID, t.Name, t.Description, t.Category, t.Status, t.Deadline, t.CreatedAt, t.UpdatedAt)
	return pgError(err)
}

func (p *Postgres) GetTask(ctx context.Context, id string) (Task, error) {
	return scanTask(p.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

func (p *Postgres) ListTasksByOwner(ctx context.Context, userID string) ([]Task, error) {
	rows, err := p.db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateTask(ctx context.Context, id string, patch TaskPatch) error {
	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)
	i := 1

	if patch.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", i))
		args = append(args, *patch.Name)
		i++
	}
	if patch.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", i))
		args = append(args, *patch.Description)
		i++
	}
	if patch.Category != nil {
		sets = append(sets, fmt.Sprintf("category = $%d", i))
		args = append(args, *patch.Category)
		i++
	}
	if patch.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", i))
		args = append(args, *patch.Status)
		i++
	}
	if patch.Deadline != nil {
		sets = append(sets, fmt.Sprintf("deadline = $%d", i))
		args = append(args, *patch.Deadline)
		i++
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", i))
	args = append(args, patch.UpdatedAt)
	i++

	args = append(args, id)
	q := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d", strings.Join(sets, ", "), i)

	return affected(p.db.Exec(ctx, q, args...))
}

func (p *Postgres) DeleteTask(ctx context.Context, id string) error {
	return affected(p.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id))
}

// --- groups ---

const groupColumns = `id, name, created_by, members, tasks, status, created_at, updated_at`

func scanGroup(row pgx.Row) (Group, error) {
	var g Group
	if err := row.Scan(&g.ID, &g.Name, &g.CreatedBy, &g.Members, &g.Tasks, &g.Status,
		&g.CreatedAt, &g.UpdatedAt); err != nil {
		return Group{}, pgError(err)
	}
	if g.Members == nil {
		g.Members = []string{}
	}
	if g.Tasks == nil {
		g.Tasks = map[string]any{}
	}
	return g, nil
}

func (p *Postgres) queryGroups(ctx context.Context, where string, arg any) ([]Group, error) {
	rows, err := p.db.Query(ctx, `
		SELECT `+groupColumns+`
		FROM groups
		WHERE `+where+`
		ORDER BY created_at ASC, id ASC
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Group, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateGroup(ctx context.Context, g Group) error {
	if g.Members == nil {
		g.Members = []string{}
	}
	if g.Tasks == nil {
		g.Tasks = map[string]any{}
	}
	_, err := p.db.Exec(ctx, `
		INSERT INTO groups (id, name, created_by, members, tasks, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, g.ID, g.Name, g.CreatedBy, g.Members, g.Tasks, g.Status, g.CreatedAt, g.UpdatedAt)
	return pgError(err)
}

func (p *Postgres) GetGroup(ctx context.Context, id string) (Group, error) {
	return scanGroup(p.db.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id))
}

func (p *Postgres) FindGroupByName(ctx context.Context, name string) (Group, error) {
	return scanGroup(p.db.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE name = $1`, name))
}

func (p *Postgres) ListGroupsByCreator(ctx context.Context, userID string) ([]Group, error) {
	return p.queryGroups(ctx, "created_by = $1", userID)
}

func (p *Postgres) ListGroupsByMember(ctx context.Context, userID string) ([]Group, error) {
	return p.queryGroups(ctx, "$1 = ANY(members)", userID)
}

func (p *Postgres) SetGroupMembers(ctx context.Context, id string, members []string, updatedAt time.Time) error {
	if members == nil {
		members = []string{}
	}
	return affected(p.db.Exec(ctx, `
		UPDATE groups SET members = $1, updated_at = $2 WHERE id = $3
	`, members, updatedAt, id))
}

// DeleteGroup relies on ON DELETE CASCADE for group_tasks.
func (p *Postgres) DeleteGroup(ctx context.Context, id string) error {
	return affected(p.db.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id))
}

// --- group tasks ---

const groupTaskColumns = `id, group_id, title, description, due_date, assigned_to, status, updated_by, created_at, updated_at`

func scanGroupTask(row pgx.Row) (GroupTask, error) {
	var t GroupTask
	if err := row.Scan(&t.ID, &t.GroupID, &t.Title, &t.Description, &t.DueDate, &t.AssignedTo,
		&t.Status, &t.UpdatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return GroupTask{}, pgError(err)
	}
	return t, nil
}

func (p *Postgres) CreateGroupTask(ctx context.Context, t GroupTask) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO group_tasks (id, group_id, title, description, due_date, assigned_to, status, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID, t.GroupID, t.Title, t.Description, t.DueDate, t.AssignedTo, t.Status, t.UpdatedBy, t.CreatedAt, t.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		// foreign key: parent group is gone
		return ErrNotFound
	}
	return pgError(err)
}

func (p *Postgres) GetGroupTask(ctx context.Context, groupID, taskID string) (GroupTask, error) {
	return scanGroupTask(p.db.QueryRow(ctx, `
		SELECT `+groupTaskColumns+` FROM group_tasks WHERE group_id = $1 AND id = $2
	`, groupID, taskID))
}

func (p *Postgres) ListGroupTasks(ctx context.Context, groupID string) ([]GroupTask, error) {
	rows, err := p.db.Query(ctx, `
		SELECT `+groupTaskColumns+`
		FROM group_tasks
		WHERE group_id = $1
		ORDER BY created_at ASC, id ASC
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]GroupTask, 0)
	for rows.Next() {
		t, err := scanGroupTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateGroupTaskStatus(ctx context.Context, groupID, taskID, status, updatedBy string, updatedAt time.Time) error {
	return affected(p.db.Exec(ctx, `
		UPDATE group_tasks
		SET status = $1, updated_by = $2, updated_at = $3
		WHERE group_id = $4 AND id = $5
	`, status, updatedBy, updatedAt, groupID, taskID))
}

func (p *Postgres) DeleteGroupTask(ctx context.Context, groupID, taskID string) error {
	return affected(p.db.Exec(ctx, `DELETE FROM group_tasks WHERE group_id = $1 AND id = $2`, groupID, taskID))
}
