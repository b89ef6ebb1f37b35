package store

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"kyri56xcaesar/taskhub/internal/authz"
)

// fakeDB records the last statement and answers with canned results.
type fakeDB struct {
	sql   string
	args  []any
	calls int

	tag  pgconn.CommandTag
	err  error
	row  fakeRow
	rows *fakeRows
}

func (f *fakeDB) record(sql string, args []any) {
	f.calls++
	f.sql = strings.Join(strings.Fields(sql), " ")
	f.args = args
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.record(sql, args)
	return f.tag, f.err
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.record(sql, args)
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.record(sql, args)
	return f.row
}

// fakeRow assigns values to the scan targets in column order.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		if r.values[i] == nil {
			continue
		}
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

type fakeRows struct {
	rows   []fakeRow
	pos    int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return r.rows[r.pos-1].Scan(dest...)
}

func TestPostgresErrorMapping(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, ErrConflict},
		{"other constraint", &pgconn.PgError{Code: "23514"}, nil},
		{"driver failure", boom, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{err: tt.err}
			err := NewPostgres(db).CreateUser(ctx, User{ID: "u1", Email: "a@example.com", Username: "alice", Role: authz.RoleAdmin})
			if tt.want == nil {
				var pgErr *pgconn.PgError
				if !errors.As(err, &pgErr) {
					t.Fatalf("expected the pg error to pass through, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	db := &fakeDB{}
	_ = NewPostgres(db).CreateUser(ctx, User{ID: "u1", Role: authz.RoleMaster})
	if got := db.args[4]; got != int(authz.RoleMaster) {
		t.Fatalf("role should be written as an int, got %#v", got)
	}
}

func TestPostgresGetUser(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	if _, err := NewPostgres(db).GetUser(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("no rows: expected ErrNotFound, got %v", err)
	}

	db.row = fakeRow{values: []any{"u1", "a@example.com", "alice", "$2a$10$h", 1, now, now}}
	u, err := NewPostgres(db).FindUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if u.ID != "u1" || u.Role != authz.RoleAdmin || u.PasswordHash != "$2a$10$h" || !u.LastLogin.Equal(now) {
		t.Fatalf("unexpected user %+v", u)
	}
	if db.sql != "SELECT "+userColumns+" FROM users WHERE username = $1" || db.args[0] != "alice" {
		t.Fatalf("unexpected query %q %v", db.sql, db.args)
	}
}

func TestPostgresUpdateUserPlaceholders(t *testing.T) {
	ctx := context.Background()
	email := "new@example.com"
	role := authz.RoleNormal
	login := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 1")}
	p := NewPostgres(db)
	if err := p.UpdateUser(ctx, "u1", UserPatch{Email: &email, Role: &role, LastLogin: &login}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if want := "UPDATE users SET email = $1, role = $2, last_login = $3 WHERE id = $4"; db.sql != want {
		t.Fatalf("sql %q, want %q", db.sql, want)
	}
	if want := []any{email, int(role), login, "u1"}; !reflect.DeepEqual(db.args, want) {
		t.Fatalf("args %#v, want %#v", db.args, want)
	}

	db.tag = pgconn.NewCommandTag("UPDATE 0")
	if err := p.UpdateUser(ctx, "ghost", UserPatch{Email: &email}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("no rows affected: expected ErrNotFound, got %v", err)
	}

	db.err = &pgconn.PgError{Code: "23505"}
	if err := p.UpdateUser(ctx, "u1", UserPatch{Email: &email}); !errors.Is(err, ErrConflict) {
		t.Fatalf("taken email: expected ErrConflict, got %v", err)
	}

	calls := db.calls
	if err := p.UpdateUser(ctx, "u1", UserPatch{}); err != nil || db.calls != calls {
		t.Fatalf("empty patch should not reach the database (%v)", err)
	}
}

func TestPostgresUpdateTaskPlaceholders(t *testing.T) {
	ctx := context.Background()
	status := "done"
	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 1")}
	if err := NewPostgres(db).UpdateTask(ctx, "t1", TaskPatch{Status: &status, UpdatedAt: updated}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if want := "UPDATE tasks SET status = $1, updated_at = $2 WHERE id = $3"; db.sql != want {
		t.Fatalf("sql %q, want %q", db.sql, want)
	}
	if want := []any{status, updated, "t1"}; !reflect.DeepEqual(db.args, want) {
		t.Fatalf("args %#v, want %#v", db.args, want)
	}

	// updated_at alone is still a valid statement
	if err := NewPostgres(db).UpdateTask(ctx, "t1", TaskPatch{UpdatedAt: updated}); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if want := "UPDATE tasks SET updated_at = $1 WHERE id = $2"; db.sql != want {
		t.Fatalf("sql %q, want %q", db.sql, want)
	}
}

func TestPostgresGroups(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := &fakeRows{rows: []fakeRow{
		{values: []any{"g1", "ops", "admin", []string{"u1"}, map[string]any{}, "Active", now, now}},
		{values: []any{"g2", "dev", "admin", nil, nil, "Active", now, now}},
	}}
	db := &fakeDB{rows: rows}
	groups, err := NewPostgres(db).ListGroupsByMember(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(db.sql, "WHERE $1 = ANY(members)") || db.args[0] != "u1" {
		t.Fatalf("unexpected query %q %v", db.sql, db.args)
	}
	if len(groups) != 2 || groups[1].Members == nil || groups[1].Tasks == nil {
		t.Fatalf("null columns should come back empty, got %+v", groups)
	}
	if !rows.closed {
		t.Fatalf("rows left open")
	}

	db = &fakeDB{tag: pgconn.NewCommandTag("UPDATE 1")}
	if err := NewPostgres(db).SetGroupMembers(ctx, "g1", nil, now); err != nil {
		t.Fatalf("set members: %v", err)
	}
	if m, ok := db.args[0].([]string); !ok || m == nil {
		t.Fatalf("nil members must be stored as an empty array, got %#v", db.args[0])
	}

	db = &fakeDB{tag: pgconn.NewCommandTag("DELETE 0")}
	if err := NewPostgres(db).DeleteGroup(ctx, "g1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete missing group: expected ErrNotFound, got %v", err)
	}
}

func TestPostgresCreateGroupTask(t *testing.T) {
	ctx := context.Background()
	task := GroupTask{ID: "t1", GroupID: "g1", Title: "deploy", Status: "pending"}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"parent group gone", &pgconn.PgError{Code: "23503"}, ErrNotFound},
		{"duplicate id", &pgconn.PgError{Code: "23505"}, ErrConflict},
		{"ok", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{err: tt.err}
			err := NewPostgres(db).CreateGroupTask(ctx, task)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(db.args) != 10 || db.args[1] != "g1" {
				t.Fatalf("unexpected args %#v", db.args)
			}
		})
	}

	db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 0")}
	err := NewPostgres(db).UpdateGroupTaskStatus(ctx, "g1", "t9", "done", "u1", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("status of a missing task: expected ErrNotFound, got %v", err)
	}
	if want := []any{"g1", "t9"}; !reflect.DeepEqual(db.args[3:], want) {
		t.Fatalf("group and task ids in the wrong placeholders: %#v", db.args)
	}
}
