package mgroup

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"kyri56xcaesar/taskhub/internal/authmw"
	"kyri56xcaesar/taskhub/internal/authz"
)

type tokenIsUID struct{}

func (tokenIsUID) Authenticate(_ context.Context, token string) (authz.Claims, error) {
	return authz.Claims{UID: token}, nil
}

func do(r http.Handler, method, path, uid string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+uid)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGroupRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newTestService(t)
	r := gin.New()
	NewHandler(svc).Register(r.Group("/", authmw.RequireAuth(tokenIsUID{})))

	if w := do(r, http.MethodPost, "/groups", "mia", map[string]any{"name": "x"}); w.Code != http.StatusForbidden {
		t.Fatalf("normal user create: %d", w.Code)
	}
	w := do(r, http.MethodPost, "/groups", "admin", map[string]any{"name": "ops", "members": []string{"mia"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	if w := do(r, http.MethodPost, "/groups/"+created.ID+"/users", "admin", map[string]any{"userId": "mia"}); w.Code != http.StatusConflict {
		t.Fatalf("re-adding mia: %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/groups/"+created.ID+"/users", "admin", map[string]any{"userId": "max"}); w.Code != http.StatusOK {
		t.Fatalf("adding max: %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodPost, "/groups/"+created.ID+"/tasks", "admin", map[string]any{
		"title": "rotate keys", "description": "quarterly", "dueDate": "2024-07-01", "assignedTo": "max",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("assign: %d %s", w.Code, w.Body.String())
	}
	var assigned struct {
		TaskID string `json:"taskId"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &assigned)

	status := map[string]any{"status": "in progress", "updatedBy": "max"}
	if w := do(r, http.MethodPatch, "/groups/"+created.ID+"/tasks/"+assigned.TaskID, "max", status); w.Code != http.StatusOK {
		t.Fatalf("patch status: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPut, "/groups/"+created.ID+"/tasks/"+assigned.TaskID, "creator", status); w.Code != http.StatusForbidden {
		t.Fatalf("outsider put status: %d", w.Code)
	}

	w = do(r, http.MethodGet, "/groups/"+created.ID+"/users", "mia", nil)
	if w.Code != http.StatusOK || bytes.Contains(w.Body.Bytes(), []byte("$2a$")) {
		t.Fatalf("members listing: %d %s", w.Code, w.Body.String())
	}

	if w := do(r, http.MethodDelete, "/groups/"+created.ID+"/users/creator", "admin", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("removing non-member: %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/groups/"+created.ID+"/tasks/"+assigned.TaskID, "max", nil); w.Code != http.StatusForbidden {
		t.Fatalf("member deleting task: %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/groups/"+created.ID, "admin", nil); w.Code != http.StatusOK {
		t.Fatalf("delete group: %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/groups/"+created.ID+"/tasks", "admin", nil); w.Code != http.StatusNotFound {
		t.Fatalf("tasks of a deleted group: %d", w.Code)
	}
}
