package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"kyri56xcaesar/taskhub/internal/authmw"
	"kyri56xcaesar/taskhub/internal/authz"
	"kyri56xcaesar/taskhub/internal/config"
	"kyri56xcaesar/taskhub/internal/store"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signer, err := authmw.NewSigner("k1", map[string][]byte{"k1": []byte("e2e-secret")}, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{
		BcryptCost:     bcrypt.DefaultCost,
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}
	return NewRouter(cfg, Deps{
		Store:  store.NewMemory(),
		IdP:    authmw.LocalProvider{},
		Signer: signer,
		Roles:  authz.RoleMap{Admins: []string{"admin@example.com"}},
	})
}

func call(t *testing.T, r http.Handler, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func login(t *testing.T, r http.Handler, email, username string) string {
	t.Helper()
	if code, body := call(t, r, http.MethodPost, "/register", "", map[string]string{
		"email": email, "username": username, "password": "pw-" + username,
	}); code != http.StatusCreated {
		t.Fatalf("register %s: %d %v", username, code, body)
	}
	code, body := call(t, r, http.MethodPost, "/login", "", map[string]string{
		"username": username, "password": "pw-" + username,
	})
	if code != http.StatusOK {
		t.Fatalf("login %s: %d %v", username, code, body)
	}
	token, _ := body["token"].(string)
	return token
}

func TestHealthz(t *testing.T) {
	r := newTestEngine(t)
	code, body := call(t, r, http.MethodGet, "/healthz", "", nil)
	if code != http.StatusOK || body["status"] != "alive" {
		t.Fatalf("healthz: %d %v", code, body)
	}
}

func TestEndToEnd(t *testing.T) {
	r := newTestEngine(t)
	admin := login(t, r, "admin@example.com", "root")
	bob := login(t, r, "bob@example.com", "bob")

	if code, _ := call(t, r, http.MethodGet, "/tasks", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("tasks without token: %d", code)
	}
	if code, _ := call(t, r, http.MethodGet, "/tasks", "not-a-jwt", nil); code != http.StatusForbidden {
		t.Fatalf("tasks with a bad token: %d", code)
	}

	code, body := call(t, r, http.MethodPost, "/tasks", bob, map[string]any{
		"name": "write report", "description": "q3", "category": "work", "status": "todo",
		"time": "2", "timeUnit": "days",
	})
	if code != http.StatusCreated {
		t.Fatalf("create task: %d %v", code, body)
	}
	taskID, _ := body["taskId"].(string)
	if code, _ := call(t, r, http.MethodDelete, "/tasks/"+taskID, admin, nil); code != http.StatusForbidden {
		t.Fatalf("admin deleting bob's task: %d", code)
	}

	if code, _ := call(t, r, http.MethodPost, "/groups", bob, map[string]any{"name": "ops"}); code != http.StatusForbidden {
		t.Fatalf("normal user creating group: %d", code)
	}

	code, body = call(t, r, http.MethodPost, "/groups", admin, map[string]any{"name": "ops"})
	if code != http.StatusCreated || body["status"] != "Active" {
		t.Fatalf("create group: %d %v", code, body)
	}
	groupID, _ := body["id"].(string)

	code, users := call(t, r, http.MethodGet, "/users", admin, nil)
	if code != http.StatusOK {
		t.Fatalf("list users: %d %v", code, users)
	}
	if code, _ := call(t, r, http.MethodGet, "/users", bob, nil); code != http.StatusForbidden {
		t.Fatalf("normal user listing users: %d", code)
	}

	// bob's uid comes from the login response of a fresh login
	_, res := call(t, r, http.MethodPost, "/login", "", map[string]string{"username": "bob", "password": "pw-bob"})
	bobID, _ := res["userId"].(string)
	if code, body := call(t, r, http.MethodPost, "/groups/"+groupID+"/users", admin, map[string]string{"userId": bobID}); code != http.StatusOK {
		t.Fatalf("add bob: %d %v", code, body)
	}

	code, body = call(t, r, http.MethodPost, "/groups/"+groupID+"/tasks", admin, map[string]string{
		"title": "on-call", "description": "week 12", "dueDate": "2024-03-25", "assignedTo": bobID,
	})
	if code != http.StatusCreated {
		t.Fatalf("assign group task: %d %v", code, body)
	}
	gtID, _ := body["taskId"].(string)

	if code, body := call(t, r, http.MethodPatch, "/groups/"+groupID+"/tasks/"+gtID, bob, map[string]string{
		"status": "done", "updatedBy": bobID,
	}); code != http.StatusOK {
		t.Fatalf("bob closing his group task: %d %v", code, body)
	}

	// a role change applies to the next request without a new token
	if code, _ := call(t, r, http.MethodPut, "/users/"+bobID, admin, map[string]int{"role": int(authz.RoleAdmin)}); code != http.StatusOK {
		t.Fatalf("promote bob: %d", code)
	}
	if code, _ := call(t, r, http.MethodGet, "/users", bob, nil); code != http.StatusOK {
		t.Fatalf("promoted bob listing users: %d", code)
	}
}

func TestCorsPreflight(t *testing.T) {
	r := newTestEngine(t)
	req := httptest.NewRequest(http.MethodOptions, "/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin %q", got)
	}
	if w.Code >= 300 {
		t.Fatalf("preflight status %d", w.Code)
	}
}

func TestOpenStore(t *testing.T) {
	st, err := openStore(context.Background(), config.Config{StoreBackend: config.BackendMemory})
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if _, ok := st.(*store.Memory); !ok {
		t.Fatalf("expected the memory store, got %T", st)
	}
	if _, err := openStore(context.Background(), config.Config{StoreBackend: "sqlite"}); err == nil {
		t.Fatalf("unknown backend accepted")
	}
}

func TestIdentityWithoutKeycloak(t *testing.T) {
	idp, fed, err := identity(context.Background(), config.Config{})
	if err != nil || fed != nil {
		t.Fatalf("local identity: %v %v", fed, err)
	}
	if _, ok := idp.(authmw.LocalProvider); !ok {
		t.Fatalf("expected the local provider, got %T", idp)
	}
}
