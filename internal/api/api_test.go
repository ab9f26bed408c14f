package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/gudangmitra/gudang/internal/auth"
	"github.com/gudangmitra/gudang/internal/db"
	"github.com/gudangmitra/gudang/internal/export"
	"github.com/gudangmitra/gudang/internal/lifecycle"
	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
)

const (
	testJWTSecret     = "test-secret"
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "password1"
)

type testEnv struct {
	server  *httptest.Server
	handler http.Handler
	db      *sql.DB
	token   string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(Deps{
		DB:        database,
		JWTSecret: testJWTSecret,
		Requests:  lifecycle.New(database, store.TransitionOptions{}),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// Create admin user.
	ctx := context.Background()
	hash, _ := auth.HashPassword(testAdminPassword)
	if _, err := store.CreateUser(ctx, database, "Admin", testAdminEmail, hash, model.RoleAdmin); err != nil {
		t.Fatalf("creating admin: %v", err)
	}

	// Get token.
	var login loginResponse
	status := doJSON(t, "POST", server.URL+"/api/auth/login", "", map[string]string{
		"email": testAdminEmail, "password": testAdminPassword,
	}, &login)
	if status != http.StatusOK {
		t.Fatalf("login failed: %d", status)
	}
	if login.Token == "" {
		t.Fatal("empty token from login")
	}

	return &testEnv{server: server, handler: router, db: database, token: login.Token}
}

// userToken creates a user with the given role and returns its id and a token.
func (e *testEnv) userToken(t *testing.T, name, role string) (int64, string) {
	t.Helper()
	u, err := store.CreateUser(context.Background(), e.db, name, strings.ToLower(name)+"@example.com", "unused", role)
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	token, _, err := auth.GenerateToken(testJWTSecret, u)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	return u.ID, token
}

func (e *testEnv) url(path string) string {
	return e.server.URL + path
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// doJSON sends a request and decodes the response into out if non-nil.
func doJSON(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func (e *testEnv) createItem(t *testing.T, name string, quantity, minQuantity int) model.Item {
	t.Helper()
	var item model.Item
	status := doJSON(t, "POST", e.url("/api/items"), e.token, map[string]any{
		"name": name, "category": "tools", "quantity": quantity, "minQuantity": minQuantity, "price": "12500",
	}, &item)
	if status != http.StatusCreated {
		t.Fatalf("creating item: expected 201, got %d", status)
	}
	return item
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	// Test invalid credentials.
	status := doJSON(t, "POST", env.url("/api/auth/login"), "", map[string]string{
		"email": testAdminEmail, "password": "wrong-password",
	}, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", status)
	}

	// Test missing fields.
	status = doJSON(t, "POST", env.url("/api/auth/login"), "", map[string]string{"email": testAdminEmail}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for missing password, got %d", status)
	}

	// Emails are case-insensitive.
	var login loginResponse
	status = doJSON(t, "POST", env.url("/api/auth/login"), "", map[string]string{
		"email": "ADMIN@example.com", "password": testAdminPassword,
	}, &login)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if login.User == nil || login.User.Role != model.RoleAdmin {
		t.Errorf("expected admin user in login response, got %+v", login.User)
	}
}

func TestLoginUpgradesLegacyPassword(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	u, err := store.CreateUser(ctx, env.db, "Legacy", "legacy@example.com", "plain-secret", model.RoleUser)
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}

	status := doJSON(t, "POST", env.url("/api/auth/login"), "", map[string]string{
		"email": "legacy@example.com", "password": "plain-secret",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for legacy password, got %d", status)
	}

	stored, _ := store.GetUser(ctx, env.db, u.ID)
	if !strings.HasPrefix(stored.PasswordHash, "$2") {
		t.Errorf("expected password upgraded to bcrypt, got %q", stored.PasswordHash)
	}

	// Still works after the upgrade.
	status = doJSON(t, "POST", env.url("/api/auth/login"), "", map[string]string{
		"email": "legacy@example.com", "password": "plain-secret",
	}, nil)
	if status != http.StatusOK {
		t.Errorf("expected 200 after upgrade, got %d", status)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	if status := doJSON(t, "GET", env.url("/api/auth/me"), env.token, nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200 from me, got %d", status)
	}
	if status := doJSON(t, "POST", env.url("/api/auth/logout"), env.token, nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200 from logout, got %d", status)
	}
	if status := doJSON(t, "GET", env.url("/api/auth/me"), env.token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 with revoked token, got %d", status)
	}
}

func TestChangePassword(t *testing.T) {
	env := setupTestServer(t)

	status := doJSON(t, "PUT", env.url("/api/auth/password"), env.token, map[string]string{
		"current_password": testAdminPassword, "new_password": "short",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for short password, got %d", status)
	}

	status = doJSON(t, "PUT", env.url("/api/auth/password"), env.token, map[string]string{
		"current_password": "wrong-password", "new_password": "new-password-1",
	}, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong current password, got %d", status)
	}

	status = doJSON(t, "PUT", env.url("/api/auth/password"), env.token, map[string]string{
		"current_password": testAdminPassword, "new_password": "new-password-1",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	status = doJSON(t, "POST", env.url("/api/auth/login"), "", map[string]string{
		"email": testAdminEmail, "password": "new-password-1",
	}, nil)
	if status != http.StatusOK {
		t.Errorf("expected login with new password, got %d", status)
	}
}

func TestUsersAPIFlow(t *testing.T) {
	env := setupTestServer(t)

	var created model.User
	status := doJSON(t, "POST", env.url("/api/users"), env.token, map[string]string{
		"name": "Budi", "email": "budi@example.com", "password": "password1", "role": model.RoleUser,
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}

	// Duplicate email.
	status = doJSON(t, "POST", env.url("/api/users"), env.token, map[string]string{
		"name": "Budi 2", "email": "budi@example.com", "password": "password1", "role": model.RoleUser,
	}, nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", status)
	}

	// Invalid role.
	status = doJSON(t, "POST", env.url("/api/users"), env.token, map[string]string{
		"name": "X", "email": "x@example.com", "password": "password1", "role": "owner",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid role, got %d", status)
	}

	var updated model.User
	status = doJSON(t, "PUT", env.url(fmt.Sprintf("/api/users/%d", created.ID)), env.token,
		map[string]string{"role": model.RoleManager}, &updated)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if updated.Role != model.RoleManager || updated.Name != "Budi" {
		t.Errorf("unexpected user after update: %+v", updated)
	}

	if status := doJSON(t, "DELETE", env.url(fmt.Sprintf("/api/users/%d", created.ID)), env.token, nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200 from delete, got %d", status)
	}
	if status := doJSON(t, "GET", env.url(fmt.Sprintf("/api/users/%d", created.ID)), env.token, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for deleted user, got %d", status)
	}
}

func TestItemsAPIFlow(t *testing.T) {
	env := setupTestServer(t)

	item := env.createItem(t, "Laptop", 10, 2)
	if item.Status != model.StockIn || !item.IsActive {
		t.Errorf("unexpected new item: %+v", item)
	}

	// Update quantity; status follows.
	var updated model.Item
	status := doJSON(t, "PUT", env.url(fmt.Sprintf("/api/items/%d", item.ID)), env.token,
		map[string]any{"quantity": 1}, &updated)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if updated.Status != model.StockLow || updated.Name != "Laptop" {
		t.Errorf("unexpected updated item: %+v", updated)
	}

	// Status filter.
	var items []model.Item
	doJSON(t, "GET", env.url("/api/items?status=low-stock"), env.token, nil, &items)
	if len(items) != 1 {
		t.Errorf("expected 1 low-stock item, got %d", len(items))
	}
	if status := doJSON(t, "GET", env.url("/api/items?status=broken"), env.token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status filter, got %d", status)
	}

	// Negative quantity.
	status = doJSON(t, "POST", env.url("/api/items"), env.token, map[string]any{"name": "Bad", "quantity": -1}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for negative quantity, got %d", status)
	}

	// Unreferenced items are deleted outright.
	var del map[string]any
	status = doJSON(t, "DELETE", env.url(fmt.Sprintf("/api/items/%d", item.ID)), env.token, nil, &del)
	if status != http.StatusOK || del["soft"] != false {
		t.Errorf("expected hard delete, got %d %v", status, del)
	}
	if status := doJSON(t, "GET", env.url(fmt.Sprintf("/api/items/%d", item.ID)), env.token, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", status)
	}
}

func TestCategoriesAPIFlow(t *testing.T) {
	env := setupTestServer(t)

	var c model.Category
	status := doJSON(t, "POST", env.url("/api/categories"), env.token, map[string]string{"name": "tools"}, &c)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	status = doJSON(t, "POST", env.url("/api/categories"), env.token, map[string]string{"name": "tools"}, nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate name, got %d", status)
	}

	env.createItem(t, "Hammer", 5, 1)
	var got model.Category
	doJSON(t, "GET", env.url("/api/categories/"+c.ID), env.token, nil, &got)
	if got.ItemCount != 1 {
		t.Errorf("expected item count 1, got %d", got.ItemCount)
	}

	if status := doJSON(t, "DELETE", env.url("/api/categories/"+c.ID), env.token, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 from delete, got %d", status)
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	env := setupTestServer(t)

	body := fmt.Sprintf(`{"name": "bulk", "description": %q}`, strings.Repeat("x", maxBodyBytes))
	req := httptest.NewRequest("POST", "/api/categories", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	list, err := store.ListCategories(context.Background(), env.db)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected no categories, got %d", len(list))
	}
}

type statusChangeBody struct {
	Request     model.Request           `json:"request"`
	From        string                  `json:"from"`
	To          string                  `json:"to"`
	Adjustments []model.StockAdjustment `json:"adjustments"`
	Warnings    []string                `json:"warnings"`
}

func TestRequestLifecycleFlow(t *testing.T) {
	env := setupTestServer(t)
	userID, userToken := env.userToken(t, "Sari", model.RoleUser)
	item := env.createItem(t, "Hammer", 10, 2)

	// Submit as a regular user, with a duplicate line and a string item id.
	var req model.Request
	status := doJSON(t, "POST", env.url("/api/requests"), userToken, map[string]any{
		"project_name": "Site A",
		"priority":     "high",
		"due_date":     "2030-01-31",
		"items": []map[string]any{
			{"item_id": item.ID, "quantity": 2},
			{"item_id": fmt.Sprint(item.ID), "quantity": 1},
		},
	}, &req)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if req.Status != model.RequestPending || req.RequesterID != userID {
		t.Errorf("unexpected request: %+v", req)
	}
	if len(req.Items) != 1 || req.Items[0].Quantity != 3 {
		t.Fatalf("expected one merged line of 3, got %+v", req.Items)
	}

	// Reviewers were notified.
	var adminNotes []model.Notification
	doJSON(t, "GET", env.url("/api/notifications"), env.token, nil, &adminNotes)
	if len(adminNotes) != 1 || adminNotes[0].Type != model.NotifyRequestSubmitted {
		t.Errorf("expected one submission notification for admin, got %+v", adminNotes)
	}

	// Regular users cannot review.
	path := "/api/requests/" + req.ID + "/status"
	if status := doJSON(t, "PUT", env.url(path), userToken, map[string]string{"status": "approved"}, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for user approving, got %d", status)
	}

	// Approve: stock is decremented.
	var change statusChangeBody
	status = doJSON(t, "PUT", env.url(path), env.token, map[string]string{"status": "approved"}, &change)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if change.From != model.RequestPending || change.To != model.RequestApproved {
		t.Errorf("unexpected change: %s -> %s", change.From, change.To)
	}
	if len(change.Adjustments) != 1 || change.Adjustments[0].After != 7 {
		t.Errorf("unexpected adjustments: %+v", change.Adjustments)
	}
	var after model.Item
	doJSON(t, "GET", env.url(fmt.Sprintf("/api/items/%d", item.ID)), env.token, nil, &after)
	if after.Quantity != 7 {
		t.Errorf("expected quantity 7, got %d", after.Quantity)
	}

	// Approving again is a conflict and leaves stock alone.
	if status := doJSON(t, "PUT", env.url(path), env.token, map[string]string{"status": "approved"}, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for re-approval, got %d", status)
	}
	if status := doJSON(t, "PUT", env.url(path), env.token, map[string]string{"status": "shipped"}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", status)
	}

	// Handing over approved goods, sent as PATCH.
	status = doJSON(t, "PATCH", env.url(path), env.token, map[string]string{"status": "fulfilled"}, &change)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from PATCH, got %d", status)
	}
	if change.From != model.RequestApproved || change.To != model.RequestFulfilled {
		t.Errorf("unexpected change: %s -> %s", change.From, change.To)
	}

	// Requester was notified.
	var count map[string]int
	doJSON(t, "GET", env.url("/api/notifications/unread-count"), userToken, nil, &count)
	if count["count"] != 3 {
		t.Errorf("expected 3 unread notifications for requester, got %d", count["count"])
	}

	// Referenced items are only deactivated.
	var del map[string]any
	doJSON(t, "DELETE", env.url(fmt.Sprintf("/api/items/%d", item.ID)), env.token, nil, &del)
	if del["soft"] != true {
		t.Errorf("expected soft delete for referenced item, got %v", del)
	}

	// Admin deletes the request.
	if status := doJSON(t, "DELETE", env.url("/api/requests/"+req.ID), userToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for user deleting request, got %d", status)
	}
	if status := doJSON(t, "DELETE", env.url("/api/requests/"+req.ID), env.token, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 from delete, got %d", status)
	}
	if status := doJSON(t, "GET", env.url("/api/requests/"+req.ID), env.token, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", status)
	}
}

func TestApprovalShortfallWarning(t *testing.T) {
	env := setupTestServer(t)
	item := env.createItem(t, "Cable", 2, 0)

	var req model.Request
	doJSON(t, "POST", env.url("/api/requests"), env.token, map[string]any{
		"project_name": "Site B",
		"items":        []map[string]any{{"item_id": item.ID, "quantity": 5}},
	}, &req)

	var change statusChangeBody
	status := doJSON(t, "PUT", env.url("/api/requests/"+req.ID+"/status"), env.token, map[string]string{"status": "approved"}, &change)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(change.Warnings) != 1 {
		t.Errorf("expected one shortfall warning, got %v", change.Warnings)
	}
	if change.Adjustments[0].After != 0 || change.Adjustments[0].Status != model.StockOut {
		t.Errorf("expected clamped out-of-stock item, got %+v", change.Adjustments[0])
	}
}

func TestCreateRequestValidation(t *testing.T) {
	env := setupTestServer(t)
	otherID, userToken := env.userToken(t, "Tono", model.RoleUser)
	item := env.createItem(t, "Drill", 3, 1)

	cases := []struct {
		name   string
		token  string
		body   map[string]any
		status int
	}{
		{"missing project", env.token, map[string]any{"items": []map[string]any{{"item_id": item.ID, "quantity": 1}}}, http.StatusBadRequest},
		{"no items", env.token, map[string]any{"project_name": "P"}, http.StatusBadRequest},
		{"unknown item", env.token, map[string]any{"project_name": "P", "items": []map[string]any{{"item_id": 999, "quantity": 1}}}, http.StatusBadRequest},
		{"zero quantity", env.token, map[string]any{"project_name": "P", "items": []map[string]any{{"item_id": item.ID, "quantity": 0}}}, http.StatusBadRequest},
		{"bad priority", env.token, map[string]any{"project_name": "P", "priority": "urgent", "items": []map[string]any{{"item_id": item.ID, "quantity": 1}}}, http.StatusBadRequest},
		{"bad due date", env.token, map[string]any{"project_name": "P", "due_date": "tomorrow", "items": []map[string]any{{"item_id": item.ID, "quantity": 1}}}, http.StatusBadRequest},
		{"user on behalf of admin", userToken, map[string]any{"project_name": "P", "requester_id": 1, "items": []map[string]any{{"item_id": item.ID, "quantity": 1}}}, http.StatusForbidden},
		{"admin on behalf of unknown", env.token, map[string]any{"project_name": "P", "requester_id": 999, "items": []map[string]any{{"item_id": item.ID, "quantity": 1}}}, http.StatusBadRequest},
		{"admin on behalf of user", env.token, map[string]any{"project_name": "P", "requester_id": otherID, "items": []map[string]any{{"item_id": item.ID, "quantity": 1}}}, http.StatusCreated},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if status := doJSON(t, "POST", env.url("/api/requests"), tc.token, tc.body, nil); status != tc.status {
				t.Errorf("expected %d, got %d", tc.status, status)
			}
		})
	}
}

func TestRequestVisibility(t *testing.T) {
	env := setupTestServer(t)
	aliceID, aliceToken := env.userToken(t, "Alice", model.RoleUser)
	_, bobToken := env.userToken(t, "Bob", model.RoleUser)
	item := env.createItem(t, "Saw", 5, 1)

	var req model.Request
	doJSON(t, "POST", env.url("/api/requests"), aliceToken, map[string]any{
		"project_name": "Fence",
		"items":        []map[string]any{{"item_id": item.ID, "quantity": 1}},
	}, &req)

	if status := doJSON(t, "GET", env.url("/api/requests/"+req.ID), bobToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for another user's request, got %d", status)
	}
	if status := doJSON(t, "GET", env.url(fmt.Sprintf("/api/requests/user/%d", aliceID)), bobToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 listing another user's requests, got %d", status)
	}

	var list []model.Request
	doJSON(t, "GET", env.url("/api/requests"), bobToken, nil, &list)
	if len(list) != 0 {
		t.Errorf("expected bob to see no requests, got %d", len(list))
	}
	doJSON(t, "GET", env.url("/api/requests"), env.token, nil, &list)
	if len(list) != 1 {
		t.Errorf("expected admin to see 1 request, got %d", len(list))
	}
	doJSON(t, "GET", env.url(fmt.Sprintf("/api/requests/user/%d", aliceID)), aliceToken, nil, &list)
	if len(list) != 1 {
		t.Errorf("expected alice to see her request, got %d", len(list))
	}
}

func TestNotificationsAPI(t *testing.T) {
	env := setupTestServer(t)
	userID, userToken := env.userToken(t, "Rina", model.RoleUser)

	var n model.Notification
	status := doJSON(t, "POST", env.url("/api/notifications"), env.token, map[string]any{
		"user_id": userID, "message": "Stock take on Friday",
	}, &n)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if n.Type != model.NotifySystem {
		t.Errorf("expected default type system, got %s", n.Type)
	}

	if status := doJSON(t, "POST", env.url("/api/notifications"), userToken, map[string]any{
		"user_id": userID, "message": "hi",
	}, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for user creating notification, got %d", status)
	}

	// Other users cannot touch it.
	if status := doJSON(t, "PUT", env.url("/api/notifications/"+n.ID+"/read"), env.token, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 marking another user's notification, got %d", status)
	}

	if status := doJSON(t, "PUT", env.url("/api/notifications/"+n.ID+"/read"), userToken, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 marking read, got %d", status)
	}
	var count map[string]int
	doJSON(t, "GET", env.url("/api/notifications/unread-count"), userToken, nil, &count)
	if count["count"] != 0 {
		t.Errorf("expected 0 unread, got %d", count["count"])
	}

	if status := doJSON(t, "DELETE", env.url("/api/notifications/"+n.ID), userToken, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 from delete, got %d", status)
	}
}

func TestSpreadsheetEndpoints(t *testing.T) {
	env := setupTestServer(t)
	item := env.createItem(t, "Ladder", 4, 1)
	doJSON(t, "POST", env.url("/api/requests"), env.token, map[string]any{
		"project_name": "Roof",
		"items":        []map[string]any{{"item_id": item.ID, "quantity": 1}},
	}, nil)

	for path, sheet := range map[string]string{
		"/api/requests/export": export.RequestsSheet,
		"/api/items/template":  export.TemplateSheet,
	} {
		req, _ := authRequest("GET", env.url(path), env.token, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != export.ContentType {
			t.Fatalf("GET %s: status %d, type %s", path, resp.StatusCode, resp.Header.Get("Content-Type"))
		}
		f, err := excelize.OpenReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("opening %s workbook: %v", path, err)
		}
		rows, err := f.GetRows(sheet)
		f.Close()
		if err != nil || len(rows) != 2 {
			t.Errorf("%s: expected header and one row, got %d (%v)", path, len(rows), err)
		}
	}
}

func TestChatNotConfigured(t *testing.T) {
	env := setupTestServer(t)
	status := doJSON(t, "POST", env.url("/api/chat"), env.token, map[string]string{"message": "ada palu?"}, nil)
	if status != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without API key, got %d", status)
	}

	var ctx map[string][]map[string]any
	env.createItem(t, "Palu", 3, 1)
	doJSON(t, "GET", env.url("/api/chat/items-context"), env.token, nil, &ctx)
	if len(ctx["items"]) != 1 {
		t.Errorf("expected 1 item in context, got %d", len(ctx["items"]))
	}

	var sess struct {
		ID       string           `json:"id"`
		Messages []map[string]any `json:"messages"`
	}
	if status := doJSON(t, "POST", env.url("/api/chat/sessions"), env.token, nil, &sess); status != http.StatusCreated {
		t.Fatalf("expected 201 creating session, got %d", status)
	}
	if !strings.HasPrefix(sess.ID, "session_") || sess.Messages == nil || len(sess.Messages) != 0 {
		t.Errorf("unexpected session %+v", sess)
	}
	if status := doJSON(t, "GET", env.url("/api/chat/sessions/"+sess.ID), env.token, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 reading new session, got %d", status)
	}
}

func TestHealthAndCORS(t *testing.T) {
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(Deps{DB: database, JWTSecret: testJWTSecret, CORSOrigin: "http://localhost:5173"}))
	t.Cleanup(server.Close)

	var health map[string]any
	if status := doJSON(t, "GET", server.URL+"/api/health", "", nil, &health); status != http.StatusOK {
		t.Fatalf("expected 200 from health, got %d", status)
	}
	if health["database"] != "connected" {
		t.Errorf("unexpected health body: %v", health)
	}

	req, _ := http.NewRequest("OPTIONS", server.URL+"/api/items", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("unexpected allow origin %q", got)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(Deps{DB: database, JWTSecret: testJWTSecret}))
	t.Cleanup(server.Close)

	resp, _ := http.Get(server.URL + "/api/items")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t)
	_, userToken := env.userToken(t, "User1", model.RoleUser)

	// Regular user should not be able to create items (manager+ required).
	if status := doJSON(t, "POST", env.url("/api/items"), userToken, map[string]string{"name": "Test"}, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for user creating item, got %d", status)
	}

	// Regular user should not access /api/users.
	if status := doJSON(t, "GET", env.url("/api/users"), userToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for user accessing users, got %d", status)
	}

	// Nor export requests.
	if status := doJSON(t, "GET", env.url("/api/requests/export"), userToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for user exporting requests, got %d", status)
	}
}

func TestLoginRateLimit(t *testing.T) {
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(Deps{DB: database, JWTSecret: testJWTSecret, LoginPerMinute: 2}))
	t.Cleanup(server.Close)

	body := map[string]string{"email": "nobody@example.com", "password": "whatever1"}
	for i := 0; i < 2; i++ {
		if status := doJSON(t, "POST", server.URL+"/api/auth/login", "", body, nil); status != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, status)
		}
	}
	if status := doJSON(t, "POST", server.URL+"/api/auth/login", "", body, nil); status != http.StatusTooManyRequests {
		t.Errorf("expected 429 after limit, got %d", status)
	}
}
