package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/duynhne/learning-platform/internal/core/domain"
	"github.com/duynhne/learning-platform/internal/core/repository/memory"
	"github.com/duynhne/learning-platform/internal/core/seed"
	"github.com/duynhne/learning-platform/internal/lesson"
	"github.com/duynhne/learning-platform/middleware"
)

const testAdminKey = "s3cret"

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.RegisterValidators(); err != nil {
		panic(err)
	}
}

// newTestStore holds category 1 (sub 1-2) and category 2 (sub 3-4).
func newTestStore() *memory.Store {
	return memory.New([]seed.CategorySeed{
		{Name: "Science", SubCategories: []string{"Space", "Biology"}},
		{Name: "Tech", SubCategories: []string{"AI", "Web Dev"}},
	})
}

func newTestRouter(store domain.Store, mutate ...func(*RouterOptions)) *gin.Engine {
	opts := RouterOptions{
		ServiceName: "learning-platform-test",
		AdminKey:    testAdminKey,
		Store:       store,
		Generator:   lesson.NewMockGenerator(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewRouter(opts)
}

func do(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func problemOf(t *testing.T, w *httptest.ResponseRecorder, status int, code string) (middleware.Problem, map[string]any) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d; body %s", w.Code, status, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != middleware.ProblemContentType {
		t.Fatalf("Content-Type = %q", ct)
	}
	var p middleware.Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if p.Code != code {
		t.Fatalf("code = %s, want %s (detail %q)", p.Code, code, p.Detail)
	}
	if p.Status != status || p.TraceID == "" || p.Instance == "" {
		t.Fatalf("incomplete envelope: %+v", p)
	}
	var details map[string]any
	if len(p.Details) > 0 {
		_ = json.Unmarshal(p.Details, &details)
	}
	return p, details
}

func register(t *testing.T, r http.Handler, name, phone string) domain.User {
	t.Helper()
	w := do(r, http.MethodPost, "/api/users/register", `{"name":"`+name+`","phone":"`+phone+`"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d; body %s", w.Code, w.Body.String())
	}
	var u domain.User
	if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	return u
}

func TestRegister_CreatedThenDuplicatePhone(t *testing.T) {
	r := newTestRouter(newTestStore())

	u := register(t, r, "Dana", "0501234567")
	if u.ID == 0 || u.Phone != "0501234567" {
		t.Fatalf("user = %+v", u)
	}

	w := do(r, http.MethodPost, "/api/users/register", `{"name":"Dana","phone":"0501234567"}`, nil)
	p, details := problemOf(t, w, http.StatusConflict, domain.CodePhoneAlreadyExists)
	if p.Title != "Conflict" || details["phone"] != "0501234567" {
		t.Fatalf("problem = %+v details = %v", p, details)
	}
}

func TestRegister_LocationHeader(t *testing.T) {
	r := newTestRouter(newTestStore())
	w := do(r, http.MethodPost, "/api/users/register", `{"name":"Dana","phone":"0501234567"}`, nil)
	if got := w.Header().Get("Location"); got != "/api/users/1" {
		t.Fatalf("Location = %q", got)
	}
}

func TestRegister_ValidationShape(t *testing.T) {
	r := newTestRouter(newTestStore())

	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"short name and bad phone", `{"name":"A","phone":"abc"}`, []string{"name", "phone"}},
		{"missing fields", `{}`, []string{"name", "phone"}},
		{"wrong type", `{"name":7,"phone":"0501234567"}`, []string{"name"}},
		{"malformed json", `{"name":`, []string{"body"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/users/register", tt.body, nil)
			p, details := problemOf(t, w, http.StatusBadRequest, domain.CodeValidation)
			if p.Detail != "Validation failed" {
				t.Fatalf("detail = %q", p.Detail)
			}
			for _, f := range tt.fields {
				msgs, ok := details[f].([]any)
				if !ok || len(msgs) == 0 {
					t.Fatalf("details[%s] = %v (all: %v)", f, details[f], details)
				}
			}
		})
	}
}

// racingStore reports every phone as free so CreateUser hits the unique constraint.
type racingStore struct {
	*memory.Store
}

func (racingStore) PhoneExists(context.Context, string) (bool, error) { return false, nil }

func TestRegister_ConstraintRaceIsDBConflict(t *testing.T) {
	store := racingStore{newTestStore()}
	r := newTestRouter(store)

	register(t, r, "Dana", "0501234567")
	w := do(r, http.MethodPost, "/api/users/register", `{"name":"Dana","phone":"0501234567"}`, nil)
	p, _ := problemOf(t, w, http.StatusConflict, domain.CodeDBConflict)
	if p.Detail != "Database constraint violation." {
		t.Fatalf("detail = %q", p.Detail)
	}
	if strings.Contains(w.Body.String(), "users_phone_key") {
		t.Fatalf("constraint name leaked: %s", w.Body.String())
	}
}

func TestLogin(t *testing.T) {
	r := newTestRouter(newTestStore())
	u := register(t, r, "Dana", "0501234567")

	w := do(r, http.MethodPost, "/api/users/login", `{"phone":"0501234567"}`, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"id":`) {
		t.Fatalf("login = %d %s (want user %d)", w.Code, w.Body.String(), u.ID)
	}

	w = do(r, http.MethodPost, "/api/users/login", `{"phone":"0509999999"}`, nil)
	p, details := problemOf(t, w, http.StatusNotFound, domain.CodeUserNotFound)
	if p.Detail != "User does not exist. Please sign up first." || details["phone"] != "0509999999" {
		t.Fatalf("problem = %+v details = %v", p, details)
	}
}

func TestGetUser(t *testing.T) {
	r := newTestRouter(newTestStore())
	u := register(t, r, "Dana", "0501234567")

	w := do(r, http.MethodGet, "/api/users/1", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), u.Name) {
		t.Fatalf("get = %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/users/9999", "", nil)
	p, details := problemOf(t, w, http.StatusNotFound, domain.CodeUserNotFound)
	if p.Detail != "UserId 9999 not found" || details["userId"] != float64(9999) {
		t.Fatalf("problem = %+v details = %v", p, details)
	}

	w = do(r, http.MethodGet, "/api/users/abc", "", nil)
	p, _ = problemOf(t, w, http.StatusBadRequest, domain.CodeArgument)
	if string(p.Details) != "null" {
		t.Fatalf("details = %s, want null", p.Details)
	}
}

func TestCategories(t *testing.T) {
	r := newTestRouter(newTestStore())

	w := do(r, http.MethodGet, "/api/categories", "", nil)
	var cats []domain.Category
	if err := json.Unmarshal(w.Body.Bytes(), &cats); err != nil || len(cats) != 2 || len(cats[1].SubCategories) != 2 {
		t.Fatalf("categories = %s (%v)", w.Body.String(), err)
	}

	w = do(r, http.MethodGet, "/api/categories/by-name/Tech", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Web Dev") {
		t.Fatalf("by-name = %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/categories/by-name/Art", "", nil)
	_, details := problemOf(t, w, http.StatusNotFound, domain.CodeCategoryNotFound)
	if details["name"] != "Art" {
		t.Fatalf("details = %v", details)
	}
}

func TestCreatePrompt_Failures(t *testing.T) {
	r := newTestRouter(newTestStore())
	register(t, r, "Dana", "0501234567")

	tests := []struct {
		name    string
		body    string
		status  int
		code    string
		details map[string]any
	}{
		{
			name:    "unknown user",
			body:    `{"userId":9999,"categoryId":1,"subCategoryId":1,"prompt":"Explain orbits"}`,
			status:  http.StatusNotFound,
			code:    domain.CodeUserNotFound,
			details: map[string]any{"userId": float64(9999)},
		},
		{
			name:    "unknown category",
			body:    `{"userId":1,"categoryId":42,"subCategoryId":1,"prompt":"Explain orbits"}`,
			status:  http.StatusNotFound,
			code:    domain.CodeCategoryNotFound,
			details: map[string]any{"categoryId": float64(42)},
		},
		{
			name:    "unknown sub-category",
			body:    `{"userId":1,"categoryId":1,"subCategoryId":42,"prompt":"Explain orbits"}`,
			status:  http.StatusNotFound,
			code:    domain.CodeSubCategoryNotFound,
			details: map[string]any{"subCategoryId": float64(42)},
		},
		{
			name:   "mismatch",
			body:   `{"userId":1,"categoryId":1,"subCategoryId":3,"prompt":"Explain orbits"}`,
			status: http.StatusBadRequest,
			code:   domain.CodeSubCategoryCategoryMismatch,
			details: map[string]any{
				"subCategoryId":      float64(3),
				"expectedCategoryId": float64(1),
				"actualCategoryId":   float64(2),
			},
		},
		{
			name:    "short prompt",
			body:    `{"userId":1,"categoryId":1,"subCategoryId":1,"prompt":"hi"}`,
			status:  http.StatusBadRequest,
			code:    domain.CodeValidation,
			details: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/prompts", tt.body, nil)
			_, details := problemOf(t, w, tt.status, tt.code)
			for k, v := range tt.details {
				if details[k] != v {
					t.Fatalf("details[%s] = %v, want %v (all %v)", k, details[k], v, details)
				}
			}
		})
	}
}

func TestCreatePromptAndHistory(t *testing.T) {
	r := newTestRouter(newTestStore())
	register(t, r, "Dana", "0501234567")

	for _, prompt := range []string{"Explain orbits", "Explain comets"} {
		w := do(r, http.MethodPost, "/api/prompts",
			`{"userId":1,"categoryId":1,"subCategoryId":1,"prompt":"`+prompt+`"}`, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("create = %d %s", w.Code, w.Body.String())
		}
	}

	w := do(r, http.MethodGet, "/api/prompts/history?userId=1", "", nil)
	var history []domain.Prompt
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 2 || history[0].Response == "" {
		t.Fatalf("history = %+v", history)
	}
	if history[0].CreatedAt.Before(history[1].CreatedAt) {
		t.Fatal("history not newest first")
	}
}

func TestHistory_InvalidUserID(t *testing.T) {
	r := newTestRouter(newTestStore())

	w := do(r, http.MethodGet, "/api/prompts/history?userId=0", "", nil)
	p, details := problemOf(t, w, http.StatusBadRequest, domain.CodeValidation)
	if p.Detail != "userId must be a positive integer." || details["userId"] != float64(0) {
		t.Fatalf("problem = %+v details = %v", p, details)
	}

	w = do(r, http.MethodGet, "/api/prompts/history", "", nil)
	problemOf(t, w, http.StatusBadRequest, domain.CodeValidation)

	w = do(r, http.MethodGet, "/api/prompts/history?userId=abc", "", nil)
	_, details = problemOf(t, w, http.StatusBadRequest, domain.CodeValidation)
	if _, ok := details["userId"]; !ok {
		t.Fatalf("details = %v", details)
	}

	w = do(r, http.MethodGet, "/api/prompts/history?userId=9999", "", nil)
	problemOf(t, w, http.StatusNotFound, domain.CodeUserNotFound)
}

func TestPreview(t *testing.T) {
	r := newTestRouter(newTestStore())

	w := do(r, http.MethodGet, "/api/ai/test?topic=Space&prompt=%20orbits%20", "", nil)
	var got previewResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil || w.Code != http.StatusOK {
		t.Fatalf("preview = %d %s", w.Code, w.Body.String())
	}
	if got.Topic != "Space" || got.Prompt != "orbits" || got.Lesson == "" {
		t.Fatalf("preview = %+v", got)
	}

	w = do(r, http.MethodGet, "/api/ai/test?topic=%20%20", "", nil)
	_, details := problemOf(t, w, http.StatusBadRequest, domain.CodeValidation)
	if details["topic"] == nil || details["prompt"] == nil {
		t.Fatalf("details = %v", details)
	}
}

func TestAdmin_KeyGuard(t *testing.T) {
	store := newTestStore()

	r := newTestRouter(store, func(o *RouterOptions) { o.AdminKey = "" })
	w := do(r, http.MethodGet, "/api/admin/users", "", map[string]string{middleware.AdminKeyHeader: "anything"})
	problemOf(t, w, http.StatusConflict, domain.CodeServerMisconfig)

	r = newTestRouter(store)
	w = do(r, http.MethodGet, "/api/admin/users", "", nil)
	problemOf(t, w, http.StatusBadRequest, domain.CodeUnauthorized)

	w = do(r, http.MethodGet, "/api/admin/users", "", map[string]string{middleware.AdminKeyHeader: "wrong"})
	problemOf(t, w, http.StatusBadRequest, domain.CodeUnauthorized)
}

func TestAdmin_Users(t *testing.T) {
	r := newTestRouter(newTestStore())
	for i, phone := range []string{"0501111111", "0502222222", "0503333333"} {
		register(t, r, []string{"Alice", "Bob", "Carol"}[i], phone)
	}
	key := map[string]string{middleware.AdminKeyHeader: testAdminKey}

	w := do(r, http.MethodGet, "/api/admin/users?pageSize=2", "", key)
	var page domain.Page[domain.User]
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v (%s)", err, w.Body.String())
	}
	if page.Page != 1 || page.PageSize != 2 || page.TotalCount != 3 || len(page.Items) != 2 || page.Items[0].Name != "Carol" {
		t.Fatalf("page = %+v", page)
	}

	w = do(r, http.MethodGet, "/api/admin/users?page=0&pageSize=500&search=%20bob%20", "", key)
	page = domain.Page[domain.User]{}
	_ = json.Unmarshal(w.Body.Bytes(), &page)
	if page.Page != 1 || page.PageSize != domain.MaxPageSize || page.TotalCount != 1 || page.Items[0].Name != "Bob" {
		t.Fatalf("clamped page = %+v", page)
	}

	w = do(r, http.MethodGet, "/api/admin/users?page=abc", "", key)
	problemOf(t, w, http.StatusBadRequest, domain.CodeValidation)

	w = do(r, http.MethodGet, "/api/admin/users?page=9223372036854775807&pageSize=10", "", key)
	if w.Code != http.StatusOK {
		t.Fatalf("huge page = %d %s", w.Code, w.Body.String())
	}
	page = domain.Page[domain.User]{}
	_ = json.Unmarshal(w.Body.Bytes(), &page)
	if page.Page != domain.MaxPage || page.TotalCount != 3 || len(page.Items) != 0 {
		t.Fatalf("huge page = %+v", page)
	}

	w = do(r, http.MethodGet, "/api/admin/users/1/prompts?page=9223372036854775807&pageSize=100", "", key)
	var prompts domain.Page[domain.Prompt]
	if err := json.Unmarshal(w.Body.Bytes(), &prompts); err != nil || w.Code != http.StatusOK {
		t.Fatalf("huge prompts page = %d %s", w.Code, w.Body.String())
	}
	if prompts.Page != domain.MaxPage || len(prompts.Items) != 0 {
		t.Fatalf("huge prompts page = %+v", prompts)
	}
}

func TestAdmin_UserPrompts(t *testing.T) {
	r := newTestRouter(newTestStore())
	register(t, r, "Dana", "0501234567")
	do(r, http.MethodPost, "/api/prompts", `{"userId":1,"categoryId":2,"subCategoryId":3,"prompt":"Explain transformers"}`, nil)
	key := map[string]string{middleware.AdminKeyHeader: testAdminKey}

	w := do(r, http.MethodGet, "/api/admin/users/1/prompts?search=transformers", "", key)
	var page domain.Page[domain.Prompt]
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.TotalCount != 1 || page.Items[0].CategoryName == nil || *page.Items[0].CategoryName != "Tech" {
		t.Fatalf("page = %+v", page)
	}

	w = do(r, http.MethodGet, "/api/admin/users/0/prompts", "", key)
	problemOf(t, w, http.StatusBadRequest, domain.CodeValidation)

	w = do(r, http.MethodGet, "/api/admin/users/abc/prompts", "", key)
	problemOf(t, w, http.StatusBadRequest, domain.CodeArgument)
}

// brokenStore fails every catalog read and ping.
type brokenStore struct {
	*memory.Store
}

var errStoreDown = errors.New("connection refused")

func (brokenStore) ListCategories(context.Context) ([]domain.Category, error) {
	return nil, errStoreDown
}

func (brokenStore) Ping(context.Context) error { return errStoreDown }

func TestUnexpectedFailures(t *testing.T) {
	store := brokenStore{newTestStore()}

	r := newTestRouter(store)
	w := do(r, http.MethodGet, "/api/categories", "", nil)
	p, _ := problemOf(t, w, http.StatusInternalServerError, domain.CodeInternal)
	if string(p.Details) != "null" {
		t.Fatalf("production details = %s", p.Details)
	}

	r = newTestRouter(store, func(o *RouterOptions) { o.ExposeInternal = true })
	w = do(r, http.MethodGet, "/api/categories", "", nil)
	_, details := problemOf(t, w, http.StatusInternalServerError, domain.CodeInternal)
	if details["message"] != "connection refused" || details["exception"] != "*errors.errorString" {
		t.Fatalf("details = %v", details)
	}
}

func TestUnknownRoute(t *testing.T) {
	r := newTestRouter(newTestStore())

	w := do(r, http.MethodGet, "/api/nope", "", nil)
	p, details := problemOf(t, w, http.StatusNotFound, domain.CodeRouteNotFound)
	if p.Instance != "/api/nope" || details["path"] != "/api/nope" || details["method"] != http.MethodGet {
		t.Fatalf("problem = %+v details = %v", p, details)
	}
}

func TestHealth(t *testing.T) {
	draining := new(atomic.Bool)
	r := newTestRouter(newTestStore(), func(o *RouterOptions) {
		o.Draining = draining
		o.MetricsPath = "/metrics"
	})

	if w := do(r, http.MethodGet, "/api/health/db", "", nil); !strings.Contains(w.Body.String(), `"db":"OK"`) {
		t.Fatalf("db health = %s", w.Body.String())
	}
	if w := do(r, http.MethodGet, "/ready", "", nil); w.Code != http.StatusOK {
		t.Fatalf("ready = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK {
		t.Fatalf("metrics = %d", w.Code)
	}
	draining.Store(true)
	if w := do(r, http.MethodGet, "/ready", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready while draining = %d", w.Code)
	}

	r = newTestRouter(brokenStore{newTestStore()})
	w := do(r, http.MethodGet, "/api/health/db", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"db":"FAIL"`) {
		t.Fatalf("db health = %d %s", w.Code, w.Body.String())
	}
}
