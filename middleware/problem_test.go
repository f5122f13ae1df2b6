package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/duynhne/learning-platform/internal/core/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(exposeInternal bool, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(LoggingMiddleware(zap.NewNop()), ErrorTranslator(zap.NewNop(), exposeInternal))
	r.GET("/api/test", h)
	return r
}

func failWith(err error) gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = c.Error(err)
	}
}

type decoded struct {
	Status   int             `json:"status"`
	Title    string          `json:"title"`
	Detail   string          `json:"detail"`
	Instance string          `json:"instance"`
	Code     string          `json:"code"`
	Details  json.RawMessage `json:"details"`
	TraceID  string          `json:"traceId"`
}

func serve(t *testing.T, r http.Handler, header http.Header) (*httptest.ResponseRecorder, decoded, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return serveBody(t, w)
}

func serveBody(t *testing.T, w *httptest.ResponseRecorder) (*httptest.ResponseRecorder, decoded, map[string]json.RawMessage) {
	t.Helper()
	var p decoded
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &raw)
	return w, p, raw
}

func TestErrorTranslator_DomainErrorsUseKindStatus(t *testing.T) {
	tests := []struct {
		err    *domain.Error
		status int
		title  string
	}{
		{domain.UserNotFound(1), 404, "Not Found"},
		{domain.CategoryNotFound(1), 404, "Not Found"},
		{domain.SubCategoryNotFound(1), 404, "Not Found"},
		{domain.SubCategoryMismatch(5, 1, 3), 400, "Bad Request"},
		{domain.PhoneAlreadyExists("0501234567"), 409, "Conflict"},
		{domain.ValidationFailed(map[string][]string{"name": {"name is required"}}), 400, "Bad Request"},
		{domain.AdminKeyNotConfigured(), 409, "Conflict"},
		{domain.AdminKeyInvalid(), 400, "Bad Request"},
		{domain.Internal(), 500, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			w, p, _ := serve(t, newRouter(false, failWith(fmt.Errorf("handler: %w", tt.err))), nil)

			if w.Code != tt.status || p.Status != tt.status {
				t.Fatalf("status = %d/%d, want %d", w.Code, p.Status, tt.status)
			}
			if p.Code != tt.err.Code || p.Detail != tt.err.Message || p.Title != tt.title {
				t.Fatalf("unexpected envelope: %+v", p)
			}
			if p.Instance != "/api/test" {
				t.Fatalf("instance = %q", p.Instance)
			}
			if ct := w.Header().Get("Content-Type"); ct != ProblemContentType {
				t.Fatalf("Content-Type = %q", ct)
			}
		})
	}
}

func TestErrorTranslator_RoundTripsDetails(t *testing.T) {
	_, p, _ := serve(t, newRouter(false, failWith(domain.UserNotFound(7))), nil)

	var details map[string]any
	if err := json.Unmarshal(p.Details, &details); err != nil {
		t.Fatalf("details: %v", err)
	}
	if p.Code != domain.CodeUserNotFound || details["userId"] != float64(7) {
		t.Fatalf("code=%s details=%v", p.Code, details)
	}
}

func TestErrorTranslator_EnvelopeAlwaysCarriesAllFields(t *testing.T) {
	_, _, raw := serve(t, newRouter(false, failWith(domain.AdminKeyInvalid())), nil)

	for _, key := range []string{"status", "title", "detail", "instance", "code", "details", "traceId"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing %q in %v", key, raw)
		}
	}
	if string(raw["details"]) != "null" {
		t.Fatalf("details = %s, want null", raw["details"])
	}
}

func TestErrorTranslator_ArgumentErrors(t *testing.T) {
	_, numErr := strconv.Atoi("abc")

	tests := []struct {
		name   string
		err    error
		detail string
	}{
		{"argument error", &domain.ArgumentError{Name: "id", Reason: "must be an integer"}, "id: must be an integer"},
		{"wrapped numeric parse", fmt.Errorf("parse id: %w", numErr), `invalid numeric value "abc"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, p, _ := serve(t, newRouter(false, failWith(tt.err)), nil)
			if w.Code != http.StatusBadRequest || p.Code != domain.CodeArgument {
				t.Fatalf("got %d %s", w.Code, p.Code)
			}
			if p.Detail != tt.detail {
				t.Fatalf("detail = %q, want %q", p.Detail, tt.detail)
			}
		})
	}
}

func TestErrorTranslator_ConstraintViolations(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "users_phone_key", TableName: "users", Message: "duplicate key"}

	for name, err := range map[string]error{
		"pgx unique violation": fmt.Errorf("insert user: %w", pgErr),
		"sentinel":             fmt.Errorf("insert user: %w", domain.ErrConstraintViolation),
	} {
		t.Run(name, func(t *testing.T) {
			w, p, _ := serve(t, newRouter(true, failWith(err)), nil)
			if w.Code != http.StatusConflict || p.Code != domain.CodeDBConflict {
				t.Fatalf("got %d %s", w.Code, p.Code)
			}
			if p.Detail != "Database constraint violation." {
				t.Fatalf("detail = %q", p.Detail)
			}
			if strings.Contains(w.Body.String(), "users_phone_key") || strings.Contains(w.Body.String(), "users") {
				t.Fatalf("body leaks storage names: %s", w.Body.String())
			}
		})
	}
}

func TestErrorTranslator_NonConstraintPgErrorIsInternal(t *testing.T) {
	w, p, _ := serve(t, newRouter(false, failWith(&pgconn.PgError{Code: "42P01"})), nil)
	if w.Code != http.StatusInternalServerError || p.Code != domain.CodeInternal {
		t.Fatalf("got %d %s", w.Code, p.Code)
	}
}

func TestErrorTranslator_InternalDetailsOnlyWhenExposed(t *testing.T) {
	err := fmt.Errorf("load prompts: %w", errors.New("connection reset"))

	_, prod, _ := serve(t, newRouter(false, failWith(err)), nil)
	if prod.Detail != "An unexpected error occurred." || string(prod.Details) != "null" {
		t.Fatalf("production envelope leaks internals: %+v", prod)
	}

	w, dev, _ := serve(t, newRouter(true, failWith(err)), nil)
	var details map[string]string
	if err := json.Unmarshal(dev.Details, &details); err != nil {
		t.Fatalf("details: %v", err)
	}
	if details["exception"] != "*errors.errorString" || details["message"] != "connection reset" {
		t.Fatalf("dev details = %v", details)
	}
	if strings.Contains(w.Body.String(), "goroutine") || strings.Contains(w.Body.String(), ".go:") {
		t.Fatal("body must never carry a stack trace")
	}
}

func TestErrorTranslator_RecoversPanics(t *testing.T) {
	t.Run("plain panic", func(t *testing.T) {
		r := newRouter(true, func(c *gin.Context) { panic("boom") })
		w, p, _ := serve(t, r, nil)
		if w.Code != http.StatusInternalServerError || p.Code != domain.CodeInternal {
			t.Fatalf("got %d %s", w.Code, p.Code)
		}
		var details map[string]string
		_ = json.Unmarshal(p.Details, &details)
		if details["exception"] != "string" {
			t.Fatalf("details = %v", details)
		}
	})

	t.Run("domain error panic", func(t *testing.T) {
		r := newRouter(false, func(c *gin.Context) { panic(domain.UserNotFound(3)) })
		w, p, _ := serve(t, r, nil)
		if w.Code != http.StatusNotFound || p.Code != domain.CodeUserNotFound {
			t.Fatalf("got %d %s", w.Code, p.Code)
		}
	})
}

func TestErrorTranslator_OmitsUnserializableDetails(t *testing.T) {
	bad := &domain.Error{Kind: domain.KindBadRequest, Code: domain.CodeValidation, Message: "Validation failed",
		Details: map[string]any{"ch": make(chan int)}}

	w, p, raw := serve(t, newRouter(false, failWith(bad)), nil)
	if w.Code != http.StatusBadRequest || p.Code != domain.CodeValidation {
		t.Fatalf("got %d %s", w.Code, p.Code)
	}
	if _, ok := raw["details"]; ok {
		t.Fatalf("details should be omitted, got %s", raw["details"])
	}
	if p.TraceID == "" || p.Instance == "" {
		t.Fatalf("rest of envelope missing: %+v", p)
	}
}

func TestErrorTranslator_ResetsHeadersAndKeepsTraceID(t *testing.T) {
	r := newRouter(false, func(c *gin.Context) {
		c.Header("X-Partial", "1")
		c.Header("Content-Type", "text/plain")
		_ = c.Error(domain.CategoryNotFound(4))
	})

	w, p, _ := serve(t, r, http.Header{TraceIDHeader: {"trace-abc"}})
	if w.Header().Get("X-Partial") != "" {
		t.Fatal("partial headers must be cleared")
	}
	if w.Header().Get(TraceIDHeader) != "trace-abc" || p.TraceID != "trace-abc" {
		t.Fatalf("trace id header=%q body=%q", w.Header().Get(TraceIDHeader), p.TraceID)
	}
}

func TestErrorTranslator_StartedResponseIsNotRewritten(t *testing.T) {
	tests := []struct {
		name      string
		fail      func(c *gin.Context)
		wantPanic any
	}{
		{"reported error", func(c *gin.Context) { _ = c.Error(domain.UserNotFound(1)) }, http.ErrAbortHandler},
		{"panic", func(c *gin.Context) { panic("late failure") }, "late failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(true, func(c *gin.Context) {
				c.String(http.StatusOK, "partial")
				tt.fail(c)
			})
			w := httptest.NewRecorder()

			func() {
				defer func() {
					if got := recover(); got != tt.wantPanic {
						t.Fatalf("recovered %v, want %v", got, tt.wantPanic)
					}
				}()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/test", nil))
			}()

			if w.Code != http.StatusOK || w.Body.String() != "partial" {
				t.Fatalf("partial response rewritten: %d %q", w.Code, w.Body.String())
			}
		})
	}
}

func TestErrorTranslator_NoErrorPassesThrough(t *testing.T) {
	r := newRouter(false, func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/test", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}

func TestErrorTranslator_CountsProblems(t *testing.T) {
	counter := problemResponses.WithLabelValues(domain.CodeSubCategoryNotFound, "404")
	before := testutil.ToFloat64(counter)

	serve(t, newRouter(false, failWith(domain.SubCategoryNotFound(2))), nil)

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("problem_responses_total = %v, want %v", got, before+1)
	}
}
