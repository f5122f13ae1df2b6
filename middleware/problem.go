package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/duynhne/learning-platform/internal/core/domain"
)

// ProblemContentType is the media type of every error body.
const ProblemContentType = "application/problem+json"

// Problem is the wire envelope of every non-2xx response.
type Problem struct {
	Status   int             `json:"status"`
	Title    string          `json:"title"`
	Detail   string          `json:"detail"`
	Instance string          `json:"instance"`
	Code     string          `json:"code"`
	Details  json.RawMessage `json:"details,omitempty"`
	TraceID  string          `json:"traceId"`
}

var nullDetails = json.RawMessage("null")

// classified is a failure resolved to its response fields.
type classified struct {
	status  int
	code    string
	message string
	details any
}

// PanicError carries a recovered panic value through classification.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// ErrorTranslator converts every failure raised while handling a request
// into a Problem response. Handlers report failures with c.Error(err) or by
// panicking; both end up here.
//
// A response that has already started is never rewritten: a recovered panic
// is re-raised as is, and a reported error aborts the connection with
// http.ErrAbortHandler so the partial body stays authoritative.
//
// exposeInternal adds the root cause type and message to INTERNAL_ERROR
// details. It must be false in production.
func ErrorTranslator(logger *zap.Logger, exposeInternal bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler || c.Writer.Written() {
				panic(rec)
			}
			err := &PanicError{Value: rec}
			c.Abort()
			writeProblem(c, logger, err, classify(err, exposeInternal))
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		if c.Writer.Written() {
			logger.Error("Failure after response started; aborting connection",
				zap.String("trace_id", TraceIDFromContext(c)),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			panic(http.ErrAbortHandler)
		}

		writeProblem(c, logger, err, classify(err, exposeInternal))
	}
}

// classify resolves err in priority order: domain error, malformed
// argument or validation failure, storage constraint, anything else.
func classify(err error, exposeInternal bool) classified {
	if de, ok := domain.AsError(err); ok {
		return classified{status: de.Status(), code: de.Code, message: de.Message, details: detailsOf(de)}
	}

	var argErr *domain.ArgumentError
	if errors.As(err, &argErr) {
		return classified{status: http.StatusBadRequest, code: domain.CodeArgument, message: argErr.Error()}
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return classified{
			status:  http.StatusBadRequest,
			code:    domain.CodeArgument,
			message: fmt.Sprintf("invalid numeric value %q", numErr.Num),
		}
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		de := domain.ValidationFailed(FieldMessages(verrs))
		return classified{status: de.Status(), code: de.Code, message: de.Message, details: de.Details}
	}

	if isConstraintViolation(err) {
		return classified{status: http.StatusConflict, code: domain.CodeDBConflict, message: "Database constraint violation."}
	}

	internal := domain.Internal()
	out := classified{status: internal.Status(), code: internal.Code, message: internal.Message}
	if exposeInternal {
		root := rootCause(err)
		exception := fmt.Sprintf("%T", root)
		if pe, ok := root.(*PanicError); ok {
			exception = fmt.Sprintf("%T", pe.Value)
		}
		out.details = map[string]any{"exception": exception, "message": root.Error()}
	}
	return out
}

// detailsOf keeps a nil details map as JSON null instead of {}.
func detailsOf(de *domain.Error) any {
	if de.Details == nil {
		return nil
	}
	return de.Details
}

// isConstraintViolation recognizes integrity violations (SQLSTATE class 23)
// from pgx and the store-agnostic sentinel.
func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return true
	}
	return errors.Is(err, domain.ErrConstraintViolation)
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func statusTitle(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Bad Request"
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusConflict:
		return "Conflict"
	case http.StatusInternalServerError:
		return "Internal Server Error"
	default:
		return "Error"
	}
}

// writeProblem resets the unsent response and writes the envelope. It never panics.
func writeProblem(c *gin.Context, logger *zap.Logger, err error, p classified) {
	traceID := TraceIDFromContext(c)
	if traceID == "" {
		traceID = generateTraceID()
		c.Set(traceIDKey, traceID)
	}

	body := Problem{
		Status:   p.status,
		Title:    statusTitle(p.status),
		Detail:   p.message,
		Instance: c.Request.URL.Path,
		Code:     p.code,
		Details:  nullDetails,
		TraceID:  traceID,
	}
	if p.details != nil {
		raw, mErr := json.Marshal(p.details)
		if mErr != nil {
			logger.Warn("Dropping unserializable problem details",
				zap.String("trace_id", traceID), zap.String("code", p.code), zap.Error(mErr))
			body.Details = nil
		} else {
			body.Details = raw
		}
	}

	// Details is either nil or the output of json.Marshal, so this cannot fail.
	payload, _ := json.Marshal(body)

	header := c.Writer.Header()
	for k := range header {
		delete(header, k)
	}
	header.Set(TraceIDHeader, traceID)
	header.Set("Content-Type", ProblemContentType)
	header.Set("Cache-Control", "no-store")
	c.Writer.WriteHeader(p.status)
	_, _ = c.Writer.Write(payload)

	recordProblem(p.code, p.status)
	RecordError(c.Request.Context(), err)

	fields := []zap.Field{
		zap.String("trace_id", traceID),
		zap.String("code", p.code),
		zap.Int("status", p.status),
		zap.String("path", c.Request.URL.Path),
	}
	if p.status >= http.StatusInternalServerError {
		logger.Error("Request failed", append(fields, zap.Error(err))...)
		return
	}
	logger.Warn("Request rejected", append(fields, zap.String("detail", p.message))...)
}
