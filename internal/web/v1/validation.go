package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/duynhne/learning-platform/internal/core/domain"
	"github.com/duynhne/learning-platform/middleware"
)

const payloadKey = "payload"

// Bind decodes and validates the JSON body into T before the handler runs.
// A failure is reported as VALIDATION_ERROR and the chain stops, so the
// handler only ever sees a valid payload (read it with Payload).
func Bind[T any]() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req T
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(bindingError(err))
			c.Abort()
			return
		}
		c.Set(payloadKey, req)
		c.Next()
	}
}

// Payload returns the body stored by Bind[T].
func Payload[T any](c *gin.Context) T {
	v, _ := c.Get(payloadKey)
	req, _ := v.(T)
	return req
}

// bindingError maps a gin binding failure onto the validation envelope.
// Raw decoder and validator text never reaches the client.
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return domain.ValidationFailed(middleware.FieldMessages(verrs))
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return domain.ValidationFailed(map[string][]string{
			typeErr.Field: {fmt.Sprintf("%s must be a %s", typeErr.Field, jsonTypeName(typeErr.Type.Kind().String()))},
		})
	}

	if errors.Is(err, io.EOF) {
		return domain.ValidationFailed(map[string][]string{"body": {"request body is required"}})
	}
	return domain.ValidationFailed(map[string][]string{"body": {"request body must be valid JSON"}})
}

func jsonTypeName(kind string) string {
	switch kind {
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return "integer"
	case "float32", "float64":
		return "number"
	case "bool":
		return "boolean"
	default:
		return kind
	}
}

// queryInt reads an optional integer query parameter. An absent or blank
// value yields def; anything else must parse.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.ValidationFailed(map[string][]string{
			name: {fmt.Sprintf("The value '%s' is not valid for %s.", raw, name)},
		})
	}
	return n, nil
}

// pathInt parses an integer route parameter. A malformed value is an
// argument failure, not a validation failure.
func pathInt(c *gin.Context, name string) (int, error) {
	raw := c.Param(name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ArgumentError{Name: name, Reason: fmt.Sprintf("%q is not an integer", raw)}
	}
	return n, nil
}
