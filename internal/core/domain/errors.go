package domain

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a domain error. Every Kind maps to exactly one HTTP status.
type Kind int

const (
	// KindBadRequest - HTTP Status: 400 Bad Request
	KindBadRequest Kind = iota + 1
	// KindNotFound - HTTP Status: 404 Not Found
	KindNotFound
	// KindConflict - HTTP Status: 409 Conflict
	KindConflict
	// KindUnexpected - HTTP Status: 500 Internal Server Error
	KindUnexpected
)

// HTTPStatus returns the fixed status for the kind. Unknown kinds are unexpected.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode projects the kind onto the canonical gRPC codes.
func (k Kind) GRPCCode() codes.Code {
	switch k {
	case KindBadRequest:
		return codes.InvalidArgument
	case KindNotFound:
		return codes.NotFound
	case KindConflict:
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unexpected"
	}
}

// Stable error codes. Clients switch on these, never on messages.
const (
	CodeUserNotFound                = "USER_NOT_FOUND"
	CodeCategoryNotFound            = "CATEGORY_NOT_FOUND"
	CodeSubCategoryNotFound         = "SUBCATEGORY_NOT_FOUND"
	CodeSubCategoryCategoryMismatch = "SUBCATEGORY_CATEGORY_MISMATCH"
	CodePhoneAlreadyExists          = "PHONE_ALREADY_EXISTS"
	CodeValidation                  = "VALIDATION_ERROR"
	CodeServerMisconfig             = "SERVER_MISCONFIG"
	CodeUnauthorized                = "UNAUTHORIZED"
	CodeInternal                    = "INTERNAL_ERROR"

	// Codes produced by the translator for failures outside the taxonomy.
	CodeArgument      = "ARGUMENT_ERROR"
	CodeDBConflict    = "DB_CONFLICT"
	CodeRouteNotFound = "ROUTE_NOT_FOUND"
)

// Error is a classified business-rule violation.
//
// Values are immutable once built by one of the factories below; the HTTP
// layer reads Kind, Code, Message and Details verbatim.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Status returns the HTTP status of the error's kind.
func (e *Error) Status() int {
	return e.Kind.HTTPStatus()
}

// GRPCStatus lets grpc/status.FromError convert domain errors directly.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Kind.GRPCCode(), e.Message)
}

// Is matches domain errors by code so callers can compare against a template.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(kind Kind, code, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Details: details}
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// UserNotFound reports a failed lookup by user id.
func UserNotFound(userID int) *Error {
	return newError(KindNotFound, CodeUserNotFound,
		fmt.Sprintf("UserId %d not found", userID),
		map[string]any{"userId": userID})
}

// UserPhoneNotFound reports a failed login lookup by phone.
func UserPhoneNotFound(phone string) *Error {
	return newError(KindNotFound, CodeUserNotFound,
		"User does not exist. Please sign up first.",
		map[string]any{"phone": phone})
}

// CategoryNotFound reports a missing category id.
func CategoryNotFound(categoryID int) *Error {
	return newError(KindNotFound, CodeCategoryNotFound,
		fmt.Sprintf("CategoryId %d not found", categoryID),
		map[string]any{"categoryId": categoryID})
}

// CategoryNameNotFound reports a missing category name.
func CategoryNameNotFound(name string) *Error {
	return newError(KindNotFound, CodeCategoryNotFound,
		fmt.Sprintf("Category '%s' not found", name),
		map[string]any{"name": name})
}

// SubCategoryNotFound reports a missing sub-category id.
func SubCategoryNotFound(subCategoryID int) *Error {
	return newError(KindNotFound, CodeSubCategoryNotFound,
		fmt.Sprintf("SubCategoryId %d not found", subCategoryID),
		map[string]any{"subCategoryId": subCategoryID})
}

// SubCategoryMismatch reports a sub-category whose parent differs from the supplied category.
func SubCategoryMismatch(subCategoryID, expectedCategoryID, actualCategoryID int) *Error {
	return newError(KindBadRequest, CodeSubCategoryCategoryMismatch,
		fmt.Sprintf("SubCategoryId %d does not belong to CategoryId %d", subCategoryID, expectedCategoryID),
		map[string]any{
			"subCategoryId":      subCategoryID,
			"expectedCategoryId": expectedCategoryID,
			"actualCategoryId":   actualCategoryID,
		})
}

// PhoneAlreadyExists reports a registration with a phone already on file.
func PhoneAlreadyExists(phone string) *Error {
	return newError(KindConflict, CodePhoneAlreadyExists, "Phone already exists",
		map[string]any{"phone": phone})
}

// InvalidParameter reports a single structurally invalid parameter.
func InvalidParameter(name string, value any, message string) *Error {
	return newError(KindBadRequest, CodeValidation, message,
		map[string]any{name: value})
}

// ValidationFailed reports field-level validation failures.
// fields maps field name to its ordered messages.
func ValidationFailed(fields map[string][]string) *Error {
	details := make(map[string]any, len(fields))
	for name, msgs := range fields {
		cp := make([]string, len(msgs))
		copy(cp, msgs)
		details[name] = cp
	}
	return newError(KindBadRequest, CodeValidation, "Validation failed", details)
}

// AdminKeyNotConfigured reports a missing admin shared secret.
func AdminKeyNotConfigured() *Error {
	return newError(KindConflict, CodeServerMisconfig, "Admin key is not configured.", nil)
}

// AdminKeyInvalid reports a missing or mismatched admin shared secret.
func AdminKeyInvalid() *Error {
	return newError(KindBadRequest, CodeUnauthorized, "Missing or invalid admin key.", nil)
}

// Internal reports an unclassified failure.
func Internal() *Error {
	return newError(KindUnexpected, CodeInternal, "An unexpected error occurred.", nil)
}

// RouteNotFound reports a request that matched no route.
func RouteNotFound(method, path string) *Error {
	return newError(KindNotFound, CodeRouteNotFound,
		fmt.Sprintf("No route for %s %s", method, path),
		map[string]any{"method": method, "path": path})
}

// ArgumentError is a malformed-input failure raised outside the taxonomy,
// e.g. an unparsable path parameter or a blank argument to a collaborator.
type ArgumentError struct {
	Name   string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Name == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

// ErrConstraintViolation is returned by stores that detect a uniqueness or
// foreign-key violation without a driver-specific error.
var ErrConstraintViolation = errors.New("storage constraint violation")
