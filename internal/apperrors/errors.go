// Package apperrors defines the error kinds enumerated in spec.md §7 as a
// single AppError type, mirroring
// SoySergo-location_microservice/internal/pkg/errors/errors.go's
// Code/Message/Details/StatusCode shape.
package apperrors

import "fmt"

// AppError is the one error type the HTTP layer ever serializes. Internal
// callers that only need to check a kind use errors.Is against the
// sentinel values below; the Details map carries context for logging and
// for the client-facing JSON body.
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithDetails returns a copy of e carrying the given details.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Codes matching spec.md §7's error kinds.
const (
	CodeInvalidInput       = "invalid_input"
	CodeNoRoute            = "no_route"
	CodeStaleRouter        = "stale_router"
	CodeGeometryDegenerate = "geometry_degenerate"
	CodeInternal           = "internal_error"
)

var (
	// ErrInvalidInput covers unparseable OSM, an invalid boundary, or a
	// boundary whose interior contains zero roads (§4.1, §4.4).
	ErrInvalidInput = &AppError{Code: CodeInvalidInput, Message: "invalid input", StatusCode: 400}

	// ErrNoRoute is not a failure per §7; the router layer never returns it
	// as a Go error — it exists only so the HTTP layer has a uniform shape
	// to report "no path found" as a 2xx/empty-result body rather than an
	// error page.
	ErrNoRoute = &AppError{Code: CodeNoRoute, Message: "no route found", StatusCode: 200}

	// ErrStaleRouter signals a caller invoked a post-edit query before
	// rebuild_router — a programmer bug per §7, not a user-facing fault.
	ErrStaleRouter = &AppError{Code: CodeStaleRouter, Message: "router is stale; rebuild before querying", StatusCode: 500}

	// ErrGeometryDegenerate covers a zero-length linestring or a non-simple
	// polygon encountered outside map build, where §7 says to recover
	// locally; at the HTTP boundary it still needs a response shape.
	ErrGeometryDegenerate = &AppError{Code: CodeGeometryDegenerate, Message: "degenerate geometry", StatusCode: 422}

	// ErrInternal is the catch-all for panics recovered by the API
	// middleware and any error neither caller classified.
	ErrInternal = &AppError{Code: CodeInternal, Message: "internal error", StatusCode: 500}
)

// New constructs an ad-hoc AppError, for sites that need a dynamic message
// rather than one of the sentinels above.
func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode, Details: make(map[string]interface{})}
}

// InvalidInput wraps msg as a 400 invalid_input error.
func InvalidInput(msg string) *AppError {
	return New(CodeInvalidInput, msg, 400)
}

// GeometryDegenerate wraps msg as a 422 geometry_degenerate error.
func GeometryDegenerate(msg string) *AppError {
	return New(CodeGeometryDegenerate, msg, 422)
}
