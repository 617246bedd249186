package response

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the failure payload: {"error": "...", "debug": {...}}.
type ErrorBody struct {
	Error string                 `json:"error"`
	Debug map[string]interface{} `json:"debug,omitempty"`
}

// OKBody is returned by mutations that have nothing else to report.
type OKBody struct {
	OK bool `json:"ok"`
}

// Kind classifies an AppError independently of its HTTP status.
type Kind string

const (
	KindUnauthenticated  Kind = "unauthenticated"
	KindForbidden        Kind = "forbidden"
	KindInvalidInput     Kind = "invalid_input"
	KindInvalidOperation Kind = "invalid_operation"
	KindNotFound         Kind = "not_found"
	KindUpstream         Kind = "upstream_failure"
)

// AppError represents a structured application error with HTTP status and kind.
type AppError struct {
	HTTPStatus int
	Kind       Kind
	Message    string
	Debug      map[string]interface{}
	Err        error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDebug attaches a diagnostic field, shown to clients only outside release mode.
func (e *AppError) WithDebug(key string, value interface{}) *AppError {
	if e.Debug == nil {
		e.Debug = make(map[string]interface{})
	}
	e.Debug[key] = value
	return e
}

var exposeDebug atomic.Bool

func init() {
	exposeDebug.Store(true)
}

// SetDebug toggles whether debug detail is written to error bodies.
func SetDebug(enabled bool) {
	exposeDebug.Store(enabled)
}

func NewUnauthorized(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusUnauthorized, Kind: KindUnauthenticated, Message: msg}
}

func NewForbidden(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusForbidden, Kind: KindForbidden, Message: msg}
}

// NewBadRequest reports malformed or invalid input.
func NewBadRequest(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Kind: KindInvalidInput, Message: msg}
}

// NewInvalidOperation reports a well-formed request that is not allowed, such as self-deletion.
func NewInvalidOperation(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Kind: KindInvalidOperation, Message: msg}
}

func NewNotFound(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Kind: KindNotFound, Message: msg}
}

// NewUpstream wraps a failure from the database, identity or blob store.
// The upstream message is passed through to the client.
func NewUpstream(status int, err error) *AppError {
	return &AppError{HTTPStatus: status, Kind: KindUpstream, Message: err.Error(), Err: err}
}

func NewServerError(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusInternalServerError, Kind: KindUpstream, Message: msg}
}

// Success sends a 200 OK response with data as the body.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 Created response with data as the body.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// OK sends {"ok": true}.
func OK(c *gin.Context) {
	c.JSON(http.StatusOK, OKBody{OK: true})
}

// Error sends an error response. An *AppError keeps its status; anything
// else becomes a 500 carrying the error text.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *AppError
	if errors.As(err, &appErr) {
		body := ErrorBody{Error: appErr.Message}
		if exposeDebug.Load() {
			body.Debug = appErr.Debug
			if appErr.Err != nil && appErr.Err.Error() != appErr.Message {
				if body.Debug == nil {
					body.Debug = map[string]interface{}{}
				}
				body.Debug["cause"] = appErr.Err.Error()
			}
		}
		c.JSON(appErr.HTTPStatus, body)
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: err.Error()})
}

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, ErrorBody{Error: msg})
}

func Forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, ErrorBody{Error: msg})
}

func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, ErrorBody{Error: msg})
}

func ServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: msg})
}
