package response

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/huangang/taskhub/pkg/logger"
)

// Response is the unified success response format.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorBody is the unified error response format.
type ErrorBody struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeInternal        = "INTERNAL_ERROR"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
)

func init() {
	// Report json field names instead of Go struct field names in validation details
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	}
}

// AppError represents a structured application error with HTTP status and error code.
type AppError struct {
	HTTPStatus int         // HTTP status code (e.g. 400, 404, 500)
	Code       string      // Machine readable code, e.g. TASK_NOT_FOUND
	Message    string      // Human-readable error message
	Details    interface{} // Optional extra payload
}

func (e *AppError) Error() string {
	return e.Message
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of the error carrying a different message.
func (e *AppError) WithMessage(msg string) *AppError {
	cp := *e
	cp.Message = msg
	return &cp
}

// WithDetails returns a copy of the error carrying details.
func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Pre-defined error constructors

func NewBadRequest(code, msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Code: code, Message: msg}
}

func NewUnauthorized(code, msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusUnauthorized, Code: code, Message: msg}
}

func NewForbidden(code, msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusForbidden, Code: code, Message: msg}
}

func NewNotFound(code, msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Code: code, Message: msg}
}

func NewConflict(code, msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusConflict, Code: code, Message: msg}
}

func NewServerError(code, msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusInternalServerError, Code: code, Message: msg}
}

// --- Gin response helpers ---

// Success sends a 200 OK response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "ok",
		Data:    data,
	})
}

// Created sends a 201 Created response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

// Error sends an error response. If err is an *AppError, its code and status
// are used; otherwise a generic 500 internal error is returned and the
// original error is logged.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorBody{
			Error:   appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		ValidationError(c, err)
		return
	}

	logger.Error().Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Msg("unhandled error")
	c.JSON(http.StatusInternalServerError, ErrorBody{
		Error:   CodeInternal,
		Message: "internal error",
	})
}

// ValidationError renders a binding error. Validator errors are expanded into
// a {field, message} list; anything else (malformed JSON, bad types) is reported
// as a plain message.
func ValidationError(c *gin.Context, err error) {
	body := ErrorBody{Error: CodeValidation, Message: "invalid request"}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, FieldError{
				Field:   fieldName(fe),
				Message: fieldMessage(fe),
			})
		}
		body.Details = details
	} else if err != nil {
		body.Message = err.Error()
	}

	c.JSON(http.StatusBadRequest, body)
}

func fieldName(fe validator.FieldError) string {
	if name := fe.Field(); name != "" {
		return name
	}
	return fe.Namespace()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "hexcolor":
		return "must be a hex color"
	}
	return "failed on " + fe.Tag()
}

// Convenience error response functions

func BadRequest(c *gin.Context, code, msg string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: code, Message: msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, ErrorBody{Error: CodeUnauthenticated, Message: msg})
}

func Forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, ErrorBody{Error: CodeForbidden, Message: msg})
}

func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, ErrorBody{Error: CodeNotFound, Message: msg})
}

func TooManyRequests(c *gin.Context, msg string) {
	c.JSON(http.StatusTooManyRequests, ErrorBody{Error: CodeTooManyRequests, Message: msg})
}

func ServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: CodeInternal, Message: msg})
}
