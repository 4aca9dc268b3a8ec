package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/John-Robertt/subforge/internal/doc"
	"github.com/John-Robertt/subforge/internal/fetch"
	"github.com/John-Robertt/subforge/internal/model"
	"github.com/John-Robertt/subforge/internal/naming"
	"github.com/John-Robertt/subforge/internal/store"
	"github.com/John-Robertt/subforge/internal/synth"
	"go.uber.org/zap"
)

// APIError is used by the HTTP layer for request validation and a few
// HTTP-specific errors.
type APIError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *APIError) Unwrap() error { return e.Cause }

func apiError(status int, app model.AppError, cause error) error {
	return &APIError{Status: status, AppError: app, Cause: cause}
}

func requestError(code, message, hint string) error {
	return apiError(http.StatusBadRequest, model.AppError{
		Code:    code,
		Message: message,
		Stage:   "validate_request",
		Hint:    hint,
	}, nil)
}

func notFound(code, message string) error {
	return apiError(http.StatusNotFound, model.AppError{
		Code:    code,
		Message: message,
		Stage:   "validate_request",
	}, nil)
}

func storageError(err error) error {
	return apiError(http.StatusInternalServerError, model.AppError{
		Code:    "STORAGE_ERROR",
		Message: "存储读写失败",
		Stage:   "storage",
	}, err)
}

// errorStatus maps err to a status code and the AppError sent to the client.
func errorStatus(err error) (int, model.AppError) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status, ae.AppError
	}

	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		return fe.Status, fe.AppError
	}

	// Template and user content errors => 422. ParseError is checked before
	// GenerationError because the latter wraps it.
	var pe *doc.ParseError
	if errors.As(err, &pe) {
		return http.StatusUnprocessableEntity, pe.AppError
	}

	var te *naming.TemplateError
	if errors.As(err, &te) {
		return http.StatusUnprocessableEntity, te.AppError
	}

	var re *store.RegistryError
	if errors.As(err, &re) {
		return http.StatusUnprocessableEntity, re.AppError
	}

	if errors.Is(err, store.ErrInvalidKey) {
		return http.StatusBadRequest, model.AppError{
			Code:    "INVALID_ARGUMENT",
			Message: "存储路径不合法",
			Stage:   "validate_request",
		}
	}

	var ge *synth.GenerationError
	if errors.As(err, &ge) {
		return http.StatusInternalServerError, ge.AppError
	}

	// Fallback: internal bug.
	return http.StatusInternalServerError, model.AppError{
		Code:    "INTERNAL_ERROR",
		Message: "服务端内部错误",
		Stage:   "internal",
		Hint:    err.Error(),
	}
}

func (s *server) writeErrorFromErr(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status, app := errorStatus(err)
	s.metrics.IncAppError(app.Stage, app.Code)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	WriteError(w, status, app)
}
