package response

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kcirtapfromspace/offleash-sub002/internal/service"
)

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrCode is the machine-readable error code of a failed request.
type ErrCode string

const (
	FailedRequest    ErrCode = "REQUEST_FAILED"
	BadRequest       ErrCode = "FAILED_TO_DECODE"
	ValidationFailed ErrCode = "VALIDATION_FAILED"
	NotFound         ErrCode = "NOT_FOUND"
	Conflict         ErrCode = "CONFLICT"
	InProgress       ErrCode = "IN_PROGRESS"
	Cancelled        ErrCode = "CANCELLED"
)

func Error(code ErrCode, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    string(code),
			Message: msg,
		},
	}
}

// ValidationError turns validator errors into one readable message.
func ValidationError(errs validator.ValidationErrors) Response {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.ActualTag() {
		case "required", "required_without":
			msgs = append(msgs, fmt.Sprintf("field '%s' is required", err.Field()))
		case "uuid":
			msgs = append(msgs, fmt.Sprintf("field '%s' must be a uuid", err.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field '%s' must be one of [%s]", err.Field(), err.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field '%s' must be at least %s", err.Field(), err.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field '%s' must be at most %s", err.Field(), err.Param()))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("field '%s' must match %s", err.Field(), err.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field '%s' is invalid", err.Field()))
		}
	}
	return Error(ValidationFailed, strings.Join(msgs, ", "))
}

// Invalid writes a 400 for a request that failed decoding or validation.
func Invalid(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, http.StatusBadRequest)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		render.JSON(w, r, ValidationError(verrs))
		return
	}
	render.JSON(w, r, Error(ValidationFailed, err.Error()))
}

// FromError maps a service error to a status code and body. Unexpected
// errors are logged and hidden behind msg.
func FromError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error, msg string) {
	var (
		status = http.StatusInternalServerError
		body   = Error(FailedRequest, msg)
	)

	switch {
	case errors.Is(err, service.ErrValidation):
		status, body = http.StatusBadRequest, Error(ValidationFailed, err.Error())
	case errors.Is(err, service.ErrNotFound):
		status, body = http.StatusNotFound, Error(NotFound, err.Error())
	case errors.Is(err, service.ErrSeriesInProgress):
		status, body = http.StatusConflict, Error(InProgress, err.Error())
	case errors.Is(err, service.ErrConflict):
		status, body = http.StatusConflict, Error(Conflict, service.ConflictReason(err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, body = http.StatusServiceUnavailable, Error(Cancelled, "request cancelled")
	}

	if status >= http.StatusInternalServerError {
		log.Error(msg, zap.Error(err))
	} else {
		log.Info("request rejected", zap.Int("status", status), zap.Error(err))
	}

	render.Status(r, status)
	render.JSON(w, r, body)
}
