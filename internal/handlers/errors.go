package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/apperrors"
	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    apperrors.Kind `json:"code"`
	Message string         `json:"message"`
}

// HTTPErrorHandler renders every failure as {"error": {"code", "message"}}.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	kind, message := classify(err)
	status := apperrors.StatusOf(kind)
	if status >= http.StatusInternalServerError && kind == apperrors.KindInternal {
		log.WithFields(log.Fields{
			"method": c.Request().Method,
			"uri":    c.Request().RequestURI,
		}).Errorf("Internal error: %s", err)
		message = "internal server error"
	}

	body := ErrorBody{Error: ErrorDetail{Code: kind, Message: message}}
	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		log.Errorf("Error writing error response: %s", writeErr)
	}
}

func classify(err error) (apperrors.Kind, string) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.Kind, appErr.Message
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return apperrors.KindInvalidInput, validationMessage(validationErrs)
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return kindForStatus(httpErr.Code), fmt.Sprint(httpErr.Message)
	}

	return apperrors.KindInternal, err.Error()
}

func kindForStatus(status int) apperrors.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return apperrors.KindInvalidInput
	case http.StatusUnauthorized:
		return apperrors.KindUnauthorized
	case http.StatusForbidden:
		return apperrors.KindForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperrors.KindNotFound
	case http.StatusConflict:
		return apperrors.KindConflict
	case http.StatusServiceUnavailable:
		return apperrors.KindServiceUnavailable
	default:
		if status >= 400 && status < 500 {
			return apperrors.KindInvalidInput
		}
		return apperrors.KindInternal
	}
}

func validationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "min":
			parts = append(parts, field+" must be at least "+fe.Param()+" characters")
		case "max":
			parts = append(parts, field+" must be at most "+fe.Param())
		case "oneof":
			parts = append(parts, field+" must be one of: "+fe.Param())
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}

// bindAndValidate binds the request body into req and runs the validator.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperrors.InvalidInput("invalid request payload")
	}
	return c.Validate(req)
}

// currentUserID returns the id of the authenticated caller.
func currentUserID(c echo.Context) (primitive.ObjectID, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return primitive.NilObjectID, apperrors.Unauthorized("authentication required")
	}
	return id, nil
}

func objectIDParam(c echo.Context, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		return primitive.NilObjectID, apperrors.InvalidInput("invalid " + name)
	}
	return id, nil
}
