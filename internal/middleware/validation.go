package middleware

import (
	"errors"
	"net/http"

	"github.com/eaglebank/ledger-service/internal/xerrors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type BadRequestErrorResponse struct {
	Message string            `json:"message"`
	Details []ValidationError `json:"details"`
}

func ValidateRequest(obj any) []ValidationError {
	var validationErrors []ValidationError

	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	for _, err := range err.(validator.ValidationErrors) {
		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: getErrorMsg(err),
			Type:    err.Tag(),
		})
	}

	return validationErrors
}

func getErrorMsg(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "oneof":
		return "Value must be one of: " + err.Param()
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gt":
		return "Value must be greater than " + err.Param()
	case "gte":
		return "Value must be greater than or equal to " + err.Param()
	default:
		return "Invalid value"
	}
}

func RespondWithValidationError(c *gin.Context, validationErrors []ValidationError) {
	c.JSON(http.StatusBadRequest, BadRequestErrorResponse{
		Message: "Invalid request data",
		Details: validationErrors,
	})
}

func RespondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"message": message,
	})
}

// RespondWithDomainError maps ledger errors to HTTP statuses. Lock timeouts
// answer 429 with a Retry-After hint since the condition is transient.
func RespondWithDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, xerrors.ErrInvalidRequest):
		RespondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, xerrors.ErrAccountNotFound):
		RespondWithError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, xerrors.ErrUserNotFound):
		RespondWithError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, xerrors.ErrTransactionNotFound):
		RespondWithError(c, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, xerrors.ErrInsufficientFunds):
		RespondWithError(c, http.StatusUnprocessableEntity, "Insufficient funds")
	case errors.Is(err, xerrors.ErrLockTimeout):
		c.Header("Retry-After", "1")
		RespondWithError(c, http.StatusTooManyRequests, "Account is busy, please retry")
	default:
		RespondWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}
