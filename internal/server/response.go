package server

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"autokool/internal/checkout"
	"autokool/internal/storage"
)

var validate = newValidator()

// newValidator reports fields under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Response is the envelope of every successful API answer.
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Errors   any    `json:"errors,omitempty"`
}

func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{
		Status:  status,
		Message: message,
		Data:    data,
	})
}

// ErrorResponseJSON writes a problem document. A string detail becomes
// Detail, anything else goes to Errors.
func ErrorResponseJSON(c *fiber.Ctx, status int, title string, detail any) error {
	pd := ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
	}
	switch d := detail.(type) {
	case nil:
	case string:
		pd.Detail = d
	case error:
		pd.Detail = d.Error()
	default:
		pd.Errors = d
	}
	pd.Instance = c.OriginalURL()

	c.Status(status)
	if err := c.JSON(pd); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return nil
}

// ErrorToStatusCode maps checkout and storage errors to HTTP statuses.
func ErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, checkout.ErrSessionNotFound),
		errors.Is(err, storage.ErrOrderNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, checkout.ErrSessionClosed):
		return fiber.StatusGone
	case errors.Is(err, checkout.ErrInvalidTransmission),
		errors.Is(err, checkout.ErrInvalidMethod),
		errors.Is(err, checkout.ErrMissingMethodRef):
		return fiber.StatusBadRequest
	case errors.Is(err, checkout.ErrMethodNotChargeable):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrFirstStep),
		errors.Is(err, checkout.ErrLastStep),
		errors.Is(err, checkout.ErrPaymentRequired),
		errors.Is(err, checkout.ErrAlreadyPaid),
		errors.Is(err, checkout.ErrNotOnPayment),
		errors.Is(err, checkout.ErrNotReviewable),
		errors.Is(err, checkout.ErrPaymentInProgress),
		errors.Is(err, checkout.ErrAttemptFinished):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// BindAndValidate parses the body into T and runs the validator. On failure
// the problem response is already written and the caller returns nil.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		_ = ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
		return nil, err
	}
	if err := validate.Struct(input); err != nil {
		_ = ErrorResponseJSON(c, fiber.StatusBadRequest, "Validation failed", validationErrors(err))
		return nil, err
	}
	return &input, nil
}

// validationErrors turns validator output into field -> tag pairs.
func validationErrors(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
