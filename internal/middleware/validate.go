package middleware

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bilgisen/tweetdesk/internal/apperr"
	"github.com/bilgisen/tweetdesk/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// RequestIDKey is where the requestid middleware stores the request id
const RequestIDKey = "requestid"

// Validator is a struct that holds the validator instance
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate checks s against its struct tags. Failures come back as a
// ValidationError naming each field and the rule it broke.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("request.validate", "%v", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	sort.Strings(fields)
	return apperr.Validation("request.validate", "invalid fields: %s", strings.Join(fields, ", "))
}

// ParseBody decodes the JSON body into dst and validates it
func (v *Validator) ParseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.Validation("request.body", "invalid request body: %v", err)
	}
	return v.Validate(dst)
}

// ParseQuery decodes query parameters into dst and validates it
func (v *Validator) ParseQuery(c *fiber.Ctx, dst interface{}) error {
	if err := c.QueryParser(dst); err != nil {
		return apperr.Validation("request.query", "invalid query parameters: %v", err)
	}
	return v.Validate(dst)
}

// StatusOf is the response status an error handler error maps to
func StatusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return apperr.HTTPStatus(err)
}

// ErrorHandler renders every error returned by a handler in the response envelope.
// Messages of internal errors are not exposed.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := StatusOf(err)

	message := apperr.MessageOf(err)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		message = fe.Message
	}

	if code >= fiber.StatusInternalServerError {
		logger.Get().Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", code).
			Msg("HTTP error")
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
