package checkout

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Address is the first wizard step. Required fields are reported but never
// block moving on to payment.
type Address struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Address1  string `json:"address1" validate:"required"`
	Address2  string `json:"address2"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	Zip       string `json:"zip" validate:"required"`
	Country   string `json:"country" validate:"required"`
}

// Gift sends the course to someone else.
type Gift struct {
	Enabled bool   `json:"enabled"`
	Email   string `json:"email" validate:"omitempty,email"`
}

// FieldErrors maps a JSON field name to a short problem description.
type FieldErrors map[string]string

func (a Address) Validate() FieldErrors {
	return fieldErrors(validate.Struct(a), addressFieldNames)
}

// Validate only checks the recipient when the gift option is on. An empty
// email is allowed while the user is still typing.
func (g Gift) Validate() FieldErrors {
	if !g.Enabled {
		return nil
	}
	return fieldErrors(validate.Struct(g), map[string]string{"Email": "email"})
}

// Normalize clears the recipient when the gift option is turned off.
func (g Gift) Normalize() Gift {
	if !g.Enabled {
		return Gift{}
	}
	g.Email = strings.TrimSpace(g.Email)
	return g
}

var addressFieldNames = map[string]string{
	"FirstName": "first_name",
	"LastName":  "last_name",
	"Phone":     "phone",
	"Email":     "email",
	"Address1":  "address1",
	"City":      "city",
	"State":     "state",
	"Zip":       "zip",
	"Country":   "country",
}

func fieldErrors(err error, names map[string]string) FieldErrors {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"_": err.Error()}
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		name, ok := names[fe.Field()]
		if !ok {
			name = strings.ToLower(fe.Field())
		}
		switch fe.Tag() {
		case "required":
			out[name] = "required"
		case "email":
			out[name] = "invalid email"
		default:
			out[name] = "invalid"
		}
	}
	return out
}
