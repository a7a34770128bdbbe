package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"autokool/internal/notify"
)

type registrationRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

// register takes the website sign-up form and tells the admin chat. A failed
// notification does not fail the registration.
func (s *Server) register(c *fiber.Ctx) error {
	req, err := BindAndValidate[registrationRequest](c)
	if err != nil {
		return nil
	}

	var res notify.Result
	if s.deps.Notifier != nil {
		res = s.deps.Notifier.Notify(c.UserContext(), notify.WebsiteRegistration{
			Name:  strings.TrimSpace(req.Name),
			Email: strings.TrimSpace(req.Email),
			Phone: strings.TrimSpace(req.Phone),
		})
	}
	return SuccessResponseJSON(c, fiber.StatusCreated, "Registration received", res)
}
