package server

import (
	"github.com/gofiber/fiber/v2"

	"autokool/internal/checkout"
	"autokool/internal/paylink"
)

// redirectToPaymentLink records the click and sends the browser to the
// hosted Stripe page. ?button=&location=&text= describe the control.
func (s *Server) redirectToPaymentLink(c *fiber.Ctx) error {
	category := checkout.ParseCategory(c.Params("category"))
	url := s.deps.Dispatcher.Dispatch(c.UserContext(), category, paylink.Click{
		ButtonName: c.Query("button"),
		Location:   c.Query("location"),
		Text:       c.Query("text"),
	})
	return c.Redirect(url, fiber.StatusFound)
}
