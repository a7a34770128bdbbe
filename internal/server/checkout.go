package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"autokool/internal/checkout"
	"autokool/internal/storage"
)

type transmissionRequest struct {
	Transmission string `json:"transmission" validate:"required"`
}

type paymentMethodRequest struct {
	Method string `json:"method" validate:"required"`
}

type payRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

type orderResponse struct {
	OrderID int64          `json:"order_id,omitempty"`
	Order   checkout.Order `json:"order"`
}

// createSession opens a wizard for ?category=...&instructor=... Unknown
// categories still open a session; prices fall back to category A.
func (s *Server) createSession(c *fiber.Ctx) error {
	category := checkout.ParseCategory(c.Query("category"))
	sess := s.deps.Registry.Create(category, c.Query("instructor"))
	return SuccessResponseJSON(c, fiber.StatusCreated, "Checkout session created", sess.View())
}

func (s *Server) session(c *fiber.Ctx) (*checkout.Session, error) {
	return s.deps.Registry.Get(c.Params("id"))
}

func (s *Server) getSession(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	return SuccessResponseJSON(c, fiber.StatusOK, "Checkout session", sess.View())
}

// deleteSession is the page unmount: pending timers and charges stop.
func (s *Server) deleteSession(c *fiber.Ctx) error {
	if err := s.deps.Registry.Remove(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) nextStep(c *fiber.Ctx) error {
	return s.step(c, (*checkout.Wizard).Next)
}

func (s *Server) previousStep(c *fiber.Ctx) error {
	return s.step(c, (*checkout.Wizard).Back)
}

func (s *Server) step(c *fiber.Ctx, move func(*checkout.Wizard) error) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	if err := move(sess.Wizard()); err != nil {
		return err
	}
	return SuccessResponseJSON(c, fiber.StatusOK, "Step changed", sess.View())
}

func (s *Server) setTransmission(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	req, err := BindAndValidate[transmissionRequest](c)
	if err != nil {
		return nil
	}

	t, err := checkout.ParseTransmission(req.Transmission)
	if err != nil {
		return err
	}
	if err := sess.Wizard().SetTransmission(t); err != nil {
		return err
	}
	return SuccessResponseJSON(c, fiber.StatusOK, "Transmission updated", sess.View())
}

// setAddress always stores the form; field errors are reported in the view
// and never block the wizard.
func (s *Server) setAddress(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var addr checkout.Address
	if err := c.BodyParser(&addr); err != nil {
		return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
	}
	if _, err := sess.SetAddress(addr); err != nil {
		return err
	}
	return SuccessResponseJSON(c, fiber.StatusOK, "Address updated", sess.View())
}

func (s *Server) setGift(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var gift checkout.Gift
	if err := c.BodyParser(&gift); err != nil {
		return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
	}
	if _, err := sess.SetGift(gift); err != nil {
		return err
	}
	return SuccessResponseJSON(c, fiber.StatusOK, "Gift updated", sess.View())
}

// setPaymentMethod switches the payment tab, which starts a fresh attempt.
func (s *Server) setPaymentMethod(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	req, err := BindAndValidate[paymentMethodRequest](c)
	if err != nil {
		return nil
	}

	m, err := checkout.ParsePaymentMethod(req.Method)
	if err != nil {
		return err
	}
	if err := sess.SelectMethod(m); err != nil {
		return err
	}
	return SuccessResponseJSON(c, fiber.StatusOK, "Payment method selected", sess.View())
}

// pay starts the charge and answers 202; clients poll the session for the
// result and the automatic move to review.
func (s *Server) pay(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req payRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
		}
	}

	state, err := sess.Pay(req.PaymentMethodID)
	if err != nil {
		return err
	}
	return SuccessResponseJSON(c, fiber.StatusAccepted, "Payment processing", state)
}

func (s *Server) placeOrder(c *fiber.Ctx) error {
	id := c.Params("id")
	sess, err := s.deps.Registry.Get(id)
	if err != nil {
		return err
	}

	var row storage.Order
	var orderID int64
	order, err := sess.PlaceOrder(func(placed checkout.Order) error {
		if s.deps.Orders == nil {
			return nil
		}
		row = storage.OrderFromCheckout(placed)
		saved, err := s.deps.Orders.SaveOrder(c.UserContext(), row)
		if err != nil {
			s.logger.Error("Paid order not saved",
				zap.String("session_id", placed.SessionID),
				zap.String("payment_id", placed.PaymentID),
				zap.Error(err))
			return err
		}
		orderID = saved
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.deps.Registry.Remove(id); err != nil && !errors.Is(err, checkout.ErrSessionNotFound) {
		return err
	}

	log := s.logger.With(
		zap.String("session_id", order.SessionID),
		zap.String("payment_id", order.PaymentID))

	resp := orderResponse{OrderID: orderID, Order: order}
	if s.deps.Orders == nil {
		log.Info("Order placed")
		return SuccessResponseJSON(c, fiber.StatusCreated, "Order placed", resp)
	}
	row.ID = orderID
	log.Info("Order placed", zap.Int64("order_id", orderID))

	if s.deps.Announcer != nil {
		if err := s.deps.Announcer.AnnounceOrder(c.UserContext(), row); err != nil {
			log.Warn("Order announcement failed", zap.Error(err))
		}
	}
	return SuccessResponseJSON(c, fiber.StatusCreated, "Order placed", resp)
}
