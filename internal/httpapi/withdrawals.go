package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"coins-catcher/internal/pkg/lifecycle"
	"coins-catcher/internal/service"
)

func (s *Server) createWithdrawal(c *fiber.Ctx) error {
	var in service.CreateWithdrawalInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req, err := s.svc.Withdrawals.Create(c.UserContext(), SessionFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

func (s *Server) myWithdrawals(c *fiber.Ctx) error {
	reqs, err := s.svc.Withdrawals.ListMine(c.UserContext(), SessionFrom(c), lifecycle.Status(c.Query("status")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"requests": reqs})
}

func (s *Server) adminWithdrawals(c *fiber.Ctx) error {
	status := lifecycle.Status(c.Query("status", string(lifecycle.StatusPending)))
	reqs, err := s.svc.Withdrawals.ListAll(c.UserContext(), SessionFrom(c), status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"requests": reqs})
}

func (s *Server) approveWithdrawal(c *fiber.Ctx) error {
	id, err := paramUUID(c)
	if err != nil {
		return err
	}
	req, err := s.svc.Withdrawals.Approve(c.UserContext(), SessionFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(req)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) rejectWithdrawal(c *fiber.Ctx) error {
	id, err := paramUUID(c)
	if err != nil {
		return err
	}
	var body rejectRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req, err := s.svc.Withdrawals.Reject(c.UserContext(), SessionFrom(c), id, body.Reason)
	if err != nil {
		return err
	}
	return c.JSON(req)
}

func paramUUID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}
