package httpapi

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"coins-catcher/internal/model"
	"coins-catcher/internal/repository"
)

type bonusRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (s *Server) giveBonus(c *fiber.Ctx) error {
	var body bonusRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	a, err := s.svc.Admin.GiveBonus(c.UserContext(), SessionFrom(c), c.Params("id"), body.Amount, body.Reason)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

type flagRequest struct {
	Value bool `json:"value"`
}

func (s *Server) setBlocked(c *fiber.Ctx) error {
	return s.setFlag(c, s.svc.Admin.SetBlocked)
}

func (s *Server) setLogoutDisabled(c *fiber.Ctx) error {
	return s.setFlag(c, s.svc.Admin.SetLogoutDisabled)
}

func (s *Server) setAdmin(c *fiber.Ctx) error {
	return s.setFlag(c, s.svc.Admin.SetAdmin)
}

type flagSetter func(ctx context.Context, sess model.Session, accountID string, value bool) (*model.Account, error)

func (s *Server) setFlag(c *fiber.Ctx, set flagSetter) error {
	var body flagRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	a, err := set(c.UserContext(), SessionFrom(c), c.Params("id"), body.Value)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (s *Server) adminAccounts(c *fiber.Ctx) error {
	offset, _ := strconv.Atoi(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}
	accounts, err := s.svc.Admin.ListAccounts(c.UserContext(), SessionFrom(c), repository.AccountFilter{
		BlockedOnly: c.QueryBool("blocked"),
		Limit:       queryLimit(c, 50, 500),
		Offset:      offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"accounts": accounts})
}

func (s *Server) reconcile(c *fiber.Ctx) error {
	r, err := s.svc.Admin.Reconcile(c.UserContext(), SessionFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(r)
}
