package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"coins-catcher/internal/model"
)

func (s *Server) rewardStatus(c *fiber.Ctx) error {
	st, err := s.svc.Rewards.Status(c.UserContext(), SessionFrom(c).AccountID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"rewards": st})
}

func (s *Server) claim(c *fiber.Ctx) error {
	res, err := s.svc.Rewards.Claim(c.UserContext(), SessionFrom(c), model.RewardType(c.Params("type")))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

type gameClaimRequest struct {
	Points int64 `json:"points"`
}

func (s *Server) claimGame(c *fiber.Ctx) error {
	var req gameClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	res, err := s.svc.Rewards.ClaimGame(c.UserContext(), SessionFrom(c), req.Points)
	if err != nil {
		return err
	}
	return c.JSON(res)
}
