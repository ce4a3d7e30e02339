package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"coins-catcher/internal/service"
)

type registerRequest struct {
	DisplayName  string `json:"display_name"`
	Email        string `json:"email"`
	ReferralCode string `json:"referral_code"`
}

// register opens the account named by the token subject.
func (s *Server) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	a, err := s.svc.Accounts.Register(c.UserContext(), service.RegisterInput{
		AccountID:    SessionFrom(c).AccountID,
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (s *Server) me(c *fiber.Ctx) error {
	a, err := s.svc.Accounts.Get(c.UserContext(), SessionFrom(c).AccountID)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (s *Server) updateProfile(c *fiber.Ctx) error {
	var u service.ProfileUpdate
	if err := c.BodyParser(&u); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	a, err := s.svc.Accounts.UpdateProfile(c.UserContext(), SessionFrom(c), u)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (s *Server) transactions(c *fiber.Ctx) error {
	txs, err := s.svc.Accounts.Transactions(c.UserContext(), SessionFrom(c).AccountID, queryLimit(c, 50, 500))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"transactions": txs})
}

func (s *Server) leaderboard(c *fiber.Ctx) error {
	limit := queryLimit(c, 10, 100)
	by := c.Query("by", "coins")

	var (
		entries any
		err     error
	)
	switch by {
	case "coins":
		entries, err = s.svc.Ranking.TopByCoins(c.UserContext(), limit)
	case "today":
		entries, err = s.svc.Ranking.TopEarnersToday(c.UserContext(), limit)
	default:
		return fiber.NewError(fiber.StatusBadRequest, "by must be coins or today")
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"by": by, "entries": entries})
}
