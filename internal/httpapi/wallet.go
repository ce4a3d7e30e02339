package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"coins-catcher/internal/model"
	"coins-catcher/internal/pricing"
)

type convertRequest struct {
	Coins int64 `json:"coins"`
}

func (s *Server) convert(c *fiber.Ctx) error {
	var req convertRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	res, err := s.svc.Wallet.Convert(c.UserContext(), SessionFrom(c), req.Coins)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// quote previews a conversion without touching the ledger.
func (s *Server) quote(c *fiber.Ctx) error {
	coins, err := strconv.ParseInt(c.Query("coins"), 10, 64)
	if err != nil || coins < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "coins must be a non-negative integer")
	}
	pkr, err := s.svc.Wallet.Quote(c.UserContext(), coins)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"coins": coins, "pkr": pkr})
}

func (s *Server) catalog(c *fiber.Ctx) error {
	kind := model.RequestKind(c.Params("kind"))
	pkgs, err := s.svc.Wallet.PriceCatalog(c.UserContext(), kind)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"kind": kind, "packages": pkgs})
}

type estimateRequest struct {
	WithdrawalType pricing.WithdrawalType `json:"withdrawal_type"`
}

func (s *Server) estimate(c *fiber.Ctx) error {
	var req estimateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	est, err := s.svc.Wallet.Estimate(c.UserContext(), SessionFrom(c), req.WithdrawalType)
	if err != nil {
		return err
	}
	return c.JSON(est)
}

func (s *Server) setWalletConfig(c *fiber.Ctx) error {
	var cfg model.WalletConfig
	if err := c.BodyParser(&cfg); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	saved, err := s.svc.Wallet.SetConfig(c.UserContext(), SessionFrom(c), &cfg)
	if err != nil {
		return err
	}
	return c.JSON(saved)
}
