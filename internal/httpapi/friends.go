package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"coins-catcher/internal/pkg/lifecycle"
)

type friendRequest struct {
	To string `json:"to"`
}

func (s *Server) sendFriendRequest(c *fiber.Ctx) error {
	var body friendRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req, err := s.svc.Friends.Send(c.UserContext(), SessionFrom(c), body.To)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

type respondRequest struct {
	Accept bool `json:"accept"`
}

func (s *Server) respondFriendRequest(c *fiber.Ctx) error {
	id, err := paramUUID(c)
	if err != nil {
		return err
	}
	var body respondRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req, err := s.svc.Friends.Respond(c.UserContext(), SessionFrom(c), id, body.Accept)
	if err != nil {
		return err
	}
	return c.JSON(req)
}

func (s *Server) incomingFriendRequests(c *fiber.Ctx) error {
	reqs, err := s.svc.Friends.ListIncoming(c.UserContext(), SessionFrom(c), lifecycle.Status(c.Query("status")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"requests": reqs})
}
