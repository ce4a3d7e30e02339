package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"coins-catcher/internal/pkg/lifecycle"
	"coins-catcher/internal/service"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error       string `json:"error"`
	Code        string `json:"code"`
	MsRemaining int64  `json:"ms_remaining,omitempty"`
}

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// errorMappings is checked in order with errors.Is.
var errorMappings = []errorMapping{
	{service.ErrIneligible, fiber.StatusConflict, "ineligible", "This reward is not available yet"},
	{service.ErrAccountBlocked, fiber.StatusForbidden, "account_blocked", "Your account is blocked"},
	{service.ErrInsufficientBalance, fiber.StatusUnprocessableEntity, "insufficient_balance", "Insufficient balance"},
	{service.ErrMissingProfile, fiber.StatusUnprocessableEntity, "missing_profile", "Add your payment or game details to your profile first"},
	{service.ErrPermission, fiber.StatusForbidden, "permission_denied", "You are not allowed to do that"},
	{service.ErrPackageNotFound, fiber.StatusNotFound, "package_not_found", "Package not found"},
	{service.ErrUnknownReward, fiber.StatusNotFound, "unknown_reward", "Unknown reward"},
	{service.ErrNotFound, fiber.StatusNotFound, "not_found", "Not found"},
	{service.ErrExternalService, fiber.StatusBadGateway, "external_service", "Pricing is unavailable right now, try again later"},
	{service.ErrInvalidAmount, fiber.StatusBadRequest, "invalid_amount", ""},
	{service.ErrInvalidInput, fiber.StatusBadRequest, "invalid_input", ""},
	{service.ErrConversionUnavailable, fiber.StatusServiceUnavailable, "conversion_unavailable", "Conversion is temporarily unavailable"},
	{service.ErrRequestNotPending, fiber.StatusConflict, "not_pending", "Request was already resolved"},
	{service.ErrReasonRequired, fiber.StatusBadRequest, "reason_required", "A reason is required"},
	{lifecycle.ErrInvalidOutcome, fiber.StatusBadRequest, "invalid_outcome", ""},
	{service.ErrDuplicateRequest, fiber.StatusConflict, "duplicate_request", "A pending request already exists"},
	{service.ErrSelfRequest, fiber.StatusBadRequest, "self_request", "You cannot send a request to yourself"},
	{service.ErrAlreadyRegistered, fiber.StatusConflict, "already_registered", "Account already registered"},
}

// errorHandler turns service errors into status codes and user-facing
// messages. Anything unrecognised is a 500 with no detail.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Error: fe.Message, Code: "http"})
	}

	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		body := errorBody{Error: m.message, Code: m.code}
		if body.Error == "" {
			body.Error = err.Error()
		}
		var inel *service.IneligibleError
		if errors.As(err, &inel) {
			body.MsRemaining = inel.Remaining.Milliseconds()
		}
		return c.Status(m.status).JSON(body)
	}

	log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("Request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(errorBody{Error: "Something went wrong", Code: "internal"})
}
