package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/mapofwonders/auth-service/internal/auth/dto"
	"github.com/mapofwonders/auth-service/internal/auth/service"
	autherror "github.com/mapofwonders/auth-service/internal/errors"
	"github.com/mapofwonders/auth-service/pkg/constant"
	"go.uber.org/zap"
)

const (
	msgInvalidBody        = "Invalid request body"
	msgInvalidCredentials = "Invalid email or password"
	msgEmailInUse         = "User with this email already exists"
	msgTooManyAttempts    = "Too many login attempts. Please try again in %d minutes."
	msgInternal           = "Internal server error"
)

type AuthHandler struct {
	userService   *service.UserService
	secureCookies bool
	log           *zap.Logger
}

// NewAuthHandler builds the auth endpoints. secureCookies marks session
// cookies Secure and should be set in production.
func NewAuthHandler(userService *service.UserService, secureCookies bool, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{userService: userService, secureCookies: secureCookies, log: log}
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	noStore(c)

	var input dto.SignupInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgInvalidBody})
	}

	input.IPAddress = clientIP(c)
	input.UserAgent = string(c.Request().Header.UserAgent())

	result, err := h.userService.Signup(c.UserContext(), input)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(dto.AuthResponse{
		Success: true,
		Token:   result.Token,
		User:    result.User,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	noStore(c)

	var input dto.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgInvalidBody})
	}

	input.IPAddress = clientIP(c)
	input.UserAgent = string(c.Request().Header.UserAgent())

	result, err := h.userService.Login(c.UserContext(), input)
	if err != nil {
		return h.writeError(c, err)
	}

	maxAge := int(result.TTL.Seconds())
	c.Cookie(&fiber.Cookie{
		Name:     constant.AuthTokenCookie,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   h.secureCookies,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	// Readable by scripts so the frontend can tell a session exists.
	c.Cookie(&fiber.Cookie{
		Name:     constant.AuthStatusCookie,
		Value:    "true",
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteStrictMode,
	})

	return c.Status(fiber.StatusOK).JSON(dto.AuthResponse{
		Success: true,
		Token:   result.Token,
		User:    result.User,
	})
}

func (h *AuthHandler) writeError(c *fiber.Ctx, err error) error {
	var validation *autherror.ValidationError
	var tooMany *autherror.TooManyAttemptsError

	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validation.Message})
	case errors.Is(err, autherror.ErrEmailAlreadyInUse):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": msgEmailInUse})
	case errors.Is(err, autherror.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msgInvalidCredentials})
	case errors.As(err, &tooMany):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": fmt.Sprintf(msgTooManyAttempts, tooMany.Minutes()),
		})
	default:
		h.log.Error("request failed",
			zap.String("path", c.Path()),
			zap.Any("request_id", c.Locals("requestid")),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msgInternal})
	}
}

// noStore marks the response as uncacheable. Applied before any outcome is
// known so error responses carry it too.
func noStore(c *fiber.Ctx) {
	c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate, proxy-revalidate")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "0")
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
}

// clientIP prefers the first X-Forwarded-For entry, then the peer address.
// The result outlives the request (limiter keys, activity rows), so it is
// copied out of the request buffer.
func clientIP(c *fiber.Ctx) string {
	if forwarded := c.Get(fiber.HeaderXForwardedFor); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return utils.CopyString(first)
		}
	}
	if ip := c.IP(); ip != "" {
		return utils.CopyString(ip)
	}
	return constant.UnknownClientIP
}
