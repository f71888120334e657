package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"slimmers/internal/config"
	"slimmers/internal/http/middleware"
	"slimmers/internal/pkg/validate"
	"slimmers/internal/users"
)

type registerParams struct {
	Name     string `json:"name" validate:"notblank,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginParams struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterAction creates an account and logs it in. The configured admin
// email registers as super admin.
func RegisterAction(ctx *cartridge.Context) error {
	var params registerParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	if err := validate.Struct(params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	role := users.RegistrationRole(params.Email, config.GetConfig().AdminEmail)
	user, err := users.CreateUser(ctx.DB(), params.Name, params.Email, params.Password, role)
	if err != nil {
		if errors.Is(err, users.ErrUserExists) {
			return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email is already registered"})
		}
		ctx.Logger.Error("Failed to register user", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	if err := ctx.Session.SetSession(ctx.Ctx, user.ID); err != nil {
		ctx.Logger.Error("Failed to create session", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	ctx.Logger.Info("User registered",
		slog.Uint64("userID", uint64(user.ID)),
		slog.String("role", user.Role))
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
}

// LoginAction verifies credentials and starts a session.
func LoginAction(ctx *cartridge.Context) error {
	var params loginParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	if err := validate.Struct(params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := users.Authenticate(ctx.DB(), params.Email, params.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			ctx.Logger.Debug("Rejected login", slog.String("email", params.Email))
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
		}
		ctx.Logger.Error("Failed to authenticate user", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	if err := ctx.Session.SetSession(ctx.Ctx, user.ID); err != nil {
		ctx.Logger.Error("Failed to create session", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	return ctx.JSON(fiber.Map{"user": user})
}

func LogoutAction(ctx *cartridge.Context) error {
	ctx.Session.ClearSession(ctx.Ctx)
	return ctx.SendStatus(fiber.StatusNoContent)
}

// MeAction returns the logged-in user.
func MeAction(ctx *cartridge.Context) error {
	user := middleware.UserFrom(ctx.Ctx)
	if user == nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not authenticated"})
	}
	return ctx.JSON(fiber.Map{"user": user})
}
