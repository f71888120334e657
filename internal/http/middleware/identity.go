package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"slimmers/internal/users"
)

const currentUserKey = "current_user"

// CurrentUser loads the logged-in user, if any, into the request locals.
// Requests without a session, or with a session for a deleted user, pass
// through anonymously.
func CurrentUser(sessions *cartridge.SessionManager, db *gorm.DB, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := sessions.GetUserID(c)
		if !ok {
			return c.Next()
		}

		user, err := users.FindByID(db, userID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Error("Failed to load session user",
					slog.Uint64("userID", uint64(userID)),
					slog.Any("error", err))
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Internal server error",
				})
			}
			logger.Debug("Session refers to a missing user", slog.Uint64("userID", uint64(userID)))
			return c.Next()
		}

		c.Locals(currentUserKey, user)
		return c.Next()
	}
}

// RequireUser rejects anonymous requests with 401. It must run after CurrentUser.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserFrom(c) == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "User not authenticated",
			})
		}
		return c.Next()
	}
}

// UserFrom returns the user stored by CurrentUser, or nil.
func UserFrom(c *fiber.Ctx) *users.User {
	user, _ := c.Locals(currentUserKey).(*users.User)
	return user
}
