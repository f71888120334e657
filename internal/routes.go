package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "slimmers/api/v1"
	"slimmers/internal/config"
	"slimmers/internal/http"
	"slimmers/internal/http/middleware"
)

// publicCORSConfig is shared by the tracking endpoints, which the gym's
// pages call from wherever they are hosted.
var publicCORSConfig = &cors.Config{
	AllowOrigins:     "*",
	AllowMethods:     "POST,OPTIONS",
	AllowHeaders:     "Origin, Content-Type, Accept, User-Agent",
	AllowCredentials: false,
}

// NewSessionManager builds the login session manager from the config.
func NewSessionManager(cfg *config.Config) *cartridge.SessionManager {
	return cartridge.NewSessionManager(cartridge.SessionConfig{
		CookieName: cfg.AppName + "_session",
		Secret:     cfg.GetSessionSecret(),
		TTL:        time.Duration(cfg.GetLoginSessionTimeout()) * time.Second,
		Secure:     cfg.IsProduction(),
		LoginPath:  "/login",
	})
}

// SetupSession configures session management on the server.
func SetupSession(srv *cartridge.Server) {
	srv.SetSession(NewSessionManager(config.GetConfig()))
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	SetupSession(srv)

	cfg := config.GetConfig()
	db := srv.GetDBManager().GetConnection()
	logger := srv.GetLogger()
	currentUser := middleware.CurrentUser(srv.Session(), db, logger)

	// Rate limiting would interfere with development and tests.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 120/min per IP covers a member hopping between stations.
	trackingRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(120),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	trackingConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{trackingRateLimiter, currentUser},
		CORSConfig:       publicCORSConfig,
	}

	// JSON endpoints answer 401 themselves instead of redirecting to a login page.
	apiConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{currentUser},
	}

	authConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{authRateLimiter, currentUser},
	}

	memberConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{currentUser, middleware.RequireUser()},
	}

	catalogConfig := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
	}

	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === TRACKING ===
	srv.Post("/api/track-visit", v1.TrackVisitAction, trackingConfig)
	srv.Options("/api/track-visit", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, trackingConfig)
	srv.Post("/api/track-scan", v1.TrackScanAction, trackingConfig)
	srv.Options("/api/track-scan", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, trackingConfig)

	// === AUTH ===
	srv.Post("/api/auth/register", http.RegisterAction, authConfig)
	srv.Post("/api/auth/login", http.LoginAction, authConfig)
	srv.Post("/api/auth/logout", http.LogoutAction, apiConfig)
	srv.Get("/api/auth/me", http.MeAction, apiConfig)

	// === ANALYTICS (super admin) ===
	srv.Get("/api/analytics", http.AnalyticsSummaryAction, apiConfig)
	srv.Get("/api/analytics/scans", http.AnalyticsScansAction, apiConfig)
	srv.Get("/api/analytics/activity", http.AnalyticsActivityAction, apiConfig)

	// === BMI ===
	srv.Get("/api/bmi-history", http.BMIHistoryAction, memberConfig)
	srv.Post("/api/bmi-history", http.BMICreateAction, memberConfig)
	srv.Delete("/api/bmi-history", http.BMIDeleteAction, memberConfig)

	// === EQUIPMENT ===
	srv.Get("/api/equipment", http.EquipmentIndexAction, catalogConfig)
	srv.Get("/api/equipment/:code", http.EquipmentShowAction, catalogConfig)
}
