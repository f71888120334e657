package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"slimmers/internal/access"
	"slimmers/internal/analytics"
	"slimmers/internal/config"
	"slimmers/internal/http/middleware"
)

func newAnalyticsService(ctx *cartridge.Context) *analytics.Service {
	cfg := config.GetConfig()
	store := analytics.NewSQLStore(ctx.DB(), cfg.QRAcquisitionTag)
	engine := analytics.NewEngine(store, analytics.EngineConfig{
		Concurrency:  cfg.AnalyticsQueryConcurrency,
		TimelineDays: cfg.TimelineDays,
	})
	return analytics.NewService(access.SuperAdminGate(), engine)
}

// callerIdentity returns nil for anonymous requests.
func callerIdentity(ctx *cartridge.Context) *access.Identity {
	if user := middleware.UserFrom(ctx.Ctx); user != nil {
		return user.Identity()
	}
	return nil
}

func analyticsQuery(ctx *cartridge.Context) analytics.Query {
	return analytics.Query{
		StartDate: ctx.Query("startDate"),
		EndDate:   ctx.Query("endDate"),
		Path:      ctx.Query("path"),
		Kind:      ctx.Query("kind"),
	}
}

// AnalyticsSummaryAction returns the filtered summary and the trailing activity windows.
func AnalyticsSummaryAction(ctx *cartridge.Context) error {
	report, err := newAnalyticsService(ctx).Summary(ctx.UserContext(), callerIdentity(ctx), analyticsQuery(ctx))
	if err != nil {
		return analyticsError(ctx, "analytics_summary", err)
	}
	return ctx.JSON(report)
}

// AnalyticsScansAction returns the QR scan report.
func AnalyticsScansAction(ctx *cartridge.Context) error {
	report, err := newAnalyticsService(ctx).ScanReport(ctx.UserContext(), callerIdentity(ctx), analyticsQuery(ctx))
	if err != nil {
		return analyticsError(ctx, "analytics_scans", err)
	}
	return ctx.JSON(report)
}

// AnalyticsActivityAction returns weekly and monthly active sessions.
func AnalyticsActivityAction(ctx *cartridge.Context) error {
	activity, err := newAnalyticsService(ctx).Activity(ctx.UserContext(), callerIdentity(ctx), analyticsQuery(ctx))
	if err != nil {
		return analyticsError(ctx, "analytics_activity", err)
	}
	return ctx.JSON(activity)
}

func analyticsError(ctx *cartridge.Context, operation string, err error) error {
	var validationErr *analytics.ValidationError
	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not authenticated"})
	case errors.Is(err, access.ErrForbidden):
		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Access denied. Super admin only."})
	case errors.As(err, &validationErr):
		ctx.Logger.Debug("Rejected analytics query",
			slog.String("operation", operation),
			slog.String("reason", validationErr.Error()))
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr.Error()})
	default:
		ctx.Logger.Error("Analytics query failed",
			slog.String("operation", operation),
			slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
