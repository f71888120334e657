package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"slimmers/internal/config"
	"slimmers/internal/equipment"
)

// EquipmentIndexAction lists the stations, optionally filtered by ?type=.
func EquipmentIndexAction(ctx *cartridge.Context) error {
	catalog, err := equipment.Default()
	if err != nil {
		ctx.Logger.Error("Equipment catalog unavailable", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	stations := catalog.List()
	if kind := ctx.Query("type"); kind != "" {
		stations = catalog.ByType(kind)
	}
	return ctx.JSON(fiber.Map{"equipment": stations})
}

// EquipmentShowAction returns one station by QR code along with the link its code points to.
func EquipmentShowAction(ctx *cartridge.Context) error {
	catalog, err := equipment.Default()
	if err != nil {
		ctx.Logger.Error("Equipment catalog unavailable", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	station, ok := catalog.Lookup(ctx.Params("code"))
	if !ok {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Equipment not found"})
	}

	cfg := config.GetConfig()
	target, err := station.QRTarget(cfg.PublicBaseURL, cfg.QRAcquisitionTag)
	if err != nil {
		ctx.Logger.Error("Failed to build qr target",
			slog.String("code", station.QRCode),
			slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	return ctx.JSON(fiber.Map{"equipment": station, "qr_target": target})
}
