package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"slimmers/internal/bmi"
	"slimmers/internal/http/middleware"
	"slimmers/internal/pkg/validate"
)

type bmiParams struct {
	Weight float64 `json:"weight" validate:"gt=0,lte=700"`
	Height float64 `json:"height" validate:"gt=0,lte=300"`
}

type bmiDeleteParams struct {
	RecordID uint `json:"recordId" validate:"required"`
}

// BMIHistoryAction lists the caller's measurements, newest first.
func BMIHistoryAction(ctx *cartridge.Context) error {
	user := middleware.UserFrom(ctx.Ctx)

	history, err := bmi.History(ctx.DB(), user.ID)
	if err != nil {
		ctx.Logger.Error("Failed to load bmi history",
			slog.Uint64("userID", uint64(user.ID)),
			slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	return ctx.JSON(fiber.Map{"history": history})
}

// BMICreateAction stores a new measurement. The BMI value is computed here.
func BMICreateAction(ctx *cartridge.Context) error {
	user := middleware.UserFrom(ctx.Ctx)

	var params bmiParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	if err := validate.Struct(params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	entry, err := bmi.Save(ctx.DB(), ctx.Logger, user.ID, params.Weight, params.Height)
	if err != nil {
		if errors.Is(err, bmi.ErrInvalidMeasurement) {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		ctx.Logger.Error("Failed to save bmi record",
			slog.Uint64("userID", uint64(user.ID)),
			slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	return ctx.Status(fiber.StatusCreated).JSON(entry)
}

func BMIDeleteAction(ctx *cartridge.Context) error {
	user := middleware.UserFrom(ctx.Ctx)

	var params bmiDeleteParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	if err := validate.Struct(params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := bmi.Delete(ctx.DB(), ctx.Logger, user.ID, params.RecordID); err != nil {
		if errors.Is(err, bmi.ErrNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Record not found"})
		}
		ctx.Logger.Error("Failed to delete bmi record",
			slog.Uint64("userID", uint64(user.ID)),
			slog.Uint64("recordID", uint64(params.RecordID)),
			slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	return ctx.JSON(fiber.Map{"success": true})
}
