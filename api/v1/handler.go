package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"slimmers/internal/config"
	"slimmers/internal/equipment"
	"slimmers/internal/events"
	"slimmers/internal/http/middleware"
	"slimmers/internal/pkg/validate"
	"slimmers/internal/visitors"
)

const errInvalidRequest = "Invalid request"

type TrackVisitParams struct {
	PagePath  string `json:"pagePath" validate:"notblank,max=2048"`
	UTMSource string `json:"utmSource" validate:"max=255"`
}

type TrackScanParams struct {
	ExercisePath  string `json:"exercisePath" validate:"notblank,max=2048"`
	ExerciseName  string `json:"exerciseName" validate:"max=255"`
	EquipmentType string `json:"equipmentType" validate:"max=255"`
}

// TrackVisitAction records one page visit under the visitor's browsing session.
func TrackVisitAction(ctx *cartridge.Context) error {
	var params TrackVisitParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errInvalidRequest})
	}
	if err := validate.Struct(params); err != nil {
		ctx.Logger.Debug("Rejected visit", slog.String("reason", err.Error()))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	cfg := config.GetConfig()
	policy := visitors.VisitPolicy(cfg.VisitSessionTimeoutSeconds, cfg.IsProduction())

	return record(ctx, "track_visit", events.RecordInput{
		Kind:           events.KindPageVisit,
		Subject:        strings.TrimSpace(params.PagePath),
		AcquisitionTag: strings.TrimSpace(params.UTMSource),
		SessionID:      policy.Touch(ctx.Ctx),
	})
}

// TrackScanAction records one QR station scan. Missing exercise details are
// derived from the exercise path.
func TrackScanAction(ctx *cartridge.Context) error {
	var params TrackScanParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errInvalidRequest})
	}
	if err := validate.Struct(params); err != nil {
		ctx.Logger.Debug("Rejected scan", slog.String("reason", err.Error()))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	exercisePath := strings.TrimSpace(params.ExercisePath)
	derivedName, derivedType := describeExercisePath(exercisePath)
	if params.ExerciseName == "" {
		params.ExerciseName = derivedName
	}
	if params.EquipmentType == "" {
		params.EquipmentType = derivedType
	}

	cfg := config.GetConfig()
	policy := visitors.ScanPolicy(cfg.ScanSessionTimeoutSeconds, cfg.IsProduction())

	return record(ctx, "track_scan", events.RecordInput{
		Kind:           events.KindQRScan,
		Subject:        exercisePath,
		ExerciseName:   strings.TrimSpace(params.ExerciseName),
		EquipmentType:  strings.TrimSpace(params.EquipmentType),
		AcquisitionTag: cfg.QRAcquisitionTag,
		SessionID:      policy.Touch(ctx.Ctx),
	})
}

func record(ctx *cartridge.Context, operation string, input events.RecordInput) error {
	if user := middleware.UserFrom(ctx.Ctx); user != nil {
		input.UserID = &user.ID
	}
	input.UserAgent = ctx.Get("User-Agent")
	input.IPAddress = clientIP(ctx.Ctx, config.GetConfig().TrustedProxyRanges())

	event, err := events.Record(ctx.DB(), ctx.Logger, input)
	if err != nil {
		if errors.Is(err, events.ErrInvalidEvent) {
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		ctx.Logger.Error("Failed to record event",
			slog.String("operation", operation),
			slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record event"})
	}

	return ctx.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"visitId": event.ID,
	})
}

// describeExercisePath turns "/exercises/<equipment>/<exercise>" into a
// display name and an equipment type. When the path stops at the equipment,
// the catalog's station name stands in for the exercise name.
func describeExercisePath(exercisePath string) (name, equipmentType string) {
	parts := strings.FieldsFunc(exercisePath, func(r rune) bool { return r == '/' })
	if len(parts) < 2 || parts[0] != "exercises" {
		return "", ""
	}

	caser := cases.Title(language.English)
	equipmentType = caser.String(strings.ReplaceAll(parts[1], "-", " "))
	if len(parts) >= 3 {
		return caser.String(strings.ReplaceAll(parts[2], "-", " ")), equipmentType
	}

	if catalog, err := equipment.Default(); err == nil {
		if station, ok := catalog.FindByExercisePath(exercisePath); ok {
			name = station.Name
		}
	}
	return name, equipmentType
}
