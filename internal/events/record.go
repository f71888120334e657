package events

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// ErrInvalidEvent is returned when an event cannot be recorded as given.
var ErrInvalidEvent = errors.New("invalid event")

// RecordInput carries everything the ingestion endpoints know about an action.
type RecordInput struct {
	Kind           Kind
	UserID         *uint
	Subject        string
	ExerciseName   string
	EquipmentType  string
	AcquisitionTag string
	SessionID      string
	UserAgent      string
	IPAddress      string
}

// Record persists exactly one event. The timestamp is assigned here, never
// taken from the client. Calling it twice records two events.
func Record(db *gorm.DB, logger *slog.Logger, input RecordInput) (*Event, error) {
	if input.Kind != KindPageVisit && input.Kind != KindQRScan {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, input.Kind)
	}
	if strings.TrimSpace(input.SessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidEvent)
	}
	if strings.TrimSpace(input.Subject) == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidEvent)
	}

	event := &Event{
		Kind:           input.Kind,
		UserID:         input.UserID,
		Subject:        nullable(input.Subject),
		ExerciseName:   nullable(input.ExerciseName),
		EquipmentType:  nullable(input.EquipmentType),
		AcquisitionTag: nullable(input.AcquisitionTag),
		SessionID:      input.SessionID,
		UserAgent:      nullable(input.UserAgent),
		IPAddress:      nullable(input.IPAddress),
		OccurredAt:     time.Now().UTC(),
	}

	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(event).Error
	})
	if err != nil {
		logger.Error("Failed to record event",
			slog.String("kind", string(input.Kind)),
			slog.Any("error", err))
		return nil, fmt.Errorf("failed to record event: %w", err)
	}

	logger.Debug("Recorded event",
		slog.String("kind", string(event.Kind)),
		slog.Uint64("id", uint64(event.ID)))
	return event, nil
}

// DeleteOlderThan removes events that occurred before cutoff, at most
// batchSize rows per statement. It returns the number of rows removed.
func DeleteOlderThan(db *gorm.DB, logger *slog.Logger, cutoff time.Time, batchSize int) (int64, error) {
	var total int64
	for {
		var affected int64
		err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
			res := tx.Exec(`DELETE FROM events WHERE id IN (
				SELECT id FROM events WHERE occurred_at < ? ORDER BY id LIMIT ?
			)`, cutoff.UTC(), batchSize)
			affected = res.RowsAffected
			return res.Error
		})
		if err != nil {
			return total, fmt.Errorf("failed to delete old events: %w", err)
		}
		total += affected
		if affected < int64(batchSize) {
			return total, nil
		}
	}
}
