package events

import (
	"fmt"
	"time"
)

// Kind discriminates the two families of tracked actions.
type Kind string

const (
	KindPageVisit Kind = "page_visit"
	KindQRScan    Kind = "qr_scan"
)

// ParseKind validates a raw kind value. An empty string means "any kind".
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case "":
		return "", nil
	case KindPageVisit, KindQRScan:
		return Kind(raw), nil
	default:
		return "", fmt.Errorf("unknown event kind %q", raw)
	}
}

// Event is a single tracked action. Rows are append-only; the analytics
// engine only ever reads them.
type Event struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind           Kind      `gorm:"size:16;not null;index:idx_kind_occurred" json:"kind"`
	UserID         *uint     `gorm:"index" json:"user_id"`
	Subject        *string   `gorm:"index" json:"subject"`
	ExerciseName   *string   `json:"exercise_name"`
	EquipmentType  *string   `gorm:"index" json:"equipment_type"`
	AcquisitionTag *string   `gorm:"index" json:"acquisition_tag"`
	SessionID      string    `gorm:"size:64;not null;index" json:"session_id"`
	UserAgent      *string   `json:"-"`
	IPAddress      *string   `json:"-"`
	OccurredAt     time.Time `gorm:"not null;index:idx_kind_occurred" json:"occurred_at"`
}

// nullable maps empty strings to NULL columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
