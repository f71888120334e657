// Package bmi computes body mass index values and keeps each member's history.
package bmi

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Categories returned by Category.
const (
	CategoryUnderweight = "Underweight"
	CategoryNormal      = "Normal"
	CategoryOverweight  = "Overweight"
	CategoryObese       = "Obese"
)

var (
	ErrInvalidMeasurement = errors.New("weight and height must be positive")
	ErrNotFound           = errors.New("bmi record not found")
)

// Record is one saved measurement.
type Record struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	WeightKg   float64   `gorm:"not null" json:"weight"`
	HeightCm   float64   `gorm:"not null" json:"height"`
	Value      float64   `gorm:"not null" json:"bmi_value"`
	RecordedAt time.Time `gorm:"index;not null" json:"recorded_at"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

func (Record) TableName() string { return "bmi_records" }

// Entry is a record as shown in the history, with its category.
type Entry struct {
	Record
	Category string `json:"category"`
}

// Calculate returns weight / height² with height in centimetres, rounded to two decimals.
func Calculate(weightKg, heightCm float64) (float64, error) {
	if weightKg <= 0 || heightCm <= 0 || math.IsNaN(weightKg) || math.IsNaN(heightCm) {
		return 0, ErrInvalidMeasurement
	}
	meters := heightCm / 100
	return round2(weightKg / (meters * meters)), nil
}

// Category classifies a BMI value. The bands are contiguous.
func Category(value float64) string {
	switch {
	case value < 18.5:
		return CategoryUnderweight
	case value < 25:
		return CategoryNormal
	case value < 30:
		return CategoryOverweight
	default:
		return CategoryObese
	}
}

// History returns the user's records, newest first.
func History(db *gorm.DB, userID uint) ([]Entry, error) {
	var records []Record
	err := db.Where("user_id = ?", userID).
		Order("recorded_at DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("error loading bmi history: %w", err)
	}

	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, Entry{Record: r, Category: Category(r.Value)})
	}
	return entries, nil
}

// Save computes and stores a new measurement for the user.
func Save(db *gorm.DB, logger *slog.Logger, userID uint, weightKg, heightCm float64) (*Entry, error) {
	value, err := Calculate(weightKg, heightCm)
	if err != nil {
		return nil, err
	}

	record := &Record{
		UserID:     userID,
		WeightKg:   round2(weightKg),
		HeightCm:   round2(heightCm),
		Value:      value,
		RecordedAt: time.Now().UTC(),
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, fmt.Errorf("error saving bmi record: %w", err)
	}
	return &Entry{Record: *record, Category: Category(value)}, nil
}

// Delete removes one of the user's records. Records owned by someone else
// are reported as ErrNotFound.
func Delete(db *gorm.DB, logger *slog.Logger, userID, recordID uint) error {
	var affected int64
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", recordID, userID).Delete(&Record{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("error deleting bmi record: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
