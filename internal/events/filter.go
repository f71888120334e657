package events

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Filter narrows the set of events an aggregation looks at. Every non-zero
// field is ANDed into every query.
type Filter struct {
	Kind            Kind
	Since           *time.Time
	Until           *time.Time
	SubjectContains string
}

// Scope applies the filter to a gorm query on the events table.
func (f Filter) Scope(db *gorm.DB) *gorm.DB {
	if f.Kind != "" {
		db = db.Where("kind = ?", f.Kind)
	}
	if f.Since != nil {
		db = db.Where("occurred_at >= ?", f.Since.UTC())
	}
	if f.Until != nil {
		db = db.Where("occurred_at <= ?", f.Until.UTC())
	}
	if f.SubjectContains != "" {
		db = db.Where(`subject LIKE ? ESCAPE '\'`, "%"+EscapeLike(f.SubjectContains)+"%")
	}
	return db
}

// WithoutDates returns a copy of the filter with both date bounds removed.
func (f Filter) WithoutDates() Filter {
	f.Since = nil
	f.Until = nil
	return f
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE metacharacters so the value matches literally.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
