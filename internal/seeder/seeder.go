// Package seeder fills a development database with plausible gym traffic.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"slimmers/internal/equipment"
	"slimmers/internal/events"
)

const insertBatchSize = 500

var pagePaths = []string{
	"/",
	"/equipments",
	"/bmi",
	"/classes",
	"/pricing",
	"/contact",
}

var exercisesByStation = map[string][]string{
	"dumbbells":       {"bicep-curl", "shoulder-press", "row", "goblet-squat"},
	"kettlebell":      {"swing", "goblet-squat", "turkish-get-up"},
	"ab-roller-wheel": {"kneeling-rollout", "standing-rollout"},
}

var userAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// Seeder generates visitor sessions spread over the last Days days.
type Seeder struct {
	DBManager    cartridge.DBManager
	Logger       *slog.Logger
	Days         int
	SessionCount int
	QRTag        string
	Now          time.Time
	rng          *rand.Rand
}

// NewSeeder creates a seeder. The same seed yields the same traffic shape;
// session ids are always fresh.
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, sessionCount int, seed uint64) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:    dbManager,
		Logger:       logger,
		Days:         40,
		SessionCount: sessionCount,
		QRTag:        "qr_code",
		Now:          time.Now().UTC(),
		rng:          rand.New(rand.NewPCG(seed, seed^0x5eed)),
	}
}

// Run inserts the generated events and returns how many were written.
func (s *Seeder) Run(ctx context.Context) (int, error) {
	start := time.Now()
	s.Logger.Info("Seeding events...",
		slog.Int("sessions", s.SessionCount),
		slog.Int("days", s.Days))

	catalog, err := equipment.Default()
	if err != nil {
		return 0, err
	}

	var batch []events.Event
	for i := 0; i < s.SessionCount; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		batch = append(batch, s.session(catalog)...)
	}

	if len(batch) == 0 {
		return 0, nil
	}

	db := s.DBManager.GetConnection().WithContext(ctx)
	err = sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
		return tx.CreateInBatches(&batch, insertBatchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert seeded events: %w", err)
	}

	s.Logger.Info("Seeding completed",
		slog.Int("events", len(batch)),
		slog.Duration("elapsed", time.Since(start)))
	return len(batch), nil
}

// session generates one visitor session: either a QR scan trip through the
// stations or a plain browse of the site.
func (s *Seeder) session(catalog *equipment.Catalog) []events.Event {
	sessionID := uuid.NewString()
	userAgent := userAgents[s.rng.IntN(len(userAgents))]
	at := s.Now.Add(-time.Duration(s.rng.IntN(s.Days*24*60)) * time.Minute)

	var out []events.Event
	if s.rng.Float64() < 0.6 {
		stations := catalog.List()
		for n := s.rng.IntN(3) + 1; n > 0; n-- {
			station := stations[s.rng.IntN(len(stations))]
			exercises := exercisesByStation[station.Slug()]
			subject := station.ExerciseURL
			name := station.Name
			if len(exercises) > 0 {
				exercise := exercises[s.rng.IntN(len(exercises))]
				subject = station.ExerciseURL + "/" + exercise
				name = titleize(exercise)
			}

			out = append(out,
				s.event(events.KindPageVisit, subject, "", "", s.QRTag, sessionID, userAgent, at),
				s.event(events.KindQRScan, subject, name, titleize(station.Slug()), s.QRTag, sessionID, userAgent, at),
			)
			at = at.Add(time.Duration(s.rng.IntN(8)+2) * time.Minute)
		}
		return out
	}

	tag := ""
	if s.rng.IntN(4) == 0 {
		tag = "newsletter"
	}
	for n := s.rng.IntN(4) + 1; n > 0; n-- {
		out = append(out, s.event(events.KindPageVisit, pagePaths[s.rng.IntN(len(pagePaths))], "", "", tag, sessionID, userAgent, at))
		at = at.Add(time.Duration(s.rng.IntN(110)+10) * time.Second)
	}
	return out
}

func (s *Seeder) event(kind events.Kind, subject, name, equipmentType, tag, sessionID, userAgent string, at time.Time) events.Event {
	return events.Event{
		Kind:           kind,
		Subject:        optional(subject),
		ExerciseName:   optional(name),
		EquipmentType:  optional(equipmentType),
		AcquisitionTag: optional(tag),
		SessionID:      sessionID,
		UserAgent:      optional(userAgent),
		OccurredAt:     at.UTC(),
	}
}

func titleize(slug string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(slug, "-", " "))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
