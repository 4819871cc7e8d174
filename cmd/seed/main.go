package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"

	"github.com/hopecann/scheduling/internal/availability"
	"github.com/hopecann/scheduling/internal/config"
	"github.com/hopecann/scheduling/internal/db"
	"github.com/hopecann/scheduling/internal/identity"
	"github.com/hopecann/scheduling/internal/logging"
)

const (
	doctorCount  = 40
	patientCount = 500
)

var specialties = []string{
	"General Practice",
	"Psychiatry",
	"Pain Medicine",
	"Neurology",
	"Oncology",
	"Palliative Care",
	"Rheumatology",
	"Gastroenterology",
}

// Every doctor gets one of these bulk patterns, then an optional weekend day.
var patterns = []availability.Pattern{
	{Days: availability.ScopeWorkdays, Times: availability.TimesFullDay},
	{Days: availability.ScopeWorkdays, Times: availability.TimesMorning},
	{Days: availability.ScopeWorkdays, Times: availability.TimesAfternoon},
	{Days: availability.ScopeAll, Times: availability.TimesMorning},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.PostgresPool(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	store := availability.NewPgStore(pool)
	svc := availability.NewService(store, cfg.Window(), cfg.Partition(), logger)
	if err := seedDoctors(ctx, store, svc, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(ctx, identity.NewPgDirectory(pool), logger); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, store *availability.PgStore, svc *availability.Service, logger zerolog.Logger) error {
	logger.Info().Int("count", doctorCount).Msg("seeding doctors")

	for i := 0; i < doctorCount; i++ {
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		d, err := store.CreateDoctor(ctx, availability.Doctor{
			Name:      "Dr. " + gofakeit.Name(),
			Specialty: &spec,
		})
		if err != nil {
			return err
		}

		// A few doctors stay without a schedule so the unavailable path is visible.
		if i%10 == 9 {
			continue
		}

		if _, err := svc.ApplyPattern(ctx, d.ID, patterns[i%len(patterns)]); err != nil {
			return fmt.Errorf("apply pattern for %s: %w", d.ID, err)
		}
		if gofakeit.Number(0, 3) == 0 {
			if _, err := svc.SetDaySlots(ctx, d.ID, availability.Saturday, saturdayMorning); err != nil {
				return fmt.Errorf("saturday slots for %s: %w", d.ID, err)
			}
		}
	}

	logger.Info().Msg("doctors seeded")
	return nil
}

var saturdayMorning = []availability.TimeOfDay{
	availability.At(9, 0),
	availability.At(10, 0),
	availability.At(11, 0),
}

// seedPatients links each patient to user id "patient-NNNN" so the simulator
// can mint tokens for them. Every tenth profile is left incomplete.
func seedPatients(ctx context.Context, dir *identity.PgDirectory, logger zerolog.Logger) error {
	logger.Info().Int("count", patientCount).Msg("seeding patients")

	for i := 0; i < patientCount; i++ {
		dob := gofakeit.DateRange(time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2005, 12, 31, 0, 0, 0, 0, time.UTC))
		p := identity.Patient{
			UserID:      fmt.Sprintf("patient-%04d", i),
			Name:        gofakeit.Name(),
			Email:       gofakeit.Email(),
			Phone:       gofakeit.Phone(),
			DateOfBirth: &dob,
		}
		if i%10 == 9 {
			p.Phone = ""
			p.DateOfBirth = nil
		}
		if err := dir.SavePatient(ctx, p); err != nil {
			return err
		}
		if (i+1)%100 == 0 {
			logger.Info().Int("seeded", i+1).Int("total", patientCount).Msg("patients progress")
		}
	}

	logger.Info().Msg("patients seeded")
	return nil
}
