package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hopecann/scheduling/internal/config"
	"github.com/hopecann/scheduling/internal/db"
	"github.com/hopecann/scheduling/internal/identity"
	"github.com/hopecann/scheduling/internal/logging"
)

// SimConfig drives a contention test: every round, Contenders patients race
// for one slot. Exactly one of them must win.
type SimConfig struct {
	APIBaseURL   string
	Rounds       int
	Contenders   int
	PatientLimit int
	PostgresDSN  string
	JWTSecret    string
	JWTTTL       time.Duration
}

type DataPool struct {
	Tokens  []string
	Doctors []uuid.UUID
}

type Metrics struct {
	ListSlots Operation
	Booking   Operation
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     zerolog.Logger
	metrics Metrics

	rounds     int
	skipped    int
	violations []string
}

func main() {
	cfg, logger := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Int("rounds", cfg.Rounds).
		Int("contenders", cfg.Contenders).
		Str("api", cfg.APIBaseURL).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("patients", len(dataPool.Tokens)).Int("doctors", len(dataPool.Doctors)).Msg("data loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}

	sim.Run(context.Background())
	sim.PrintReport()

	if len(sim.violations) > 0 {
		os.Exit(1)
	}
}

func loadConfig() (SimConfig, zerolog.Logger) {
	baseCfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info")
		boot.Fatal().Err(err).Msg("failed to load base config")
	}

	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Rounds:       getInt("SIM_ROUNDS", 20),
		Contenders:   getInt("SIM_CONTENDERS", 16),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 200),
		PostgresDSN:  baseCfg.PostgresDSN,
		JWTSecret:    baseCfg.JWTSecret,
		JWTTTL:       baseCfg.JWTTTL,
	}, logging.New(baseCfg.Env, baseCfg.LogLevel)
}

func validateConfig(cfg SimConfig) error {
	if cfg.Rounds <= 0 {
		return fmt.Errorf("SIM_ROUNDS must be > 0")
	}
	if cfg.Contenders < 2 {
		return fmt.Errorf("SIM_CONTENDERS must be >= 2")
	}
	return nil
}

// loadDataPool mints bearer tokens for patients with complete profiles and
// collects doctors that have a schedule.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}
	auth := identity.NewAuthenticator(cfg.JWTSecret, cfg.JWTTTL)

	rows, err := pool.Query(ctx, `
		SELECT user_id FROM patients
		WHERE user_id IS NOT NULL
		  AND phone IS NOT NULL
		  AND date_of_birth IS NOT NULL
		LIMIT $1
	`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			rows.Close()
			return nil, err
		}
		token, err := auth.Issue(userID)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("issue token: %w", err)
		}
		dataPool.Tokens = append(dataPool.Tokens, token)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `SELECT id FROM doctors WHERE available`)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Tokens) < cfg.Contenders {
		return nil, fmt.Errorf("need %d complete patients, found %d", cfg.Contenders, len(dataPool.Tokens))
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no available doctors loaded")
	}
	return dataPool, nil
}

type slotRef struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
}

func (s *Simulator) Run(ctx context.Context) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for round := 0; round < s.config.Rounds; round++ {
		doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
		slot, ok := s.pickSlot(ctx, rng, doctorID)
		if !ok {
			s.skipped++
			continue
		}
		s.rounds++
		s.race(ctx, rng, slot)
	}
	s.log.Info().Int("rounds", s.rounds).Int("skipped", s.skipped).Msg("simulation complete")
}

func (s *Simulator) pickSlot(ctx context.Context, rng *rand.Rand, doctorID uuid.UUID) (slotRef, bool) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/doctors/%s/slots", s.config.APIBaseURL, doctorID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.ListSlots.Record(latency, outcomeError)
		return slotRef{}, false
	}
	defer resp.Body.Close()

	var body struct {
		Slots []slotRef `json:"slots"`
	}
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&body) != nil {
		s.metrics.ListSlots.Record(latency, outcomeError)
		return slotRef{}, false
	}
	s.metrics.ListSlots.Record(latency, outcomeOK)

	if len(body.Slots) == 0 {
		return slotRef{}, false
	}
	return body.Slots[rng.Intn(len(body.Slots))], true
}

// race fires one booking per contender at the same slot, released together.
func (s *Simulator) race(ctx context.Context, rng *rand.Rand, slot slotRef) {
	tokens := make([]string, len(s.pool.Tokens))
	copy(tokens, s.pool.Tokens)
	rng.Shuffle(len(tokens), func(i, j int) { tokens[i], tokens[j] = tokens[j], tokens[i] })
	tokens = tokens[:s.config.Contenders]

	body, _ := json.Marshal(map[string]string{
		"doctor_id": slot.DoctorID.String(),
		"date":      slot.Date,
		"time":      slot.Time,
	})

	var (
		wins int64
		wg   sync.WaitGroup
	)
	release := make(chan struct{})
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			<-release
			if s.book(ctx, token, body) {
				atomic.AddInt64(&wins, 1)
			}
		}(token)
	}
	close(release)
	wg.Wait()

	if wins != 1 {
		v := fmt.Sprintf("%s %s %s: %d winners", slot.DoctorID, slot.Date, slot.Time, wins)
		s.violations = append(s.violations, v)
		s.log.Error().Str("slot", v).Msg("slot race did not produce exactly one booking")
	}
}

func (s *Simulator) book(ctx context.Context, token string, body []byte) bool {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	result := outcomeError
	if err == nil {
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			result = outcomeOK
		case http.StatusConflict:
			result = outcomeConflict
		}
	}
	s.metrics.Booking.Record(latency, result)
	return result == outcomeOK
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SLOT RACE REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Rounds: %d (skipped %d without open slots)\n", s.rounds, s.skipped)
	fmt.Printf("Contenders per slot: %d\n\n", s.config.Contenders)

	s.metrics.ListSlots.Print(os.Stdout, "List slots")
	s.metrics.Booking.Print(os.Stdout, "Booking")

	if len(s.violations) == 0 {
		fmt.Println("Every raced slot was booked exactly once.")
		return
	}
	fmt.Printf("VIOLATIONS: %d\n", len(s.violations))
	for _, v := range s.violations {
		fmt.Printf("  %s\n", v)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
