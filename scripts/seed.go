// Seed script for creating demo data in Psyche.
// Run with: go run ./scripts/seed.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	envFile := os.Getenv("PSYCHE_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	type seedBelief struct {
		statement  string
		subject    string
		polarity   string
		class      string
		conviction float64
		evidence   int
		maturity   string
		age        time.Duration
	}

	day := 24 * time.Hour
	beliefs := []seedBelief{
		{"I value honest, direct feedback", "feedback", "affirmed", "value", 85, 12, "established", 60 * day},
		{"I prefer working early in the morning", "work schedule", "affirmed", "preference", 70, 5, "establishing", 14 * day},
		{"I enjoy trail running on weekends", "trail running", "affirmed", "preference", 65, 4, "establishing", 10 * day},
		{"I never drink coffee after noon", "coffee", "negated", "fact", 75, 6, "establishing", 20 * day},
		{"I am learning to play the piano", "piano", "affirmed", "fact", 55, 1, "probation", 2 * day},
	}

	for _, b := range beliefs {
		validFrom := time.Now().Add(-b.age)
		var probationEnds *time.Time
		if b.maturity == "probation" {
			t := validFrom.Add(7 * day)
			probationEnds = &t
		}
		_, err := pool.Exec(ctx,
			`INSERT INTO beliefs (statement, subject, holder, polarity, class, conviction,
				evidence_count, maturity, valid_from, probation_ends_at, reasoning)
			 VALUES ($1, $2, 'user', $3, $4, $5, $6, $7, $8, $9, 'seeded for demo')`,
			b.statement, b.subject, b.polarity, b.class, b.conviction,
			b.evidence, b.maturity, validFrom, probationEnds,
		)
		if err != nil {
			log.Fatalf("insert belief %q: %v", b.statement, err)
		}
		fmt.Printf("seeded: %s (%s, conviction %.0f)\n", b.statement, b.maturity, b.conviction)
	}

	if _, err := pool.Exec(ctx,
		`INSERT INTO resource_state (id, energy) VALUES (1, 100)
		 ON CONFLICT (id) DO UPDATE SET energy = 100`); err != nil {
		log.Fatalf("reset resource state: %v", err)
	}
	fmt.Println("resource state reset to full capacity")
}
