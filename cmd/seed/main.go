package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"protagonist-billing/internal/config"
	pg "protagonist-billing/internal/infra/db/postgres"
	"protagonist-billing/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connect Postgres
	pool := pg.MustConnectPostgres(cfg.Database.URL)
	defer pool.Close()

	logger := zerolog.Nop()
	userRepo := pg.NewPostgresUserRepo(pool)
	challengeRepo := pg.NewPostgresChallengeRepo(pool)
	tm := pg.NewTxManager(pool)

	userUC := usecase.NewUserUseCase(userRepo, &logger)
	challengeUC := usecase.NewChallengeUseCase(challengeRepo, userRepo, tm, &logger)

	user, err := userUC.Register(ctx, "demo@example.com", "Demo", "User")
	if err != nil {
		log.Fatalf("create user: %v", err)
	}
	fmt.Printf("seeded user: %s (%s)\n", user.ID, user.Email)

	// A month-long Mon/Wed/Fri challenge starting next Monday.
	start := nextMonday(time.Now())
	end := start.AddDate(0, 1, 0)
	ch, err := challengeUC.Create(ctx, user.ID,
		start.Format("2006-01-02"), end.Format("2006-01-02"),
		[]string{"Monday", "Wednesday", "Friday"}, "22:00", "America/New_York")
	if err != nil {
		log.Fatalf("create challenge: %v", err)
	}
	fmt.Printf("seeded challenge: %s (%d calendar days)\n", ch.ID, len(ch.Calendar))

	fmt.Println("✅ Seeding complete.")
}

func nextMonday(t time.Time) time.Time {
	d := t.AddDate(0, 0, 1)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
