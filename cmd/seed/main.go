// seed inserts a dev user and a scoped partner API key into the local dev
// database. Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/LegalDragon/funtime-identity/internal/cache"
	"github.com/LegalDragon/funtime-identity/internal/domain"
	"github.com/LegalDragon/funtime-identity/internal/clock"
	"github.com/LegalDragon/funtime-identity/internal/infrastructure/postgres"
	"github.com/LegalDragon/funtime-identity/internal/usecase"
	"golang.org/x/crypto/bcrypt"
)

const (
	seedEmail    = "seed@test.local"
	seedPassword = "Passw0rd!seed"
)

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set — run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	// Upsert dev user
	var userID int64
	err = pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, is_email_verified)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING id`,
		seedEmail, string(hash),
	).Scan(&userID)
	if err != nil {
		log.Fatalf("upsert user: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	keys := usecase.NewApiKeyUsecase(
		postgres.NewApiKeyRepository(pool),
		cache.NewMemory(clock.Real()),
		clock.Real(),
		logger,
	)

	key, err := keys.CreateKey(ctx, usecase.CreateKeyInput{
		PartnerSlug: "devpartner",
		PartnerName: "Dev Partner",
		Scopes:      []string{"partner:read"},
		CreatedBy:   "seed",
	})

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  User:     %s / %s (id %d)\n", seedEmail, seedPassword, userID)
	switch {
	case errors.Is(err, domain.ErrDuplicatePartner):
		fmt.Println("  API key:  devpartner already seeded, skipped")
	case err != nil:
		log.Fatalf("create api key: %v", err)
	default:
		fmt.Printf("  API key:  %s\n", key.Key)
		fmt.Printf("  Scopes:   %v\n", key.Scopes)
	}
}
