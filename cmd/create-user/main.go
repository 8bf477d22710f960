package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vitrineshop/marketapi/internal/config"
	"github.com/vitrineshop/marketapi/internal/domain"
	"github.com/vitrineshop/marketapi/internal/repository/postgres"
)

func main() {
	nameFlag := flag.String("name", "", "User display name")
	emailFlag := flag.String("email", "", "User email")
	phoneFlag := flag.String("phone", "", "User phone")
	tokenFlag := flag.String("token", "", "API token for this user (save it; it cannot be retrieved later)")
	flag.Parse()

	name := strings.TrimSpace(*nameFlag)
	email := strings.TrimSpace(*emailFlag)
	token := strings.TrimSpace(*tokenFlag)
	if name == "" || email == "" || token == "" {
		fmt.Println("Usage:")
		fmt.Println("  go run cmd/create-user/main.go --name \"Maria Silva\" --email maria@example.com --token \"user-api-token\"")
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(token), 10)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash token: %v\n", err)
		os.Exit(1)
	}
	lookup := sha256.Sum256([]byte(token))

	repos := postgres.NewRepositories(db, logger)
	user := &domain.User{
		Name:           name,
		Email:          email,
		Phone:          strings.TrimSpace(*phoneFlag),
		APITokenHash:   string(hash),
		APITokenLookup: hex.EncodeToString(lookup[:]),
		IsActive:       true,
	}

	if err := repos.User.Create(context.Background(), user); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User created: %s (%s)\n", user.ID, user.Email)
	fmt.Println("Store the API token now; only its hash is persisted.")
}
