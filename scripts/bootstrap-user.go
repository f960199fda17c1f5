// Command bootstrap-user seeds an initial account directly into the
// database, for environments where registering through the API is not
// convenient.
//
// Usage:
//
//	DATABASE_URL=postgres://... go run scripts/bootstrap-user.go -username admin -email admin@example.com -password <password>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/imgvault/imgvault/internal/auth"
	"github.com/imgvault/imgvault/internal/model"
	"github.com/imgvault/imgvault/internal/repository"
)

func main() {
	username := flag.String("username", "", "username for the new account")
	email := flag.String("email", "", "email for the new account")
	password := flag.String("password", "", "password for the new account")
	flag.Parse()

	if *username == "" || *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: bootstrap-user -username <name> -email <email> -password <password>")
		os.Exit(2)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL not set")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}

	user := &model.User{
		ID:           ulid.Make().String(),
		Username:     *username,
		Email:        *email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := repo.CreateUser(ctx, user); err != nil {
		fmt.Fprintf(os.Stderr, "create user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created user %s (%s)\n", user.Username, user.ID)
}
