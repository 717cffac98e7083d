// Package main provides a tool to provision user accounts.
//
// Notedly has no public signup; accounts are created from the command line
// on the host running the server.
//
// Usage:
//
//	DATA_PATH=~/Notedly/data go run ./cmd/seed --email you@example.com --name "Your Name"
//
// The password is read from the NOTEDLY_PASSWORD environment variable, or
// generated and printed when unset.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/notedly/notedly-server/internal/auth"
	"github.com/notedly/notedly-server/internal/domain"
	"github.com/notedly/notedly-server/internal/id"
	"github.com/notedly/notedly-server/internal/store"
)

var (
	email = flag.String("email", "", "Email address for the new account (required)")
	name  = flag.String("name", "", "Display name for the new account")
)

func main() {
	flag.Parse()

	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/Notedly/data")
	}
	dbPath := filepath.Join(dataPath, "db")

	fmt.Printf("Opening database at: %s\n", dbPath)

	s, err := store.New(dbPath, nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	taken, err := s.EmailTaken(context.Background(), *email)
	if err != nil {
		log.Fatalf("Failed to check email: %v", err)
	}
	if taken {
		log.Fatalf("An account already exists for %s", *email)
	}

	password := os.Getenv("NOTEDLY_PASSWORD")
	generated := false
	if password == "" {
		password = randomPassword()
		generated = true
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	userID, err := id.Generate("usr")
	if err != nil {
		log.Fatalf("Failed to generate user ID: %v", err)
	}

	displayName := *name
	if displayName == "" {
		displayName = *email
	}

	now := time.Now()
	user := &domain.User{
		ID:           userID,
		Email:        *email,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.CreateUser(context.Background(), user); err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("Created user %s (%s)\n", user.ID, user.Email)
	if generated {
		fmt.Printf("Generated password: %s\n", password)
	}
}

func randomPassword() string {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("Failed to generate password: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
