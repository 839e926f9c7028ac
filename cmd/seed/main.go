package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/safecli/safecli/internal/config"
	"github.com/safecli/safecli/internal/database"
	"github.com/safecli/safecli/internal/models"
	"github.com/safecli/safecli/internal/services"
)

func main() {
	dbPath := pflag.String("db", "./data/safecli.db", "path to the SQLite database")
	username := pflag.String("username", "demo", "account username")
	email := pflag.String("email", "demo@example.com", "account email")
	password := pflag.String("password", "changeme123", "account password")
	hostname := pflag.String("hostname", "demo-host", "hostname of the demo endpoint")
	osUser := pflag.String("os-user", "deploy", "OS user of the demo endpoint")
	blacklist := pflag.StringSlice("blacklist", nil, "commands to blacklist (defaults to the built-in list)")
	pflag.Parse()

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		log.Fatal("Failed to create data directory:", err)
	}
	db, err := database.Connect(*dbPath)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	fmt.Println("✓ Database migrated successfully")

	ctx := context.Background()
	cfg := config.Config{JWTSecret: "seed", DefaultBlacklist: models.DefaultBlacklist}
	auth := services.NewAuthService(db, cfg)

	account, err := auth.Register(ctx, *username, *email, *password)
	switch {
	case errors.Is(err, services.ErrAccountExists):
		var existing models.Account
		if err := db.Where("username = ?", *username).First(&existing).Error; err != nil {
			log.Fatal("Failed to load existing account:", err)
		}
		account = &existing
		fmt.Printf("  Account already exists: %s\n", account.Username)
	case err != nil:
		log.Fatal("Failed to create account:", err)
	default:
		fmt.Printf("✓ Created account: %s (%s)\n", account.Username, account.ID)
	}

	if len(*blacklist) > 0 {
		commands, err := services.NewBlacklistService(db).Replace(ctx, account.ID, "seed", *blacklist)
		if err != nil {
			log.Fatal("Failed to seed blacklist:", err)
		}
		fmt.Printf("✓ Blacklist set: %v\n", commands)
	}

	res, err := services.NewEndpointService(db).Register(ctx, services.Registration{
		AccountID: account.ID,
		Name:      *hostname,
		Hostname:  *hostname,
		OSUser:    *osUser,
		OSInfo:    "seed",
	})
	if err != nil {
		log.Fatal("Failed to register endpoint:", err)
	}
	fmt.Printf("✓ Endpoint: %s (%s@%s)\n", res.Endpoint.ID, res.Endpoint.OSUser, res.Endpoint.Hostname)
	fmt.Printf("  Endpoint token: %s\n", res.Token)

	fmt.Println("\n✓ Database seeding completed successfully!")
}
