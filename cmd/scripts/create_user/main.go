package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/buildvault/backend/internal/config"
	"github.com/buildvault/backend/internal/models"
	"github.com/buildvault/backend/internal/services"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	email := flag.String("email", "", "login email")
	password := flag.String("password", "", "initial password")
	name := flag.String("name", "", "full name")
	role := flag.String("role", string(models.RoleStaff), "admin, manager or staff")
	status := flag.String("status", string(models.StatusApproved), "pending, approved or rejected")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	r := models.Role(*role)
	s := models.Status(*status)
	if !r.Valid() || !s.Valid() {
		fmt.Printf("Invalid role %q or status %q\n", *role, *status)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := models.InitDB(&cfg.Database, false); err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	if err := models.AutoMigrate(); err != nil {
		fmt.Printf("Failed to migrate database: %v\n", err)
		os.Exit(1)
	}

	auth := services.NewAuthService(models.GetDB(), &cfg.JWT)
	user, profile, err := auth.CreateUser(context.Background(), &services.NewUserInput{
		Email:    *email,
		Password: *password,
		FullName: *name,
		Role:     r,
		Status:   s,
	})
	if err != nil {
		fmt.Printf("Failed to create user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s (%s) role=%s status=%s\n", profile.Email, user.ID, profile.Role, profile.Status)
}
