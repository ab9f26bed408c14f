package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"

	"github.com/spf13/cobra"

	"github.com/gudangmitra/gudang/internal/auth"
	"github.com/gudangmitra/gudang/internal/db"
	"github.com/gudangmitra/gudang/internal/export"
	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
)

func newInitCmd(opts *options) *cobra.Command {
	var adminName, adminEmail string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new database with an admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.cfg.DBPath
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("database %s already exists", path)
			}

			database, password, err := initDatabase(path, adminName, adminEmail)
			if err != nil {
				return err
			}
			database.Close()

			printInitResult(path, adminEmail, password)
			return nil
		},
	}

	cmd.Flags().StringVar(&adminName, "admin-name", "Admin", "admin name")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "admin@gudang.local", "admin email")
	return cmd
}

func newUserCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var name, email, role, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.ValidRole(role) {
				return fmt.Errorf("invalid role %q (admin, manager or user)", role)
			}
			generated := password == ""
			if generated {
				var err error
				if password, err = generatePassword(16); err != nil {
					return fmt.Errorf("generating password: %w", err)
				}
			}
			if err := model.ValidatePassword(password); err != nil {
				return err
			}

			database, err := openDatabase(opts.cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}
			u, err := store.CreateUser(cmd.Context(), database, name, email, hash, role)
			if err != nil {
				return err
			}

			slog.Info("user created", "id", u.ID, "email", u.Email, "role", u.Role)
			fmt.Printf("Created %s %s (id %d)\n", u.Role, u.Email, u.ID)
			if generated {
				fmt.Printf("  Password: %s\n", password)
			}
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().StringVar(&email, "email", "", "login email")
	create.Flags().StringVar(&role, "role", model.RoleUser, "admin, manager or user")
	create.Flags().StringVar(&password, "password", "", "password (default: generated and printed)")
	create.MarkFlagRequired("name")
	create.MarkFlagRequired("email")

	cmd.AddCommand(create)
	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export data to spreadsheets",
	}

	var output, status string
	requests := &cobra.Command{
		Use:   "requests",
		Short: "Export requests to an .xlsx file, one row per line item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !model.ValidRequestStatus(status) {
				return fmt.Errorf("invalid status %q", status)
			}

			database, err := openDatabase(opts.cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			list, err := store.ListRequests(cmd.Context(), database, model.RequestFilter{Status: status})
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			if err := export.RequestsWorkbook(f, list); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("closing %s: %w", output, err)
			}

			fmt.Printf("Exported %d requests to %s\n", len(list), output)
			return nil
		},
	}
	requests.Flags().StringVarP(&output, "output", "o", "requests_export.xlsx", "output file")
	requests.Flags().StringVar(&status, "status", "", "only export requests with this status")

	cmd.AddCommand(requests)
	return cmd
}

// initDatabase creates a new database, ensures the schema, and creates the admin user.
func initDatabase(path, adminName, adminEmail string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	fail := func(err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", err
	}

	if err := db.EnsureSchema(database); err != nil {
		return fail(fmt.Errorf("ensuring schema: %w", err))
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail(fmt.Errorf("generating password: %w", err))
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fail(fmt.Errorf("hashing password: %w", err))
	}

	if _, err := store.CreateUser(context.Background(), database, adminName, adminEmail, hash, model.RoleAdmin); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return fail(fmt.Errorf("admin %s already exists", adminEmail))
		}
		return fail(fmt.Errorf("creating admin user: %w", err))
	}

	return database, password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, email, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
