package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gudangmitra/gudang/internal/api"
	"github.com/gudangmitra/gudang/internal/chat"
	"github.com/gudangmitra/gudang/internal/lifecycle"
	"github.com/gudangmitra/gudang/internal/store"
)

const (
	loginPerMinute = 10
	purgeInterval  = time.Hour
)

func newServeCmd(opts *options) *cobra.Command {
	var (
		addr        string
		strictStock bool
		adminName   string
		adminEmail  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API. If the database does not exist yet it is created
and an admin account with a generated password is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("strict-stock") {
				cfg.StrictStock = strictStock
			}

			if _, err := os.Stat(cfg.DBPath); errors.Is(err, os.ErrNotExist) {
				database, password, err := initDatabase(cfg.DBPath, adminName, adminEmail)
				if err != nil {
					return fmt.Errorf("initializing database: %w", err)
				}
				database.Close()
				printInitResult(cfg.DBPath, adminEmail, password)
				fmt.Println()
			}

			database, err := openDatabase(cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()
			slog.Info("database ready", "path", cfg.DBPath, "strict_stock", cfg.StrictStock)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Load JWT secret from database (auto-generated on first run).
			jwtSecret, err := store.GetJWTSecret(ctx, database)
			if err != nil {
				return fmt.Errorf("getting JWT secret: %w", err)
			}

			requests := lifecycle.New(database, store.TransitionOptions{StrictStock: cfg.StrictStock})
			requests.Async = true

			assistant := chat.NewClient(chat.Config{
				BaseURL:    cfg.Chat.BaseURL,
				APIKey:     cfg.Chat.APIKey,
				Model:      cfg.Chat.Model,
				MaxHistory: cfg.Chat.MaxHistory,
			})
			if !assistant.Configured() {
				slog.Warn("OPENAI_API_KEY not set, chat assistant disabled")
			}

			router := api.NewRouter(api.Deps{
				DB:                database,
				JWTSecret:         jwtSecret,
				Requests:          requests,
				Chat:              assistant,
				CORSOrigin:        cfg.CORSOrigin,
				ImageMaxDimension: cfg.ImageMaxDimension,
				LoginPerMinute:    loginPerMinute,
				ChatPerMinute:     cfg.Chat.RatePerMinute,
			})

			server := &http.Server{
				Addr:              cfg.Addr,
				Handler:           api.LoggingMiddleware(router),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      90 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			go purgeRevokedTokens(ctx, database)

			errc := make(chan error, 1)
			go func() {
				slog.Info("server started", "addr", cfg.Addr)
				errc <- server.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error: %w", err)
				}
			case <-ctx.Done():
				slog.Info("shutdown signal received")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("server forced to shutdown", "error", err)
				}
			}

			requests.Wait()
			slog.Info("server stopped, closing database")
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "listen address (default: $GUDANG_ADDR, :$PORT or :8080)")
	cmd.Flags().BoolVar(&strictStock, "strict-stock", false, "reject approvals that exceed stock on hand")
	cmd.Flags().StringVar(&adminName, "admin-name", "Admin", "admin name on first run")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "admin@gudang.local", "admin email on first run")
	return cmd
}

// purgeRevokedTokens drops expired revocations until ctx is done.
func purgeRevokedTokens(ctx context.Context, database *sql.DB) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.PurgeRevokedTokens(ctx, database, now)
			if err != nil {
				slog.Error("failed to purge revoked tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("purged revoked tokens", "count", n)
			}
		}
	}
}
