package main

import (
	"errors"
	"fmt"
	"time"

	"textile-store/internal/database"
	"textile-store/internal/logger"
	"textile-store/internal/mail"
	"textile-store/internal/repository"
	"textile-store/internal/service"
	"textile-store/internal/token"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or list database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}

			dbService, err := database.New(a.cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer dbService.Close()

			ctx := cmd.Context()
			switch action {
			case "down":
				return database.RollbackMigration(ctx, dbService.DB(), migrationsDir, a.log)
			case "status":
				states, err := database.MigrationStatus(ctx, dbService.DB(), migrationsDir)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, s := range states {
					applied := "pending"
					if s.Applied {
						applied = s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%05d  %-45s %s\n", s.Version, s.File, applied)
				}
				return nil
			default:
				return database.RunMigrations(ctx, dbService.DB(), migrationsDir, a.log)
			}
		},
	}
	return cmd
}

func newCreateAdminCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account or promote an existing one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}

			dbService, err := database.New(a.cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer dbService.Close()

			db := dbService.DB()
			users := service.NewUserService(
				repository.NewUserRepository(db),
				repository.NewRefreshTokenRepository(db),
				repository.NewLoginLinkRepository(db),
				token.NewManager(a.cfg.JWT.Secret, time.Duration(a.cfg.JWT.AccessExpiry)*time.Minute),
				mail.NewLogMailer(a.log),
				service.AuthConfig{},
				a.log,
			)

			user, err := users.EnsureAdmin(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			a.log.Info("Admin ready", logger.Email("email", user.Email), zap.String("user_id", user.ID.String()))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	return cmd
}
